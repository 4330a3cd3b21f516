package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("session expired")
	ErrInactive          = errors.New("session inactive")
	ErrConflict          = errors.New("table already claimed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrOrderClosed       = errors.New("order closed")
	ErrInvalidInput      = errors.New("invalid input")

	ErrDuplicateCode = errors.New("duplicate session code")
)

// TransitionError reports an edge missing from a state graph. It matches
// ErrInvalidTransition under errors.Is.
type TransitionError struct {
	Entity string
	ID     int64
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %d: %s -> %s: %v", e.Entity, e.ID, e.From, e.To, ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
