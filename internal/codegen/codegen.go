package codegen

import (
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

const (
	Prefix     = "QR-"
	codeLength = 8
)

// Generator produces codes of the form QR-XXXXXXXX from random UUIDs.
type Generator struct{}

func New() Generator {
	return Generator{}
}

func (Generator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	// bytes 9..15 carry no version or variant bits
	raw := append([]byte{}, id[9:]...)
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	return Prefix + encoded[:codeLength], nil
}

// Sequence returns the given codes in order and then fails. Used by tests to
// force collisions.
type Sequence struct {
	Codes []string
	next  int
}

func (s *Sequence) Generate() (string, error) {
	if s.next >= len(s.Codes) {
		return "", fmt.Errorf("code sequence exhausted after %d codes", len(s.Codes))
	}
	code := s.Codes[s.next]
	s.next++
	return code, nil
}
