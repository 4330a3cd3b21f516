package core

import (
	"context"
	"time"

	"mesa-qr/pkg/models"
)

// Repository runs units of work. Every read of an order through a Tx locks
// that order until the unit commits or rolls back, so two units touching the
// same order are serialized.
type Repository interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	TableRepo
	SessionRepo
	OrderRepo
}

type TableRepo interface {
	GetTable(ctx context.Context, id int64) (models.Table, error)
	SetTableStatus(ctx context.Context, id int64, status models.TableStatus) error
}

type SessionRepo interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id int64) (models.Session, error)
	GetSessionByCode(ctx context.Context, code string) (models.Session, error)
	UpdateSession(ctx context.Context, s models.Session) error
	ActiveSessionsByTable(ctx context.Context, tableID int64) ([]models.Session, error)
	ActiveSessionsByOrder(ctx context.Context, orderID int64) ([]models.Session, error)
	// StaleSessions lists active sessions of the tenant's tables that expired before now.
	StaleSessions(ctx context.Context, tenantID int64, now time.Time) ([]models.Session, error)
}

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	// LiveOrderByTable returns the non-terminal order occupying the table or ErrNotFound.
	LiveOrderByTable(ctx context.Context, tableID int64) (models.Order, error)
	ListLiveOrders(ctx context.Context, tenantID int64) ([]models.Order, error)
	UpdateOrder(ctx context.Context, o models.Order) error

	CreateSubOrder(ctx context.Context, so *models.SubOrder) error
	GetSubOrder(ctx context.Context, id int64) (models.SubOrder, error)
	ListSubOrders(ctx context.Context, orderID int64) ([]models.SubOrder, error)
	UpdateSubOrderState(ctx context.Context, id int64, state models.SubOrderState) error
}
