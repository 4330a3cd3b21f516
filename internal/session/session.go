package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mesa-qr/internal/core"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

type BindingKind uint8

const (
	BindOrder BindingKind = iota
	BindReservation
)

// Binding says what a new session is attached to. An order binding with a
// nil OrderID attaches to the table's live order or opens a new one.
type Binding struct {
	Kind          BindingKind
	OrderID       *int64
	ReservationID int64
	ReservationAt time.Time
}

func OrderBinding() Binding {
	return Binding{Kind: BindOrder}
}

func ExistingOrderBinding(orderID int64) Binding {
	return Binding{Kind: BindOrder, OrderID: &orderID}
}

func ReservationBinding(reservationID int64, at time.Time) Binding {
	return Binding{Kind: BindReservation, ReservationID: reservationID, ReservationAt: at}
}

type Params struct {
	OrderTTL         time.Duration
	ReservationGrace time.Duration
}

func DefaultParams() Params {
	return Params{
		OrderTTL:         core.OrderSessionTTL,
		ReservationGrace: core.ReservationGrace,
	}
}

type Manager struct {
	repo   core.Repository
	clock  core.Clock
	codes  core.CodeGenerator
	sink   core.AlertSink
	logger *logger.Logger
	params Params
}

func NewManager(repo core.Repository, clock core.Clock, codes core.CodeGenerator, sink core.AlertSink, log *logger.Logger, params Params) *Manager {
	return &Manager{
		repo:   repo,
		clock:  clock,
		codes:  codes,
		sink:   sink,
		logger: log,
		params: params,
	}
}

// Issue claims a table with a new session. Any other active session of the
// table is retired.
func (m *Manager) Issue(ctx context.Context, tableID, ownerID int64, b Binding) (models.Session, error) {
	now := m.clock.Now()
	var (
		out    core.Outbox
		issued models.Session
	)

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		table, err := tx.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if table.Status == models.TableOutOfService {
			return fmt.Errorf("table %d is out of service: %w", tableID, core.ErrConflict)
		}

		live, err := tx.LiveOrderByTable(ctx, tableID)
		hasLive := err == nil
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return err
		}

		s := models.Session{
			TableID:   tableID,
			OwnerID:   ownerID,
			Active:    true,
			CreatedAt: now,
		}
		next := models.TableOccupied

		switch b.Kind {
		case BindReservation:
			if hasLive {
				return fmt.Errorf("table %d has live order %d: %w", tableID, live.ID, core.ErrConflict)
			}
			reservationID := b.ReservationID
			s.ReservationID = &reservationID
			s.ExpiresAt = b.ReservationAt.Add(m.params.ReservationGrace)
			next = models.TableReserved
		case BindOrder:
			if b.OrderID != nil && (!hasLive || live.ID != *b.OrderID) {
				return fmt.Errorf("order %d is not the live order of table %d: %w", *b.OrderID, tableID, core.ErrConflict)
			}
			s.ExpiresAt = now.Add(m.params.OrderTTL)
		default:
			return fmt.Errorf("unknown binding kind %d: %w", b.Kind, core.ErrInvalidInput)
		}

		if err := m.supersede(ctx, tx, tableID); err != nil {
			return err
		}

		if s.Code, err = m.uniqueCode(ctx, tx); err != nil {
			return err
		}

		if b.Kind == BindOrder {
			if !hasLive {
				live = models.Order{
					TenantID:       table.TenantID,
					TableID:        &tableID,
					OwnerID:        ownerID,
					State:          models.OrderIniciado,
					CreatedAt:      now,
					UpdatedAt:      now,
					StateEnteredAt: now,
				}
				if err := tx.CreateOrder(ctx, &live); err != nil {
					return fmt.Errorf("failed to open order for table %d: %w", tableID, err)
				}
				out.Add(models.Alert{
					TenantID: table.TenantID,
					Kind:     models.KindOrderCreated,
					OrderID:  live.ID,
					TableID:  tableID,
					Payload:  map[string]any{"estado": live.State.String()},
					At:       now,
				})
			}
			orderID := live.ID
			s.OrderID = &orderID
		}

		if err := tx.CreateSession(ctx, &s); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		if err := m.setTableStatus(ctx, tx, table, next, now, &out); err != nil {
			return err
		}

		a := models.Alert{
			TenantID: table.TenantID,
			Kind:     models.KindSessionIssued,
			TableID:  tableID,
			Payload:  map[string]any{"codigo": s.Code, "expiracion": s.ExpiresAt},
			At:       now,
		}
		if s.OrderID != nil {
			a.OrderID = *s.OrderID
		}
		out.Add(a)

		issued = s
		return nil
	})
	if err != nil {
		return models.Session{}, err
	}

	requestID := fmt.Sprintf("session-%d", issued.ID)
	m.logger.Debug(requestID, "session_issued",
		fmt.Sprintf("Issued session %s for table %d", issued.Code, tableID))
	out.Flush(ctx, m.sink, m.logger, requestID)
	return issued, nil
}

// Validate resolves a scanned code. An inactive session reports ErrInactive
// even when it has also expired.
func (m *Manager) Validate(ctx context.Context, code string) (models.SessionView, error) {
	now := m.clock.Now()
	var view models.SessionView

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		s, err := tx.GetSessionByCode(ctx, code)
		if err != nil {
			return err
		}
		if !s.Active {
			return fmt.Errorf("session %s: %w", code, core.ErrInactive)
		}
		if now.After(s.ExpiresAt) {
			return fmt.Errorf("session %s expired at %s: %w", code, s.ExpiresAt.Format(time.RFC3339), core.ErrExpired)
		}

		table, err := tx.GetTable(ctx, s.TableID)
		if err != nil {
			return err
		}
		view = models.SessionView{Session: s, Table: table}

		if s.OrderID != nil {
			order, err := tx.GetOrder(ctx, *s.OrderID)
			if err != nil {
				return err
			}
			view.Order = &order
		}
		return nil
	})
	if err != nil {
		return models.SessionView{}, err
	}
	return view, nil
}

// Retire deactivates a session. Retiring an inactive session does nothing.
func (m *Manager) Retire(ctx context.Context, sessionID int64) error {
	now := m.clock.Now()
	var out core.Outbox

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if !s.Active {
			return nil
		}
		return m.retire(ctx, tx, s, now, &out)
	})
	if err != nil {
		return err
	}

	out.Flush(ctx, m.sink, m.logger, fmt.Sprintf("session-%d", sessionID))
	return nil
}

// ExpireStale retires a session whose expiration has passed and reports
// whether it is now inactive. A session bound to a live order that already
// received items is renewed rather than retired, so its table stays occupied
// only while a live session holds it.
func (m *Manager) ExpireStale(ctx context.Context, sessionID int64) (bool, error) {
	now := m.clock.Now()
	var (
		out     core.Outbox
		retired bool
	)

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if !s.Active {
			retired = true
			return nil
		}
		if !now.After(s.ExpiresAt) {
			return nil
		}
		if s.OrderID != nil {
			order, err := tx.GetOrder(ctx, *s.OrderID)
			if err != nil {
				return err
			}
			if !order.State.Terminal() && order.State != models.OrderIniciado {
				return m.RenewForOrder(ctx, tx, order, now, &out)
			}
		}
		retired = true
		return m.retire(ctx, tx, s, now, &out)
	})
	if err != nil {
		return false, err
	}

	out.Flush(ctx, m.sink, m.logger, fmt.Sprintf("session-%d", sessionID))
	return retired, nil
}

// Stale lists the tenant's active sessions whose expiration has passed.
func (m *Manager) Stale(ctx context.Context, tenantID int64) ([]models.Session, error) {
	now := m.clock.Now()
	var stale []models.Session
	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		var err error
		stale, err = tx.StaleSessions(ctx, tenantID, now)
		return err
	})
	return stale, err
}

// ReleaseOrder retires every session bound to a closed order and frees its
// table. It runs inside the caller's unit of work.
func (m *Manager) ReleaseOrder(ctx context.Context, tx core.Tx, order models.Order, now time.Time, out *core.Outbox) error {
	sessions, err := tx.ActiveSessionsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		s.Active = false
		if err := tx.UpdateSession(ctx, s); err != nil {
			return fmt.Errorf("failed to retire session %d: %w", s.ID, err)
		}
	}
	if order.TableID == nil {
		return nil
	}
	return m.releaseTable(ctx, tx, *order.TableID, now, out)
}

// RenewForOrder pushes the expiration of the order's sessions to now plus the
// order session TTL. Expirations never move backwards.
func (m *Manager) RenewForOrder(ctx context.Context, tx core.Tx, order models.Order, now time.Time, out *core.Outbox) error {
	sessions, err := tx.ActiveSessionsByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	next := now.Add(m.params.OrderTTL)
	for _, s := range sessions {
		if !next.After(s.ExpiresAt) {
			continue
		}
		s.ExpiresAt = next
		if err := tx.UpdateSession(ctx, s); err != nil {
			return fmt.Errorf("failed to renew session %d: %w", s.ID, err)
		}
		out.Add(models.Alert{
			TenantID: order.TenantID,
			Kind:     models.KindExpirationChanged,
			OrderID:  order.ID,
			TableID:  s.TableID,
			Payload:  map[string]any{"codigo": s.Code, "expiracion": next},
			At:       now,
		})
	}
	return nil
}

// ReleaseTable retires every active session of the table and frees it once no
// live order holds it. It runs inside the caller's unit of work.
func (m *Manager) ReleaseTable(ctx context.Context, tx core.Tx, tableID int64, now time.Time, out *core.Outbox) error {
	if err := m.supersede(ctx, tx, tableID); err != nil {
		return err
	}
	return m.releaseTable(ctx, tx, tableID, now, out)
}

func (m *Manager) retire(ctx context.Context, tx core.Tx, s models.Session, now time.Time, out *core.Outbox) error {
	s.Active = false
	if err := tx.UpdateSession(ctx, s); err != nil {
		return fmt.Errorf("failed to retire session %d: %w", s.ID, err)
	}

	if s.OrderID != nil {
		order, err := tx.GetOrder(ctx, *s.OrderID)
		if err != nil {
			return err
		}
		if !order.State.Terminal() {
			return nil
		}
	}
	return m.releaseTable(ctx, tx, s.TableID, now, out)
}

// supersede retires every active session of the table.
func (m *Manager) supersede(ctx context.Context, tx core.Tx, tableID int64) error {
	sessions, err := tx.ActiveSessionsByTable(ctx, tableID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		s.Active = false
		if err := tx.UpdateSession(ctx, s); err != nil {
			return fmt.Errorf("failed to supersede session %d: %w", s.ID, err)
		}
	}
	return nil
}

// releaseTable marks the table available unless it is out of service or still
// held by a live order or another active session.
func (m *Manager) releaseTable(ctx context.Context, tx core.Tx, tableID int64, now time.Time, out *core.Outbox) error {
	table, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if table.Status == models.TableOutOfService || table.Status == models.TableAvailable {
		return nil
	}

	if _, err := tx.LiveOrderByTable(ctx, tableID); err == nil {
		return nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	active, err := tx.ActiveSessionsByTable(ctx, tableID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return nil
	}
	return m.setTableStatus(ctx, tx, table, models.TableAvailable, now, out)
}

func (m *Manager) setTableStatus(ctx context.Context, tx core.Tx, table models.Table, status models.TableStatus, now time.Time, out *core.Outbox) error {
	if table.Status == status {
		return nil
	}
	if err := tx.SetTableStatus(ctx, table.ID, status); err != nil {
		return fmt.Errorf("failed to set table %d %s: %w", table.ID, status, err)
	}
	table.Status = status
	out.Add(models.TableChanged(table, now))
	return nil
}

func (m *Manager) uniqueCode(ctx context.Context, tx core.Tx) (string, error) {
	for attempt := 0; attempt < core.MaxCodeAttempts; attempt++ {
		code, err := m.codes.Generate()
		if err != nil {
			return "", err
		}
		_, err = tx.GetSessionByCode(ctx, code)
		if errors.Is(err, core.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		m.logger.Warn("", "session_code_collision", fmt.Sprintf("Code %s already taken, retrying", code))
	}
	return "", fmt.Errorf("no free code after %d attempts: %w", core.MaxCodeAttempts, core.ErrDuplicateCode)
}
