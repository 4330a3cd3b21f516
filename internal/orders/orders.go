package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mesa-qr/internal/core"
	"mesa-qr/internal/session"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

type Params struct {
	ServeGrace time.Duration
}

func DefaultParams() Params {
	return Params{ServeGrace: core.ServeGrace}
}

// StateMachine applies order and sub-order transitions. Each operation is a
// single unit of work holding the order's lock.
type StateMachine struct {
	repo     core.Repository
	clock    core.Clock
	sink     core.AlertSink
	sessions *session.Manager
	logger   *logger.Logger
	params   Params
}

func NewStateMachine(repo core.Repository, clock core.Clock, sink core.AlertSink, sessions *session.Manager, log *logger.Logger, params Params) *StateMachine {
	return &StateMachine{
		repo:     repo,
		clock:    clock,
		sink:     sink,
		sessions: sessions,
		logger:   log,
		params:   params,
	}
}

// AddItems opens a PENDIENTE sub-order with items and adds it to the order
// total. The first items move an INICIADO order to RECEPCION.
func (m *StateMachine) AddItems(ctx context.Context, orderID int64, items []models.LineItem) (models.SubOrder, error) {
	if err := validateItems(items); err != nil {
		return models.SubOrder{}, err
	}

	now := m.clock.Now()
	var (
		out     core.Outbox
		created models.SubOrder
	)

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State.Terminal() {
			return fmt.Errorf("order %d is %s: %w", order.ID, order.State, core.ErrOrderClosed)
		}

		so := models.SubOrder{
			OrderID:   order.ID,
			State:     models.SubOrderPendiente,
			CreatedAt: now,
			Items:     append([]models.LineItem(nil), items...),
		}
		if err := tx.CreateSubOrder(ctx, &so); err != nil {
			return fmt.Errorf("failed to create sub-order for order %d: %w", order.ID, err)
		}

		from := order.State
		if order.Total, err = m.recomputeTotal(ctx, tx, order.ID); err != nil {
			return err
		}
		order.UpdatedAt = now
		if order.State == models.OrderIniciado {
			order.State = models.OrderRecepcion
			order.StateEnteredAt = now
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order %d: %w", order.ID, err)
		}
		if err := m.sessions.RenewForOrder(ctx, tx, order, now, &out); err != nil {
			return err
		}

		out.Add(subOrderAlert(order, so, models.KindSubOrderCreated, now, map[string]any{
			"id_encomienda": so.ID,
			"estado":        so.State.String(),
			"subtotal":      so.Subtotal(),
			"total":         order.Total,
		}))
		if from != order.State {
			out.Add(models.OrderStateChanged(order, from, now))
		}

		created = so
		return nil
	})
	if err != nil {
		return models.SubOrder{}, err
	}

	requestID := fmt.Sprintf("order-%d", orderID)
	m.logger.Debug(requestID, "items_added",
		fmt.Sprintf("Sub-order %d added %d items to order %d", created.ID, len(created.Items), orderID))
	out.Flush(ctx, m.sink, m.logger, requestID)
	return created, nil
}

// AdvanceSubOrder moves a sub-order along its own graph. Cancelling it drops
// its items from the parent total.
func (m *StateMachine) AdvanceSubOrder(ctx context.Context, subOrderID int64, to models.SubOrderState) (models.SubOrder, error) {
	now := m.clock.Now()
	var (
		out     core.Outbox
		updated models.SubOrder
	)

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		so, err := tx.GetSubOrder(ctx, subOrderID)
		if err != nil {
			return err
		}
		order, err := tx.GetOrder(ctx, so.OrderID)
		if err != nil {
			return err
		}
		if order.State.Terminal() {
			return fmt.Errorf("order %d is %s: %w", order.ID, order.State, core.ErrOrderClosed)
		}
		if !CanAdvanceSubOrder(so.State, to) {
			return &core.TransitionError{Entity: "sub-order", ID: so.ID, From: so.State.String(), To: to.String()}
		}

		from := so.State
		if err := tx.UpdateSubOrderState(ctx, so.ID, to); err != nil {
			return fmt.Errorf("failed to update sub-order %d: %w", so.ID, err)
		}
		so.State = to

		if to == models.SubOrderCancelada {
			if order.Total, err = m.recomputeTotal(ctx, tx, order.ID); err != nil {
				return err
			}
		}
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order %d: %w", order.ID, err)
		}

		out.Add(subOrderAlert(order, so, models.KindSubOrderState, now, map[string]any{
			"id_encomienda":   so.ID,
			"estado_anterior": from.String(),
			"estado":          so.State.String(),
			"total":           order.Total,
		}))

		updated = so
		return nil
	})
	if err != nil {
		return models.SubOrder{}, err
	}

	out.Flush(ctx, m.sink, m.logger, fmt.Sprintf("suborder-%d", subOrderID))
	return updated, nil
}

// AdvanceOrder moves an order along the order graph. A served order can only
// be cancelled before its expiration; afterwards only Expire closes it.
func (m *StateMachine) AdvanceOrder(ctx context.Context, orderID int64, to models.OrderState) (models.Order, error) {
	now := m.clock.Now()
	var (
		out     core.Outbox
		updated models.Order
	)

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanAdvanceOrder(order.State, to) {
			return &core.TransitionError{Entity: "order", ID: order.ID, From: order.State.String(), To: to.String()}
		}
		if order.State == models.OrderServido && to == models.OrderCancelado &&
			order.ExpiresAt != nil && now.After(*order.ExpiresAt) {
			return &core.TransitionError{Entity: "order", ID: order.ID, From: "SERVIDO (expired)", To: to.String()}
		}

		if err := m.apply(ctx, tx, &order, to, now, &out); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	out.Flush(ctx, m.sink, m.logger, fmt.Sprintf("order-%d", orderID))
	return updated, nil
}

// Expire cancels a live order whose expiration has passed. It reports false
// when the order is closed or not yet due, so concurrent callers cancel it
// once.
func (m *StateMachine) Expire(ctx context.Context, orderID int64) (models.Order, bool, error) {
	now := m.clock.Now()
	var (
		out     core.Outbox
		expired models.Order
		done    bool
	)

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State.Terminal() || order.ExpiresAt == nil || !now.After(*order.ExpiresAt) {
			return nil
		}
		if err := m.apply(ctx, tx, &order, models.OrderCancelado, now, &out); err != nil {
			return err
		}
		expired, done = order, true
		return nil
	})
	if err != nil {
		return models.Order{}, false, err
	}

	out.Flush(ctx, m.sink, m.logger, fmt.Sprintf("order-%d", orderID))
	return expired, done, nil
}

// CancelIdle cancels the order if it never received items.
func (m *StateMachine) CancelIdle(ctx context.Context, orderID int64) (bool, error) {
	now := m.clock.Now()
	var (
		out  core.Outbox
		done bool
	)

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State != models.OrderIniciado {
			return nil
		}
		done = true
		return m.apply(ctx, tx, &order, models.OrderCancelado, now, &out)
	})
	if err != nil {
		return false, err
	}

	out.Flush(ctx, m.sink, m.logger, fmt.Sprintf("order-%d", orderID))
	return done, nil
}

// CloseTable is the staff override for a table: its live order is cancelled
// whatever its state, every session is retired and the table freed.
func (m *StateMachine) CloseTable(ctx context.Context, tableID int64) error {
	now := m.clock.Now()
	var out core.Outbox

	err := m.repo.InTx(ctx, func(tx core.Tx) error {
		if _, err := tx.GetTable(ctx, tableID); err != nil {
			return err
		}

		order, err := tx.LiveOrderByTable(ctx, tableID)
		switch {
		case err == nil:
			if err := m.apply(ctx, tx, &order, models.OrderCancelado, now, &out); err != nil {
				return err
			}
		case !errors.Is(err, core.ErrNotFound):
			return err
		}

		return m.sessions.ReleaseTable(ctx, tx, tableID, now, &out)
	})
	if err != nil {
		return err
	}

	requestID := fmt.Sprintf("table-%d", tableID)
	m.logger.Info(requestID, "table_closed", fmt.Sprintf("Table %d closed", tableID))
	out.Flush(ctx, m.sink, m.logger, requestID)
	return nil
}

func (m *StateMachine) apply(ctx context.Context, tx core.Tx, order *models.Order, to models.OrderState, now time.Time, out *core.Outbox) error {
	from := order.State
	order.State = to
	order.StateEnteredAt = now
	order.UpdatedAt = now
	if to == models.OrderServido {
		exp := now.Add(m.params.ServeGrace)
		order.ExpiresAt = &exp
	}

	if err := tx.UpdateOrder(ctx, *order); err != nil {
		return fmt.Errorf("failed to update order %d: %w", order.ID, err)
	}
	out.Add(models.OrderStateChanged(*order, from, now))

	if to.Terminal() {
		return m.sessions.ReleaseOrder(ctx, tx, *order, now, out)
	}
	return m.sessions.RenewForOrder(ctx, tx, *order, now, out)
}

func (m *StateMachine) recomputeTotal(ctx context.Context, tx core.Tx, orderID int64) (int64, error) {
	subOrders, err := tx.ListSubOrders(ctx, orderID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, so := range subOrders {
		if so.State != models.SubOrderCancelada {
			total += so.Subtotal()
		}
	}
	return total, nil
}

func validateItems(items []models.LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one item is required: %w", core.ErrInvalidInput)
	}
	for i, item := range items {
		if item.ProductID <= 0 {
			return fmt.Errorf("item %d: product is required: %w", i, core.ErrInvalidInput)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("item %d: quantity must be at least 1: %w", i, core.ErrInvalidInput)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("item %d: unit price must not be negative: %w", i, core.ErrInvalidInput)
		}
	}
	return nil
}

func subOrderAlert(order models.Order, so models.SubOrder, kind models.AlertKind, now time.Time, payload map[string]any) models.Alert {
	a := models.Alert{
		TenantID: order.TenantID,
		Kind:     kind,
		OrderID:  order.ID,
		Payload:  payload,
		At:       now,
	}
	if order.TableID != nil {
		a.TableID = *order.TableID
	}
	return a
}
