package verifier

import (
	"context"
	"fmt"
	"time"

	"mesa-qr/internal/alerts"
	"mesa-qr/internal/core"
	"mesa-qr/internal/orders"
	"mesa-qr/internal/session"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"

	"github.com/hashicorp/go-multierror"
)

type Params struct {
	KanbanAfter       time.Duration
	TerminadoWarn     time.Duration
	TerminadoCritical time.Duration
}

func DefaultParams() Params {
	return Params{
		KanbanAfter:       core.KanbanAfter,
		TerminadoWarn:     core.TerminadoWarnAfter,
		TerminadoCritical: core.TerminadoCriticalAfter,
	}
}

// Verifier runs one sweep over a tenant's live orders.
type Verifier struct {
	repo     core.Repository
	orders   *orders.StateMachine
	sessions *session.Manager
	dedup    *alerts.Deduplicator
	clock    core.Clock
	sink     core.AlertSink
	logger   *logger.Logger
	params   Params
}

func New(repo core.Repository, sm *orders.StateMachine, sessions *session.Manager, dedup *alerts.Deduplicator,
	clock core.Clock, sink core.AlertSink, log *logger.Logger, params Params) *Verifier {
	return &Verifier{
		repo:     repo,
		orders:   sm,
		sessions: sessions,
		dedup:    dedup,
		clock:    clock,
		sink:     sink,
		logger:   log,
		params:   params,
	}
}

// Tick never fails: per-order errors are logged and the order is looked at
// again on the next tick.
func (v *Verifier) Tick(ctx context.Context, tenantID int64) {
	now := v.clock.Now()
	requestID := fmt.Sprintf("tick-%d-%d", tenantID, now.UnixNano())
	var errs *multierror.Error

	stale, err := v.sessions.Stale(ctx, tenantID)
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list stale sessions: %w", err))
	}
	for _, s := range stale {
		if err := v.guard(func() error { return v.expireSession(ctx, tenantID, s, requestID) }); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("session %d: %w", s.ID, err))
		}
	}

	var live []models.Order
	err = v.repo.InTx(ctx, func(tx core.Tx) error {
		var err error
		live, err = tx.ListLiveOrders(ctx, tenantID)
		return err
	})
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("list live orders: %w", err))
	}
	for _, o := range live {
		if err := v.guard(func() error { return v.checkOrder(ctx, o, now, requestID) }); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("order %d: %w", o.ID, err))
		}
	}

	removed := v.dedup.Sweep(now)

	if err := errs.ErrorOrNil(); err != nil {
		v.logger.Error(requestID, "tick_failed",
			fmt.Sprintf("Tenant %d tick finished with %d errors", tenantID, len(errs.Errors)), err)
		return
	}
	v.logger.Debug(requestID, "tick_completed",
		fmt.Sprintf("Tenant %d: %d live orders, %d stale sessions, %d alert records swept, %d kept",
			tenantID, len(live), len(stale), removed, v.dedup.Len()))
}

func (v *Verifier) checkOrder(ctx context.Context, o models.Order, now time.Time, requestID string) error {
	if o.ExpiresAt != nil && now.After(*o.ExpiresAt) {
		expired, ok, err := v.orders.Expire(ctx, o.ID)
		if err != nil || !ok {
			return err
		}
		v.publish(ctx, requestID, alertFor(expired, models.KindOrderExpired, now, map[string]any{
			"expiracion": *expired.ExpiresAt,
		}))
		return nil
	}

	switch o.State {
	case models.OrderTerminado:
		waited := now.Sub(o.StateEnteredAt)
		var kind string
		switch {
		case waited >= v.params.TerminadoCritical:
			kind = models.AlertTerminado10
		case waited >= v.params.TerminadoWarn:
			kind = models.AlertTerminado5
		}
		if kind != "" && v.dedup.ShouldFire(o.ID, kind, now) {
			v.publish(ctx, requestID, alertFor(o, models.KindOrderAlert, now, map[string]any{
				"tipo":    kind,
				"minutos": int(waited / time.Minute),
			}))
		}

	case models.OrderServido:
		if o.ExpiresAt == nil {
			return nil
		}
		remaining := o.ExpiresAt.Sub(now)
		for _, threshold := range core.ServedCountdown {
			if remaining > time.Duration(threshold.Minutes)*time.Minute {
				continue
			}
			if v.dedup.ShouldFire(o.ID, threshold.Alert, now) {
				v.publish(ctx, requestID, alertFor(o, models.KindOrderAlert, now, map[string]any{
					"tipo":              threshold.Alert,
					"minutos_restantes": int(remaining / time.Minute),
				}))
			}
			break
		}

	case models.OrderRecepcion:
		waited := now.Sub(o.StateEnteredAt)
		if waited >= v.params.KanbanAfter && v.dedup.ShouldFire(o.ID, models.AlertKanban, now) {
			v.publish(ctx, requestID, alertFor(o, models.KindKanbanUrgency, now, map[string]any{
				"minutos_espera": int(waited / time.Minute),
			}))
		}
	}
	return nil
}

// expireSession retires a session past its expiration. An order it opened
// that never received items is cancelled along with it; a session whose order
// is still being worked on is renewed instead.
func (v *Verifier) expireSession(ctx context.Context, tenantID int64, s models.Session, requestID string) error {
	if s.OrderID != nil {
		if _, err := v.orders.CancelIdle(ctx, *s.OrderID); err != nil {
			return err
		}
	}
	retired, err := v.sessions.ExpireStale(ctx, s.ID)
	if err != nil {
		return err
	}
	if !retired {
		v.logger.Debug(requestID, "session_renewed",
			fmt.Sprintf("Session %s kept alive by a live order", s.Code))
		return nil
	}

	a := models.Alert{
		TenantID: tenantID,
		Kind:     models.KindSessionExpired,
		TableID:  s.TableID,
		Payload:  map[string]any{"codigo": s.Code, "expiracion": s.ExpiresAt},
		At:       v.clock.Now(),
	}
	if s.OrderID != nil {
		a.OrderID = *s.OrderID
	}
	v.publish(ctx, requestID, a)
	return nil
}

func (v *Verifier) publish(ctx context.Context, requestID string, a models.Alert) {
	if err := v.sink.Publish(ctx, a); err != nil {
		v.logger.Error(requestID, "alert_publish_failed",
			fmt.Sprintf("Failed to publish %s for order %d", a.Kind, a.OrderID), err)
	}
}

// guard turns a panic in fn into an error so one record cannot stop the tick.
func (v *Verifier) guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func alertFor(o models.Order, kind models.AlertKind, now time.Time, payload map[string]any) models.Alert {
	a := models.Alert{
		TenantID: o.TenantID,
		Kind:     kind,
		OrderID:  o.ID,
		Payload:  payload,
		At:       now,
	}
	if o.TableID != nil {
		a.TableID = *o.TableID
	}
	return a
}
