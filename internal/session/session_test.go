package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mesa-qr/internal/alerts/alertstest"
	"mesa-qr/internal/clock"
	"mesa-qr/internal/codegen"
	"mesa-qr/internal/core"
	"mesa-qr/internal/session"
	"mesa-qr/internal/storage/memory"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

var t0 = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	clock *clock.Fake
	sink  *alertstest.Recorder
	mgr   *session.Manager
	table models.Table
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.New(),
		clock: clock.NewFake(t0),
		sink:  &alertstest.Recorder{},
	}
	f.table = f.store.AddTable(models.Table{TenantID: 7, Name: "Mesa 1", Capacity: 4})
	f.mgr = session.NewManager(f.store, f.clock, &codegen.Sequence{Codes: codes}, f.sink, logger.NewNop(), session.DefaultParams())
	return f
}

func (f *fixture) tableStatus(t *testing.T, id int64) models.TableStatus {
	t.Helper()
	table, ok := f.store.Table(id)
	if !ok {
		t.Fatalf("table %d missing", id)
	}
	return table.Status
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-AB12")

	s, err := f.mgr.Issue(ctx, f.table.ID, 42, session.OrderBinding())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if s.Code != "QR-AB12" {
		t.Fatalf("expected code QR-AB12, got %q", s.Code)
	}
	if !s.ExpiresAt.Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("expected expiration %s, got %s", t0.Add(2*time.Hour), s.ExpiresAt)
	}
	if s.OrderID == nil {
		t.Fatal("expected session bound to an order")
	}
	if got := f.tableStatus(t, f.table.ID); got != models.TableOccupied {
		t.Fatalf("expected table %s, got %s", models.TableOccupied, got)
	}

	f.clock.Advance(time.Second)
	view, err := f.mgr.Validate(ctx, "QR-AB12")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if view.Table.ID != f.table.ID {
		t.Fatalf("expected table %d, got %d", f.table.ID, view.Table.ID)
	}
	if view.Order == nil || view.Order.State != models.OrderIniciado {
		t.Fatalf("expected INICIADO order, got %+v", view.Order)
	}

	f.clock.Set(t0.Add(2*time.Hour + time.Second))
	if _, err := f.mgr.Validate(ctx, "QR-AB12"); !errors.Is(err, core.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	if err := f.mgr.Retire(ctx, s.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if _, err := f.mgr.Validate(ctx, "QR-AB12"); !errors.Is(err, core.ErrInactive) {
		t.Fatalf("expected ErrInactive after retire, got %v", err)
	}
	if err := f.mgr.Retire(ctx, s.ID); err != nil {
		t.Fatalf("second retire should be a no-op, got %v", err)
	}

	// the order is still live, so the table stays claimed
	if got := f.tableStatus(t, f.table.ID); got != models.TableOccupied {
		t.Fatalf("expected table to stay %s, got %s", models.TableOccupied, got)
	}

	if n := f.sink.Count(models.KindSessionIssued); n != 1 {
		t.Fatalf("expected 1 %s alert, got %d", models.KindSessionIssued, n)
	}
	if n := f.sink.Count(models.KindOrderCreated); n != 1 {
		t.Fatalf("expected 1 %s alert, got %d", models.KindOrderCreated, n)
	}
}

func TestValidateUnknownCode(t *testing.T) {
	f := newFixture(t)

	if _, err := f.mgr.Validate(context.Background(), "QR-NOPE"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateReportsInactiveBeforeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-OLD")

	s, err := f.mgr.Issue(ctx, f.table.ID, 1, session.OrderBinding())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := f.mgr.Retire(ctx, s.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}
	f.clock.Set(s.ExpiresAt.Add(time.Minute))

	_, err = f.mgr.Validate(ctx, "QR-OLD")
	if !errors.Is(err, core.ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if errors.Is(err, core.ErrExpired) {
		t.Fatalf("expected no ErrExpired once inactive, got %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-R1")

	s, err := f.mgr.Issue(ctx, f.table.ID, 1, session.ReservationBinding(55, t0.Add(time.Hour)))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if retired, err := f.mgr.ExpireStale(ctx, s.ID); err != nil || retired {
		t.Fatalf("expected a session not yet due to stay, got retired=%v err=%v", retired, err)
	}

	f.clock.Set(s.ExpiresAt.Add(time.Second))
	retired, err := f.mgr.ExpireStale(ctx, s.ID)
	if err != nil || !retired {
		t.Fatalf("expected stale session retired, got retired=%v err=%v", retired, err)
	}
	if got := f.tableStatus(t, f.table.ID); got != models.TableAvailable {
		t.Fatalf("expected table %s, got %s", models.TableAvailable, got)
	}
	if retired, err := f.mgr.ExpireStale(ctx, s.ID); err != nil || !retired {
		t.Fatalf("expected repeat to report retired, got retired=%v err=%v", retired, err)
	}
}

func TestRetireUnknownSession(t *testing.T) {
	f := newFixture(t)

	if err := f.mgr.Retire(context.Background(), 999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueRejectsUnusableTables(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-1", "QR-2")
	broken := f.store.AddTable(models.Table{TenantID: 7, Name: "Mesa 2", Status: models.TableOutOfService})

	if _, err := f.mgr.Issue(ctx, 999, 1, session.OrderBinding()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing table, got %v", err)
	}
	if _, err := f.mgr.Issue(ctx, broken.ID, 1, session.OrderBinding()); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict for out of service table, got %v", err)
	}
	if n := len(f.sink.Alerts()); n != 0 {
		t.Fatalf("expected no alerts from failed issues, got %d", n)
	}
}

func TestIssueSupersedesPreviousSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-1", "QR-2")

	first, err := f.mgr.Issue(ctx, f.table.ID, 1, session.OrderBinding())
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := f.mgr.Issue(ctx, f.table.ID, 1, session.ExistingOrderBinding(*first.OrderID))
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if *second.OrderID != *first.OrderID {
		t.Fatalf("expected both sessions on order %d, got %d", *first.OrderID, *second.OrderID)
	}
	old, _ := f.store.Session(first.ID)
	if old.Active {
		t.Fatal("expected first session to be superseded")
	}
	if _, err := f.mgr.Validate(ctx, "QR-1"); !errors.Is(err, core.ErrInactive) {
		t.Fatalf("expected ErrInactive for superseded code, got %v", err)
	}
	if _, err := f.mgr.Validate(ctx, "QR-2"); err != nil {
		t.Fatalf("validate new code: %v", err)
	}
	if n := f.sink.Count(models.KindOrderCreated); n != 1 {
		t.Fatalf("expected a single order to be opened, got %d", n)
	}
}

func TestIssueRejectsForeignOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-1", "QR-2")

	if _, err := f.mgr.Issue(ctx, f.table.ID, 1, session.ExistingOrderBinding(12345)); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestReservationSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-R1", "QR-O1", "QR-R2")
	at := t0.Add(3 * time.Hour)

	s, err := f.mgr.Issue(ctx, f.table.ID, 1, session.ReservationBinding(77, at))
	if err != nil {
		t.Fatalf("issue reservation: %v", err)
	}
	if s.OrderID != nil {
		t.Fatalf("expected no order on a reservation session, got %d", *s.OrderID)
	}
	if s.ReservationID == nil || *s.ReservationID != 77 {
		t.Fatalf("expected reservation 77, got %v", s.ReservationID)
	}
	if !s.ExpiresAt.Equal(at.Add(10 * time.Minute)) {
		t.Fatalf("expected expiration %s, got %s", at.Add(10*time.Minute), s.ExpiresAt)
	}
	if got := f.tableStatus(t, f.table.ID); got != models.TableReserved {
		t.Fatalf("expected table %s, got %s", models.TableReserved, got)
	}

	if err := f.mgr.Retire(ctx, s.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if got := f.tableStatus(t, f.table.ID); got != models.TableAvailable {
		t.Fatalf("expected table %s after retiring reservation, got %s", models.TableAvailable, got)
	}

	if _, err := f.mgr.Issue(ctx, f.table.ID, 1, session.OrderBinding()); err != nil {
		t.Fatalf("issue order session: %v", err)
	}
	if _, err := f.mgr.Issue(ctx, f.table.ID, 1, session.ReservationBinding(78, at)); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict reserving a table with a live order, got %v", err)
	}
}

func TestIssueRetriesOnCodeCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-SAME", "QR-SAME", "QR-NEXT")
	other := f.store.AddTable(models.Table{TenantID: 7, Name: "Mesa 2"})

	if _, err := f.mgr.Issue(ctx, f.table.ID, 1, session.OrderBinding()); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	s, err := f.mgr.Issue(ctx, other.ID, 1, session.OrderBinding())
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if s.Code != "QR-NEXT" {
		t.Fatalf("expected retry to land on QR-NEXT, got %q", s.Code)
	}
}

func TestIssueGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	codes := []string{"QR-SAME"}
	for i := 0; i < core.MaxCodeAttempts; i++ {
		codes = append(codes, "QR-SAME")
	}
	f := newFixture(t, codes...)
	other := f.store.AddTable(models.Table{TenantID: 7, Name: "Mesa 2"})

	if _, err := f.mgr.Issue(ctx, f.table.ID, 1, session.OrderBinding()); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if _, err := f.mgr.Issue(ctx, other.ID, 1, session.OrderBinding()); !errors.Is(err, core.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
	if got := f.tableStatus(t, other.ID); got != models.TableAvailable {
		t.Fatalf("expected failed issue to leave table %s, got %s", models.TableAvailable, got)
	}
}

func TestStaleListsExpiredActiveSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "QR-1")

	s, err := f.mgr.Issue(ctx, f.table.ID, 1, session.OrderBinding())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	stale, err := f.mgr.Stale(ctx, f.table.TenantID)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected no stale sessions yet, got %d", len(stale))
	}

	f.clock.Advance(3 * time.Hour)
	stale, err = f.mgr.Stale(ctx, f.table.TenantID)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != s.ID {
		t.Fatalf("expected session %d to be stale, got %+v", s.ID, stale)
	}

	if stale, _ := f.mgr.Stale(ctx, 999); len(stale) != 0 {
		t.Fatalf("expected other tenants to see nothing, got %d", len(stale))
	}
}
