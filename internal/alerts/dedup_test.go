package alerts

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func TestShouldFireSuppressesWithinWindow(t *testing.T) {
	d := NewDeduplicator(5*time.Minute, 30*time.Minute)

	if !d.ShouldFire(1, "terminado_5min", t0) {
		t.Fatal("expected first alert to fire")
	}
	if d.ShouldFire(1, "terminado_5min", t0.Add(time.Minute)) {
		t.Fatal("expected alert one minute later to be suppressed")
	}
	if !d.ShouldFire(1, "terminado_5min", t0.Add(6*time.Minute)) {
		t.Fatal("expected alert after the window to fire")
	}
}

func TestShouldFireAtWindowBoundary(t *testing.T) {
	d := NewDeduplicator(5*time.Minute, 30*time.Minute)

	d.ShouldFire(1, "servido_5min", t0)
	if d.ShouldFire(1, "servido_5min", t0.Add(5*time.Minute-time.Nanosecond)) {
		t.Fatal("expected alert just inside the window to be suppressed")
	}
	if !d.ShouldFire(1, "servido_5min", t0.Add(5*time.Minute)) {
		t.Fatal("expected alert exactly at the window edge to fire")
	}
}

func TestShouldFireKeysOnOrderAndKind(t *testing.T) {
	d := NewDeduplicator(5*time.Minute, 30*time.Minute)

	d.ShouldFire(1, "terminado_5min", t0)
	if !d.ShouldFire(1, "terminado_10min", t0) {
		t.Fatal("expected another kind on the same order to fire")
	}
	if !d.ShouldFire(2, "terminado_5min", t0) {
		t.Fatal("expected the same kind on another order to fire")
	}
	if got := d.Len(); got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}
}

func TestSweepDropsOldRecords(t *testing.T) {
	d := NewDeduplicator(5*time.Minute, 30*time.Minute)

	d.ShouldFire(1, "urgencia_kanban", t0)
	d.ShouldFire(2, "urgencia_kanban", t0.Add(20*time.Minute))

	if removed := d.Sweep(t0.Add(30 * time.Minute)); removed != 0 {
		t.Fatalf("expected nothing swept at exactly the retention age, got %d", removed)
	}
	if removed := d.Sweep(t0.Add(31 * time.Minute)); removed != 1 {
		t.Fatalf("expected 1 record swept, got %d", removed)
	}
	if got := d.Len(); got != 1 {
		t.Fatalf("expected 1 record left, got %d", got)
	}
	if !d.ShouldFire(1, "urgencia_kanban", t0.Add(31*time.Minute)) {
		t.Fatal("expected swept pair to fire again")
	}
}

func TestShouldFireConcurrentCallersFireOnce(t *testing.T) {
	d := NewDeduplicator(5*time.Minute, 30*time.Minute)

	var (
		wg    sync.WaitGroup
		fired atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.ShouldFire(42, "servido_10min", t0) {
				fired.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := fired.Load(); got != 1 {
		t.Fatalf("expected exactly one caller to fire, got %d", got)
	}
}
