package verifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mesa-qr/pkg/logger"
)

type Ticker interface {
	Tick(ctx context.Context, tenantID int64)
}

// Supervisor keeps one recurring tick per tenant alive while that tenant has
// subscribers.
type Supervisor struct {
	ticker   Ticker
	interval time.Duration
	logger   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	tenants map[int64]*tenantTask
}

type tenantTask struct {
	subscribers int
}

func NewSupervisor(ticker Ticker, interval time.Duration, log *logger.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		ticker:   ticker,
		interval: interval,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
		tenants:  make(map[int64]*tenantTask),
	}
}

// Acquire registers a subscriber and starts the tenant's ticks if it is the
// first one. It returns the new subscriber count.
func (s *Supervisor) Acquire(tenantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tenants[tenantID]
	if !ok {
		if s.ctx.Err() != nil {
			return 0
		}
		task = &tenantTask{}
		s.tenants[tenantID] = task
		s.wg.Add(1)
		go s.run(tenantID, task)
		s.logger.Info(requestID(tenantID), "verifier_started", fmt.Sprintf("Verifier started for tenant %d", tenantID))
	}
	task.subscribers++
	return task.subscribers
}

// Release drops a subscriber. The tenant's loop stops at its next wake-up
// once no subscribers remain; a tick in progress is left to finish.
func (s *Supervisor) Release(tenantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tenants[tenantID]
	if !ok {
		return 0
	}
	if task.subscribers > 0 {
		task.subscribers--
	}
	return task.subscribers
}

func (s *Supervisor) Running(tenantID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tenants[tenantID]
	return ok
}

func (s *Supervisor) Subscribers(tenantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tenants[tenantID]; ok {
		return task.subscribers
	}
	return 0
}

// Shutdown stops every tenant loop and waits for in-flight ticks or ctx.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) run(tenantID int64, task *tenantTask) {
	defer s.wg.Done()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	// ticks are not tied to shutdown so a running one completes
	tickCtx := context.WithoutCancel(s.ctx)

	for {
		select {
		case <-s.ctx.Done():
			s.remove(tenantID, task)
			return
		case <-timer.C:
		}

		if s.stopIfIdle(tenantID, task) {
			return
		}
		s.ticker.Tick(tickCtx, tenantID)
		if s.stopIfIdle(tenantID, task) {
			return
		}
		timer.Reset(s.interval)
	}
}

func (s *Supervisor) stopIfIdle(tenantID int64, task *tenantTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.subscribers > 0 {
		return false
	}
	if s.tenants[tenantID] == task {
		delete(s.tenants, tenantID)
	}
	s.logger.Info(requestID(tenantID), "verifier_stopped", fmt.Sprintf("Verifier stopped for tenant %d", tenantID))
	return true
}

func (s *Supervisor) remove(tenantID int64, task *tenantTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tenants[tenantID] == task {
		delete(s.tenants, tenantID)
	}
}

func requestID(tenantID int64) string {
	return fmt.Sprintf("tenant-%d", tenantID)
}
