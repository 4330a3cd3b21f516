// Package alertstest provides an in-memory alert sink for tests.
package alertstest

import (
	"context"
	"sync"

	"mesa-qr/pkg/models"
)

// Recorder keeps published alerts in memory. A non-nil Err is returned from
// every Publish after the alert is recorded.
type Recorder struct {
	mu     sync.Mutex
	alerts []models.Alert
	Err    error
}

func (r *Recorder) Publish(_ context.Context, a models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.Err
}

func (r *Recorder) Alerts() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Alert(nil), r.alerts...)
}

// Count returns how many alerts of kind were published.
func (r *Recorder) Count(kind models.AlertKind) int {
	n := 0
	for _, a := range r.Alerts() {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.alerts = nil
	r.mu.Unlock()
}
