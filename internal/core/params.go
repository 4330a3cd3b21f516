package core

import (
	"time"

	"mesa-qr/pkg/models"
)

const (
	VerifierInterval  = 30 * time.Second
	SuppressionWindow = 5 * time.Minute
	RetentionWindow   = 30 * time.Minute
	KanbanAfter       = 30 * time.Minute

	TerminadoWarnAfter     = 5 * time.Minute
	TerminadoCriticalAfter = 10 * time.Minute

	OrderSessionTTL  = 2 * time.Hour
	ReservationGrace = 10 * time.Minute
	ServeGrace       = 30 * time.Minute

	// attempts before giving up on a unique session code
	MaxCodeAttempts = 5
)

// ServedCountdown holds the minutes-to-expiration thresholds for served
// orders, most urgent first.
var ServedCountdown = []struct {
	Minutes int
	Alert   string
}{
	{5, models.AlertServido5},
	{10, models.AlertServido10},
	{15, models.AlertServido15},
}
