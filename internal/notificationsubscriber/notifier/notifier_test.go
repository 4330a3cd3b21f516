package notifier

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

func TestDisplayNotification(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf, logger.NewNop())

	n.DisplayNotification(&models.Alert{
		TenantID: 3,
		Kind:     models.KindOrderAlert,
		OrderID:  11,
		TableID:  4,
		Payload:  map[string]any{"tipo": "servido_5min", "minutos_restantes": 5},
		At:       time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
	})

	want := "[2026-03-14T19:00:00Z] tenant 3: alerta_pedido table=4 order=11 minutos_restantes=5 tipo=servido_5min\n"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFormatOmitsMissingIDs(t *testing.T) {
	got := Format(&models.Alert{TenantID: 1, Kind: models.KindTableChanged})
	if strings.Contains(got, "order=") || strings.Contains(got, "table=") {
		t.Fatalf("expected no ids in %q", got)
	}
}
