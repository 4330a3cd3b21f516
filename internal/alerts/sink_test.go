package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"mesa-qr/internal/alerts/alertstest"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"
)

func TestFanoutPublishesToEverySink(t *testing.T) {
	first := &alertstest.Recorder{Err: errors.New("first down")}
	second := &alertstest.Recorder{}
	third := &alertstest.Recorder{Err: errors.New("third down")}

	err := Fanout{first, second, third}.Publish(context.Background(), models.Alert{TenantID: 1, Kind: models.KindOrderAlert})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, first.Err) || !errors.Is(err, third.Err) {
		t.Fatalf("expected both failures reported, got %v", err)
	}
	for i, r := range []*alertstest.Recorder{first, second, third} {
		if n := r.Count(models.KindOrderAlert); n != 1 {
			t.Fatalf("sink %d: expected 1 alert, got %d", i, n)
		}
	}
}

func TestFanoutWithoutFailures(t *testing.T) {
	if err := (Fanout{&alertstest.Recorder{}}).Publish(context.Background(), models.Alert{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestLogSinkWritesAlert(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logger.New("test", &buf, "info"))

	err := sink.Publish(context.Background(), models.Alert{
		TenantID: 9,
		Kind:     models.KindKanbanUrgency,
		OrderID:  12,
		Payload:  map[string]any{"minutos_espera": 31},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["action"] != string(models.KindKanbanUrgency) {
		t.Fatalf("expected action %s, got %v", models.KindKanbanUrgency, entry["action"])
	}
}
