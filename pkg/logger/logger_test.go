package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return entry
}

func TestInfoWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	New("table-service", &buf, "info").Info("req-1", "session_issued", "Issued")

	entry := decode(t, &buf)
	for key, want := range map[string]string{
		"service":    "table-service",
		"request_id": "req-1",
		"action":     "session_issued",
		"message":    "Issued",
		"level":      "info",
	} {
		if entry[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, entry[key])
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatal("expected timestamp field")
	}
}

func TestErrorAttachesError(t *testing.T) {
	var buf bytes.Buffer
	New("svc", &buf, "info").Error("req", "tick_failed", "Tick failed", errors.New("db down"))

	entry := decode(t, &buf)
	errField, ok := entry["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", entry["error"])
	}
	if errField["msg"] != "db down" {
		t.Fatalf("expected msg db down, got %v", errField["msg"])
	}
	if !strings.Contains(errField["stack"].(string), "goroutine") {
		t.Fatal("expected a stack trace")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := New("svc", &buf, "info")

	l.Debug("req", "noise", "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered, got %q", buf.String())
	}

	l.SetLevel("debug")
	l.Debug("req", "noise", "shown")
	if buf.Len() == 0 {
		t.Fatal("expected debug after SetLevel")
	}

	buf.Reset()
	l.SetLevel("nonsense")
	l.Debug("req", "noise", "still shown")
	if buf.Len() == 0 {
		t.Fatal("expected an unknown level to leave the current one")
	}
}
