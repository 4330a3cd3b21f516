package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, h *Hub, tenantID int64) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, tenantID, "test")
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, tenantID int64, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients(tenantID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients for tenant %d, got %d", want, tenantID, h.Clients(tenantID))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversToTenantClients(t *testing.T) {
	h := NewHub(logger.NewNop())
	mine := dial(t, h, 1)
	other := dial(t, h, 2)
	waitForClients(t, h, 1, 1)
	waitForClients(t, h, 2, 1)

	sent := models.Alert{TenantID: 1, Kind: models.KindOrderAlert, OrderID: 8, Payload: map[string]any{"tipo": models.AlertServido5}}
	if err := h.Publish(context.Background(), sent); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = mine.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Alert
	if err := mine.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != sent.Kind || got.OrderID != sent.OrderID || got.Payload["tipo"] != models.AlertServido5 {
		t.Fatalf("expected %+v, got %+v", sent, got)
	}

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := other.ReadJSON(&got); err == nil {
		t.Fatal("expected the other tenant to receive nothing")
	}
}

func TestHubForgetsClosedClients(t *testing.T) {
	h := NewHub(logger.NewNop())
	conn := dial(t, h, 4)
	waitForClients(t, h, 4, 1)

	conn.Close()
	waitForClients(t, h, 4, 0)

	if err := h.Publish(context.Background(), models.Alert{TenantID: 4, Kind: models.KindTableChanged}); err != nil {
		t.Fatalf("publish without clients: %v", err)
	}
}
