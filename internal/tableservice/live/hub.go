package live

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 64
)

// Hub fans alerts out to WebSocket clients grouped by tenant.
type Hub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
}

type client struct {
	conn     *websocket.Conn
	tenantID int64
	send     chan models.Alert
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[int64]map[*client]struct{}),
	}
}

// Publish queues the alert for the tenant's clients. A client whose buffer is
// full misses the alert.
func (h *Hub) Publish(_ context.Context, alert models.Alert) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients[alert.TenantID] {
		select {
		case c.send <- alert:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%s dropped for %d slow clients of tenant %d", alert.Kind, dropped, alert.TenantID)
	}
	return nil
}

func (h *Hub) Clients(tenantID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}

// Serve upgrades the request and streams the tenant's alerts until the client
// goes away. It blocks for the lifetime of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tenantID int64, requestID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(requestID, "websocket_upgrade_failed", "Failed to upgrade connection", err)
		return
	}

	c := &client{
		conn:     conn,
		tenantID: tenantID,
		send:     make(chan models.Alert, sendBufferSize),
	}
	h.register(c)

	done := make(chan struct{})
	go h.writePump(c, done, requestID)
	h.readPump(c)

	h.unregister(c)
	close(done)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.tenantID] == nil {
		h.clients[c.tenantID] = make(map[*client]struct{})
	}
	h.clients[c.tenantID][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[c.tenantID], c)
	if len(h.clients[c.tenantID]) == 0 {
		delete(h.clients, c.tenantID)
	}
}

// readPump discards client frames; it only exists to notice disconnects.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client, done <-chan struct{}, requestID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case alert := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(alert); err != nil {
				h.logger.Debug(requestID, "live_write_failed", err.Error())
				c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
