package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"mesa-qr/internal/core"
	"mesa-qr/internal/orders"
	"mesa-qr/internal/session"
	"mesa-qr/pkg/logger"
	"mesa-qr/pkg/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// LiveServer streams a tenant's alerts over an upgraded connection.
type LiveServer interface {
	Serve(w http.ResponseWriter, r *http.Request, tenantID int64, requestID string)
}

// Subscriptions is told when a tenant gains or loses a live client.
type Subscriptions interface {
	Acquire(tenantID int64) int
	Release(tenantID int64) int
}

type TableHandler struct {
	sessions *session.Manager
	orders   *orders.StateMachine
	live     LiveServer
	subs     Subscriptions
	logger   *logger.Logger
}

func NewTableHandler(sessions *session.Manager, sm *orders.StateMachine, live LiveServer, subs Subscriptions, logger *logger.Logger) *TableHandler {
	return &TableHandler{
		sessions: sessions,
		orders:   sm,
		live:     live,
		subs:     subs,
		logger:   logger,
	}
}

func (h *TableHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tables/{id:[0-9]+}/sessions", h.IssueSession).Methods(http.MethodPost)
	api.HandleFunc("/tables/{id:[0-9]+}/close", h.CloseTable).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{code}", h.ValidateSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id:[0-9]+}", h.RetireSession).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{id:[0-9]+}/items", h.AddItems).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}/state", h.AdvanceOrder).Methods(http.MethodPatch)
	api.HandleFunc("/suborders/{id:[0-9]+}/state", h.AdvanceSubOrder).Methods(http.MethodPatch)
	api.HandleFunc("/tenants/{id:[0-9]+}/live", h.Live).Methods(http.MethodGet)
	return r
}

func (h *TableHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TableHandler) IssueSession(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	tableID, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	var req models.IssueSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error(requestID, "validation_failed", "Invalid JSON payload", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	binding, err := bindingFrom(req)
	if err != nil {
		h.logger.Error(requestID, "validation_failed", "Invalid binding", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.sessions.Issue(r.Context(), tableID, req.OwnerID, binding)
	if err != nil {
		h.fail(w, requestID, "session_issue_failed", err)
		return
	}
	h.logger.Info(requestID, "session_issued", fmt.Sprintf("Session %s issued for table %d", s.Code, tableID))
	writeJSON(w, http.StatusCreated, s)
}

func (h *TableHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	view, err := h.sessions.Validate(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.fail(w, requestID, "session_validate_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TableHandler) RetireSession(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	sessionID, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}
	if err := h.sessions.Retire(r.Context(), sessionID); err != nil {
		h.fail(w, requestID, "session_retire_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TableHandler) CloseTable(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	tableID, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}
	if err := h.orders.CloseTable(r.Context(), tableID); err != nil {
		h.fail(w, requestID, "table_close_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TableHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	orderID, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	var req models.AddItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error(requestID, "validation_failed", "Invalid JSON payload", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	items := make([]models.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, models.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Note:      item.Note,
		})
	}

	so, err := h.orders.AddItems(r.Context(), orderID, items)
	if err != nil {
		h.fail(w, requestID, "items_add_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, so)
}

func (h *TableHandler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	orderID, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	var req models.StateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	to, err := models.ParseOrderState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.AdvanceOrder(r.Context(), orderID, to)
	if err != nil {
		h.fail(w, requestID, "order_advance_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *TableHandler) AdvanceSubOrder(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	subOrderID, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	var req models.StateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	to, err := models.ParseSubOrderState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	so, err := h.orders.AdvanceSubOrder(r.Context(), subOrderID, to)
	if err != nil {
		h.fail(w, requestID, "suborder_advance_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, so)
}

func (h *TableHandler) Live(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	tenantID, ok := h.pathID(w, r, requestID)
	if !ok {
		return
	}

	subscribers := h.subs.Acquire(tenantID)
	h.logger.Info(requestID, "live_subscribed",
		fmt.Sprintf("Tenant %d now has %d live subscribers", tenantID, subscribers))
	defer func() {
		subscribers := h.subs.Release(tenantID)
		h.logger.Info(requestID, "live_unsubscribed",
			fmt.Sprintf("Tenant %d now has %d live subscribers", tenantID, subscribers))
	}()

	h.live.Serve(w, r, tenantID, requestID)
}

func (h *TableHandler) pathID(w http.ResponseWriter, r *http.Request, requestID string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		h.logger.Debug(requestID, "validation_failed", "Invalid id in path")
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func (h *TableHandler) fail(w http.ResponseWriter, requestID, action string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(requestID, action, "Request failed", err)
		writeError(w, status, "Internal server error")
		return
	}
	h.logger.Debug(requestID, action, err.Error())
	writeError(w, status, err.Error())
}

// StatusFor maps engine errors onto HTTP statuses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrExpired), errors.Is(err, core.ErrInactive):
		return http.StatusGone
	case errors.Is(err, core.ErrConflict),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrOrderClosed):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func bindingFrom(req models.IssueSessionRequest) (session.Binding, error) {
	switch {
	case req.ReservationID != nil && req.OrderID != nil:
		return session.Binding{}, errors.New("id_pedido and id_reserva are mutually exclusive")
	case req.ReservationID != nil:
		if req.ReservationAt == nil {
			return session.Binding{}, errors.New("fecha_reserva is required with id_reserva")
		}
		return session.ReservationBinding(*req.ReservationID, req.ReservationAt.UTC()), nil
	case req.OrderID != nil:
		return session.ExistingOrderBinding(*req.OrderID), nil
	default:
		return session.OrderBinding(), nil
	}
}

func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{Error: msg})
}
