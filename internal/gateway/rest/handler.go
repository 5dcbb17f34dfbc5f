// Package rest exposes the monitoring API: inventory, orders, alerts,
// engine statistics and the dead letter queue.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/schema"

	"lighthouse/internal/auth"
	"lighthouse/internal/engine"
	"lighthouse/internal/store"
	"lighthouse/internal/transport"
)

const defaultMaxBodySize = 1 << 20 // 1MB

// APIError is the structured error response body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Handler serves the REST API.
type Handler struct {
	store   store.Store
	audit   store.AuditStore
	stats   *engine.Stats
	auth    *auth.Service
	tr      transport.Transport
	logger  *slog.Logger
	decoder *schema.Decoder
}

// NewHandler creates the REST handler. auth may be nil, which disables
// authentication; tr may be nil, which disables dead letter replay.
func NewHandler(st store.Store, audit store.AuditStore, stats *engine.Stats, authSvc *auth.Service, tr transport.Transport, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &Handler{
		store:   st,
		audit:   audit,
		stats:   stats,
		auth:    authSvc,
		tr:      tr,
		logger:  logger.With("component", "rest"),
		decoder: decoder,
	}
}

// RegisterRoutes registers all API routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /v1/auth/login", h.handleLogin)

	mux.HandleFunc("GET /v1/inventory", h.requireAuth(h.handleListInventory))
	mux.HandleFunc("GET /v1/inventory/{id}", h.requireAuth(h.handleGetInventory))
	mux.HandleFunc("GET /v1/purchase-orders", h.requireAuth(h.handleListPurchaseOrders))
	mux.HandleFunc("GET /v1/purchase-orders/{id}", h.requireAuth(h.handleGetPurchaseOrder))
	mux.HandleFunc("GET /v1/alerts", h.requireAuth(h.handleListAlerts))
	mux.HandleFunc("GET /v1/stats", h.requireAuth(h.handleStats))
	mux.HandleFunc("GET /v1/deadletters", h.requireAuth(h.handleListDeadLetters))
	mux.HandleFunc("GET /v1/deadletters/{id}", h.requireAuth(h.handleGetDeadLetter))
	mux.HandleFunc("POST /v1/deadletters/{id}/replay", h.requireAuth(h.handleReplayDeadLetter))
}

// requireAuth enforces a Bearer token when auth is configured.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	if h.auth == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing bearer token")
			return
		}
		if _, err := h.auth.Verify(header[len(prefix):]); err != nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token")
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "authentication not configured")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, defaultMaxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	token, expires, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

type inventoryResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CurrentStock int64     `json:"current_stock"`
	SafetyStock  int64     `json:"safety_stock"`
	Location     string    `json:"location"`
	StockLevel   string    `json:"stock_level"`
	LastUpdated  time.Time `json:"last_updated"`
}

func toInventoryResponse(item *store.InventoryItem) inventoryResponse {
	return inventoryResponse{
		ID:           item.ID,
		Name:         item.Name,
		CurrentStock: item.CurrentStock,
		SafetyStock:  item.SafetyStock,
		Location:     item.Location,
		StockLevel:   string(item.StockLevel),
		LastUpdated:  item.LastUpdated,
	}
}

func (h *Handler) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.Inventory().List(r.Context())
	if err != nil {
		h.internalError(w, "list inventory", err)
		return
	}
	out := make([]inventoryResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toInventoryResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid item id")
		return
	}
	item, err := h.store.Inventory().Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "item not found")
		return
	}
	if err != nil {
		h.internalError(w, "get inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponse(item))
}

type purchaseOrderResponse struct {
	ID               int64              `json:"id"`
	Supplier         string             `json:"supplier"`
	Status           string             `json:"status"`
	CreatedDate      time.Time          `json:"created_date"`
	ExpectedDelivery *time.Time         `json:"expected_delivery,omitempty"`
	TotalValue       float64            `json:"total_value"`
	Lines            []lineItemResponse `json:"lines,omitempty"`
}

type lineItemResponse struct {
	ItemID           int64 `json:"item_id"`
	QuantityOrdered  int64 `json:"quantity_ordered"`
	QuantityReceived int64 `json:"quantity_received"`
}

func toPOResponse(po *store.PurchaseOrder, lines []*store.POLineItem) purchaseOrderResponse {
	resp := purchaseOrderResponse{
		ID:          po.ID,
		Supplier:    po.Supplier,
		Status:      string(po.Status),
		CreatedDate: po.CreatedDate,
		TotalValue:  po.TotalValue,
	}
	if !po.ExpectedDelivery.IsZero() {
		t := po.ExpectedDelivery
		resp.ExpectedDelivery = &t
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, lineItemResponse{
			ItemID:           l.ItemID,
			QuantityOrdered:  l.QuantityOrdered,
			QuantityReceived: l.QuantityReceived,
		})
	}
	return resp
}

func (h *Handler) handleListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	pos, err := h.store.PurchaseOrders().ListActive(r.Context())
	if err != nil {
		h.internalError(w, "list purchase orders", err)
		return
	}
	out := make([]purchaseOrderResponse, 0, len(pos))
	for _, po := range pos {
		out = append(out, toPOResponse(po, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchase_orders": out})
}

func (h *Handler) handleGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid purchase order id")
		return
	}
	po, err := h.store.PurchaseOrders().Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "purchase order not found")
		return
	}
	if err != nil {
		h.internalError(w, "get purchase order", err)
		return
	}
	lines, err := h.store.PurchaseOrders().LineItems(r.Context(), id)
	if err != nil {
		h.internalError(w, "get line items", err)
		return
	}
	writeJSON(w, http.StatusOK, toPOResponse(po, lines))
}

type alertQuery struct {
	Status   string `schema:"status"`
	Severity string `schema:"severity"`
	Type     string `schema:"type"`
	Limit    int    `schema:"limit"`
}

type alertResponse struct {
	ID         int64      `json:"id"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	ItemID     *int64     `json:"item_id,omitempty"`
	POID       *int64     `json:"po_id,omitempty"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var q alertQuery
	if err := h.decoder.Decode(&q, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid query parameters")
		return
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}

	alerts, err := h.store.Alerts().List(r.Context(), store.AlertFilter{
		Status:   store.AlertStatus(q.Status),
		Severity: store.AlertSeverity(q.Severity),
		Type:     store.AlertType(q.Type),
		Limit:    q.Limit,
	})
	if err != nil {
		h.internalError(w, "list alerts", err)
		return
	}

	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertResponse{
			ID:         a.ID,
			Type:       string(a.Type),
			Severity:   string(a.Severity),
			ItemID:     a.ItemID,
			POID:       a.POID,
			Message:    a.Message,
			Status:     string(a.Status),
			CreatedAt:  a.CreatedAt,
			ResolvedAt: a.ResolvedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

type deadLetterResponse struct {
	ID          string    `json:"id"`
	Channel     string    `json:"channel"`
	Payload     string    `json:"payload"`
	FailureKind string    `json:"failure_kind"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDeadLetterResponse(dl *store.DeadLetter) deadLetterResponse {
	return deadLetterResponse{
		ID:          dl.ID,
		Channel:     dl.Channel,
		Payload:     dl.Payload,
		FailureKind: dl.FailureKind,
		Error:       dl.Error,
		Attempts:    dl.Attempts,
		CreatedAt:   dl.CreatedAt,
	}
}

func (h *Handler) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	letters, err := h.audit.ListDeadLetters(r.Context(), limit)
	if err != nil {
		h.internalError(w, "list dead letters", err)
		return
	}
	out := make([]deadLetterResponse, 0, len(letters))
	for _, dl := range letters {
		out = append(out, toDeadLetterResponse(dl))
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": out})
}

func (h *Handler) handleGetDeadLetter(w http.ResponseWriter, r *http.Request) {
	dl, err := h.audit.GetDeadLetter(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "dead letter not found")
		return
	}
	if err != nil {
		h.internalError(w, "get dead letter", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeadLetterResponse(dl))
}

// handleReplayDeadLetter republishes the quarantined payload on its original
// channel and removes it from the queue. The replay goes through the full
// pipeline again, dedup window included.
func (h *Handler) handleReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	if h.tr == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "replay not available")
		return
	}
	id := r.PathValue("id")
	dl, err := h.audit.GetDeadLetter(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "dead letter not found")
		return
	}
	if err != nil {
		h.internalError(w, "get dead letter", err)
		return
	}

	if err := h.tr.Publish(r.Context(), dl.Channel, dl.Payload); err != nil {
		h.internalError(w, "replay publish", err)
		return
	}
	if err := h.audit.DeleteDeadLetter(r.Context(), id); err != nil {
		h.internalError(w, "delete dead letter", err)
		return
	}
	h.logger.Info("dead letter replayed", "id", id, "channel", dl.Channel)
	writeJSON(w, http.StatusOK, map[string]string{"status": "replayed", "id": id})
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIError{Code: code, Message: message}); err != nil {
		slog.Warn("Failed to encode error response", "error", err)
	}
}
