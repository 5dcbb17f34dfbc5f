package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighthouse/internal/auth"
	"lighthouse/internal/engine"
	"lighthouse/internal/events"
	"lighthouse/internal/store"
	"lighthouse/internal/store/memory"
	transportmem "lighthouse/internal/transport/memory"
)

func newTestServer(t *testing.T, authSvc *auth.Service) (*httptest.Server, *memory.Store, *memory.AuditStore, *transportmem.Bus) {
	t.Helper()
	st := memory.New()
	audit := memory.NewAuditStore()
	bus := transportmem.NewBus(events.Channels(), 32)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(st, audit, &engine.Stats{}, authSvc, bus, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st, audit, bus
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)
	var body map[string]string
	status := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestListInventory(t *testing.T) {
	srv, st, _, _ := newTestServer(t, nil)
	require.NoError(t, st.Inventory().Create(context.Background(), &store.InventoryItem{
		ID: 1, Name: "widget", CurrentStock: 50, SafetyStock: 10, StockLevel: store.StockHigh,
	}))

	var body struct {
		Items []inventoryResponse `json:"items"`
	}
	status := getJSON(t, srv.URL+"/v1/inventory", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "widget", body.Items[0].Name)
	assert.Equal(t, "HIGH", body.Items[0].StockLevel)
}

func TestGetInventory_NotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/inventory/99", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/inventory/abc", nil))
}

func TestGetPurchaseOrderWithLines(t *testing.T) {
	srv, st, _, _ := newTestServer(t, nil)
	ctx := context.Background()
	po := &store.PurchaseOrder{Supplier: "acme", ExpectedDelivery: time.Now().Add(72 * time.Hour)}
	require.NoError(t, st.PurchaseOrders().Create(ctx, po, []*store.POLineItem{
		{ItemID: 1, QuantityOrdered: 10},
	}))

	var body purchaseOrderResponse
	status := getJSON(t, srv.URL+"/v1/purchase-orders/1", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acme", body.Supplier)
	assert.Equal(t, "created", body.Status)
	require.Len(t, body.Lines, 1)
	assert.Equal(t, int64(10), body.Lines[0].QuantityOrdered)
}

func TestListAlerts_Filtered(t *testing.T) {
	srv, st, _, _ := newTestServer(t, nil)
	ctx := context.Background()
	itemID := int64(1)
	_, err := st.Alerts().Insert(ctx, &store.Alert{Type: store.AlertLowStock, Severity: store.SeverityMedium, ItemID: &itemID})
	require.NoError(t, err)
	id2, err := st.Alerts().Insert(ctx, &store.Alert{Type: store.AlertStockOut, Severity: store.SeverityCritical, ItemID: &itemID})
	require.NoError(t, err)
	require.NoError(t, st.Alerts().Resolve(ctx, id2, time.Now()))

	var body struct {
		Alerts []alertResponse `json:"alerts"`
	}
	status := getJSON(t, srv.URL+"/v1/alerts?status=active", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "low_stock", body.Alerts[0].Type)

	body.Alerts = nil
	status = getJSON(t, srv.URL+"/v1/alerts?severity=critical", &body)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "stock_out", body.Alerts[0].Type)
}

func TestStats(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)
	var snap engine.StatsSnapshot
	status := getJSON(t, srv.URL+"/v1/stats", &snap)
	assert.Equal(t, http.StatusOK, status)
	assert.Zero(t, snap.Received)
}

func TestDeadLetterReplay(t *testing.T) {
	srv, _, audit, bus := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, audit.AddDeadLetter(ctx, store.DeadLetter{
		ID:      "dl-1",
		Channel: "inventory_changed",
		Payload: `{"item_id":1,"old_quantity":5,"new_quantity":3,"change_type":"UPDATE"}`,
	}))

	resp, err := http.Post(srv.URL+"/v1/deadletters/dl-1/replay", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Republished on the original channel.
	select {
	case n := <-bus.Notifications():
		assert.Equal(t, "inventory_changed", n.Channel)
		assert.Contains(t, n.Payload, `"item_id":1`)
	default:
		t.Fatal("expected replayed notification")
	}

	// Removed from the queue.
	_, err = audit.GetDeadLetter(ctx, "dl-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	resp, err = http.Post(srv.URL+"/v1/deadletters/dl-1/replay", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	authSvc, err := auth.NewService(auth.Config{
		Enabled:        true,
		PrivateKeyFile: filepath.Join(t.TempDir(), "key.pem"),
		Users:          []auth.UserConfig{{Username: "ops", PasswordHash: hash}},
	})
	require.NoError(t, err)

	srv, _, _, _ := newTestServer(t, authSvc)

	// Unauthenticated requests are rejected.
	assert.Equal(t, http.StatusUnauthorized, getJSON(t, srv.URL+"/v1/inventory", nil))

	// Health stays open.
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", nil))

	// Login and retry with the token.
	resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json",
		strings.NewReader(`{"username":"ops","password":"hunter2"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/inventory", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	authResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authResp.Body.Close()
	assert.Equal(t, http.StatusOK, authResp.StatusCode)

	// Bad credentials rejected.
	resp, err = http.Post(srv.URL+"/v1/auth/login", "application/json",
		strings.NewReader(`{"username":"ops","password":"wrong"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
