package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighthouse/internal/store"
)

type captured struct {
	channel string
	payload string
}

func newStoreWithNotifier() (*Store, *[]captured) {
	s := New()
	var got []captured
	s.SetNotifier(func(channel, payload string) {
		got = append(got, captured{channel, payload})
	})
	return s, &got
}

func TestInventory_SetStockNotifies(t *testing.T) {
	ctx := context.Background()
	s, got := newStoreWithNotifier()

	require.NoError(t, s.Inventory().Create(ctx, &store.InventoryItem{
		ID: 1, Name: "widget", CurrentStock: 100, SafetyStock: 20, StockLevel: store.StockHigh,
	}))
	require.Len(t, *got, 1, "create fires the inventory trigger")

	require.NoError(t, s.Inventory().SetStock(ctx, 1, 60))
	require.Len(t, *got, 2)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte((*got)[1].payload), &payload))
	assert.Equal(t, "inventory_changed", (*got)[1].channel)
	assert.Equal(t, float64(100), payload["old_quantity"])
	assert.Equal(t, float64(60), payload["new_quantity"])
	assert.Equal(t, "UPDATE", payload["change_type"])
}

func TestInventory_UnchangedQuantityDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	s, got := newStoreWithNotifier()

	require.NoError(t, s.Inventory().Create(ctx, &store.InventoryItem{ID: 1, CurrentStock: 50}))
	before := len(*got)

	require.NoError(t, s.Inventory().SetStock(ctx, 1, 50))
	_, err := s.Inventory().AdjustStock(ctx, 1, 0)
	require.NoError(t, err)

	assert.Len(t, *got, before, "no-op quantity writes must not fire the trigger")
}

func TestInventory_SetStockLevelDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	s, got := newStoreWithNotifier()

	require.NoError(t, s.Inventory().Create(ctx, &store.InventoryItem{ID: 1, CurrentStock: 50}))
	before := len(*got)

	require.NoError(t, s.Inventory().SetStockLevel(ctx, 1, store.StockLow))
	assert.Len(t, *got, before, "classification writes must not fire the trigger")

	item, err := s.Inventory().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, store.StockLow, item.StockLevel)
}

func TestInventory_AdjustStock(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Inventory().Create(ctx, &store.InventoryItem{ID: 1, CurrentStock: 10}))

	got, err := s.Inventory().AdjustStock(ctx, 1, -4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got)

	_, err = s.Inventory().AdjustStock(ctx, 99, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPurchaseOrders_StatusChangeNotifies(t *testing.T) {
	ctx := context.Background()
	s, got := newStoreWithNotifier()

	po := &store.PurchaseOrder{Supplier: "acme"}
	require.NoError(t, s.PurchaseOrders().Create(ctx, po, []*store.POLineItem{
		{ItemID: 1, QuantityOrdered: 10},
	}))
	require.NotZero(t, po.ID)
	require.Len(t, *got, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte((*got)[0].payload), &payload))
	assert.Equal(t, "po_status_changed", (*got)[0].channel)
	assert.Equal(t, "INSERT", payload["change_type"])
	assert.Equal(t, "created", payload["new_status"])

	require.NoError(t, s.PurchaseOrders().SetStatus(ctx, po.ID, store.POApproved))
	require.Len(t, *got, 2)
	require.NoError(t, json.Unmarshal([]byte((*got)[1].payload), &payload))
	assert.Equal(t, "created", payload["old_status"])
	assert.Equal(t, "approved", payload["new_status"])

	// Writing the same status again is not a change.
	require.NoError(t, s.PurchaseOrders().SetStatus(ctx, po.ID, store.POApproved))
	assert.Len(t, *got, 2)
}

func TestPurchaseOrders_ListActiveExcludesTerminal(t *testing.T) {
	ctx := context.Background()
	s := New()

	open := &store.PurchaseOrder{Supplier: "a"}
	done := &store.PurchaseOrder{Supplier: "b"}
	require.NoError(t, s.PurchaseOrders().Create(ctx, open, nil))
	require.NoError(t, s.PurchaseOrders().Create(ctx, done, nil))
	require.NoError(t, s.PurchaseOrders().SetStatus(ctx, done.ID, store.POCancelled))

	active, err := s.PurchaseOrders().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)
}

func TestPurchaseOrders_LineItems(t *testing.T) {
	ctx := context.Background()
	s := New()

	po := &store.PurchaseOrder{Supplier: "acme"}
	require.NoError(t, s.PurchaseOrders().Create(ctx, po, []*store.POLineItem{
		{ItemID: 1, QuantityOrdered: 10},
		{ItemID: 2, QuantityOrdered: 5},
	}))

	require.NoError(t, s.PurchaseOrders().SetLineReceived(ctx, po.ID, 1, 10))

	lines, err := s.PurchaseOrders().LineItems(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(10), lines[0].QuantityReceived)
	assert.Equal(t, int64(0), lines[1].QuantityReceived)

	err = s.PurchaseOrders().SetLineReceived(ctx, po.ID, 99, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAlerts_InsertNotifiesAndKeysActive(t *testing.T) {
	ctx := context.Background()
	s, got := newStoreWithNotifier()

	itemID := int64(7)
	id, err := s.Alerts().Insert(ctx, &store.Alert{
		Type: store.AlertLowStock, Severity: store.SeverityMedium, ItemID: &itemID,
	})
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Len(t, *got, 1)
	assert.Equal(t, "alert_generated", (*got)[0].channel)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte((*got)[0].payload), &payload))
	assert.Equal(t, "low_stock", payload["alert_type"])
	assert.Equal(t, float64(7), payload["item_id"])
	_, hasPO := payload["po_id"]
	assert.False(t, hasPO)

	active, err := s.Alerts().ActiveByKey(ctx, store.AlertLowStock, &itemID, nil)
	require.NoError(t, err)
	assert.Equal(t, id, active.ID)

	otherID := int64(8)
	_, err = s.Alerts().ActiveByKey(ctx, store.AlertLowStock, &otherID, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAlerts_ResolveStampsTime(t *testing.T) {
	ctx := context.Background()
	s := New()

	itemID := int64(1)
	id, err := s.Alerts().Insert(ctx, &store.Alert{Type: store.AlertStockOut, Severity: store.SeverityCritical, ItemID: &itemID})
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Alerts().Resolve(ctx, id, at))

	a, err := s.Alerts().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.AlertResolved, a.Status)
	require.NotNil(t, a.ResolvedAt)
	assert.Equal(t, at, *a.ResolvedAt)

	// Resolving again fails, the alert is no longer active.
	assert.ErrorIs(t, s.Alerts().Resolve(ctx, id, at), store.ErrNotFound)

	_, err = s.Alerts().ActiveByKey(ctx, store.AlertStockOut, &itemID, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAlerts_ListFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	itemID := int64(1)
	_, err := s.Alerts().Insert(ctx, &store.Alert{Type: store.AlertLowStock, Severity: store.SeverityMedium, ItemID: &itemID})
	require.NoError(t, err)
	id2, err := s.Alerts().Insert(ctx, &store.Alert{Type: store.AlertStockOut, Severity: store.SeverityCritical, ItemID: &itemID})
	require.NoError(t, err)
	require.NoError(t, s.Alerts().Resolve(ctx, id2, time.Now()))

	active, err := s.Alerts().List(ctx, store.AlertFilter{Status: store.AlertActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, store.AlertLowStock, active[0].Type)

	critical, err := s.Alerts().List(ctx, store.AlertFilter{Severity: store.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, critical, 1)
	assert.Equal(t, id2, critical[0].ID)
}

func TestForecasts_UpsertAndLatest(t *testing.T) {
	ctx := context.Background()
	s, got := newStoreWithNotifier()

	first, err := s.Forecasts().Upsert(ctx, &store.Forecast{
		ItemID:               1,
		ForecastDate:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		PredictedConsumption: 40,
		CreatedAt:            time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	second, err := s.Forecasts().Upsert(ctx, &store.Forecast{
		ItemID:               1,
		ForecastDate:         time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		PredictedConsumption: 55,
	})
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	assert.Len(t, *got, 2)
	assert.Equal(t, "forecast_updated", (*got)[0].channel)

	latest, err := s.Forecasts().LatestForItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, int64(55), latest.PredictedConsumption)

	_, err = s.Forecasts().LatestForItem(ctx, 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMetrics_Record(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Metrics().Record(ctx, "events_processed", 1, time.Now()))
	require.NoError(t, s.Metrics().Record(ctx, "events_processed", 1, time.Now()))

	assert.Equal(t, 2, s.MetricCount("events_processed"))
	assert.Equal(t, 0, s.MetricCount("other"))
}

func TestRunInTx_SharesState(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.RunInTx(ctx, func(tx store.Store) error {
		return tx.Inventory().Create(ctx, &store.InventoryItem{ID: 1, CurrentStock: 5})
	}))

	item, err := s.Inventory().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.CurrentStock)
}
