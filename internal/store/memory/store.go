// Package memory provides an in-memory store.Store used by tests and by
// standalone demo mode. Its optional notifier hook mirrors the database
// triggers, emitting the same JSON payloads on the same channels.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"lighthouse/internal/store"
)

// NotifyFunc receives trigger-equivalent notifications on mutations.
type NotifyFunc func(channel, payload string)

// Store is an in-memory implementation of store.Store.
//
// The dispatcher is the only writer, so RunInTx only provides the contract
// that single writer needs: writes inside fn are serialized against other
// store access. It does not implement rollback.
type Store struct {
	mu sync.Mutex

	items     map[int64]*store.InventoryItem
	pos       map[int64]*store.PurchaseOrder
	lines     map[int64][]*store.POLineItem
	alerts    map[int64]*store.Alert
	forecasts map[int64]*store.Forecast
	metrics   []metricSample

	nextItemID     int64
	nextPOID       int64
	nextAlertID    int64
	nextForecastID int64

	notify NotifyFunc
}

type metricSample struct {
	name  string
	value float64
	at    time.Time
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		items:     make(map[int64]*store.InventoryItem),
		pos:       make(map[int64]*store.PurchaseOrder),
		lines:     make(map[int64][]*store.POLineItem),
		alerts:    make(map[int64]*store.Alert),
		forecasts: make(map[int64]*store.Forecast),
	}
}

// SetNotifier installs the trigger-equivalent notification hook.
func (s *Store) SetNotifier(fn NotifyFunc) { s.notify = fn }

func (s *Store) Inventory() store.InventoryStore          { return (*inventoryStore)(s) }
func (s *Store) PurchaseOrders() store.PurchaseOrderStore { return (*poStore)(s) }
func (s *Store) Alerts() store.AlertStore                 { return (*alertStore)(s) }
func (s *Store) Forecasts() store.ForecastStore           { return (*forecastStore)(s) }
func (s *Store) Metrics() store.MetricStore               { return (*metricStore)(s) }

// RunInTx runs fn against the store itself.
func (s *Store) RunInTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) emit(channel string, fields map[string]any) {
	if s.notify == nil {
		return
	}
	fields["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	s.notify(channel, string(payload))
}

// --- inventory ---

type inventoryStore Store

func (s *inventoryStore) Get(ctx context.Context, id int64) (*store.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *inventoryStore) List(ctx context.Context) ([]*store.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *inventoryStore) SetStockLevel(ctx context.Context, id int64, level store.StockLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return store.ErrNotFound
	}
	// Classification writes do not fire the inventory trigger.
	item.StockLevel = level
	item.LastUpdated = time.Now().UTC()
	return nil
}

func (s *inventoryStore) SetStock(ctx context.Context, id int64, quantity int64) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	old := item.CurrentStock
	item.CurrentStock = quantity
	item.LastUpdated = time.Now().UTC()
	s.mu.Unlock()

	if old != quantity {
		(*Store)(s).emit("inventory_changed", map[string]any{
			"item_id":      id,
			"old_quantity": old,
			"new_quantity": quantity,
			"change_type":  "UPDATE",
		})
	}
	return nil
}

func (s *inventoryStore) AdjustStock(ctx context.Context, id int64, delta int64) (int64, error) {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return 0, store.ErrNotFound
	}
	old := item.CurrentStock
	item.CurrentStock += delta
	now := item.CurrentStock
	item.LastUpdated = time.Now().UTC()
	s.mu.Unlock()

	if delta != 0 {
		(*Store)(s).emit("inventory_changed", map[string]any{
			"item_id":      id,
			"old_quantity": old,
			"new_quantity": now,
			"change_type":  "UPDATE",
		})
	}
	return now, nil
}

func (s *inventoryStore) Create(ctx context.Context, item *store.InventoryItem) error {
	s.mu.Lock()
	cp := *item
	if cp.ID == 0 {
		s.nextItemID++
		cp.ID = s.nextItemID
	} else if cp.ID > s.nextItemID {
		s.nextItemID = cp.ID
	}
	if cp.LastUpdated.IsZero() {
		cp.LastUpdated = time.Now().UTC()
	}
	s.items[cp.ID] = &cp
	item.ID = cp.ID
	s.mu.Unlock()

	(*Store)(s).emit("inventory_changed", map[string]any{
		"item_id":      cp.ID,
		"old_quantity": int64(0),
		"new_quantity": cp.CurrentStock,
		"change_type":  "INSERT",
	})
	return nil
}

// --- purchase orders ---

type poStore Store

func (s *poStore) Get(ctx context.Context, id int64) (*store.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	po, ok := s.pos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *po
	return &cp, nil
}

func (s *poStore) ListActive(ctx context.Context) ([]*store.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.PurchaseOrder
	for _, po := range s.pos {
		if !po.Status.IsTerminal() {
			cp := *po
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *poStore) SetStatus(ctx context.Context, id int64, status store.POStatus) error {
	s.mu.Lock()
	po, ok := s.pos[id]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	old := po.Status
	po.Status = status
	s.mu.Unlock()

	if old != status {
		(*Store)(s).emit("po_status_changed", map[string]any{
			"po_id":       id,
			"old_status":  string(old),
			"new_status":  string(status),
			"change_type": "UPDATE",
		})
	}
	return nil
}

func (s *poStore) LineItems(ctx context.Context, poID int64) ([]*store.POLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.lines[poID]
	out := make([]*store.POLineItem, 0, len(lines))
	for _, l := range lines {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (s *poStore) SetLineReceived(ctx context.Context, poID, itemID, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines[poID] {
		if l.ItemID == itemID {
			l.QuantityReceived = quantity
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *poStore) Create(ctx context.Context, po *store.PurchaseOrder, lines []*store.POLineItem) error {
	s.mu.Lock()
	s.nextPOID++
	cp := *po
	if cp.ID == 0 {
		cp.ID = s.nextPOID
	}
	if cp.Status == "" {
		cp.Status = store.POCreated
	}
	if cp.CreatedDate.IsZero() {
		cp.CreatedDate = time.Now().UTC()
	}
	s.pos[cp.ID] = &cp
	for _, l := range lines {
		lcp := *l
		lcp.POID = cp.ID
		s.lines[cp.ID] = append(s.lines[cp.ID], &lcp)
	}
	po.ID = cp.ID
	s.mu.Unlock()

	(*Store)(s).emit("po_status_changed", map[string]any{
		"po_id":       cp.ID,
		"old_status":  "",
		"new_status":  string(cp.Status),
		"change_type": "INSERT",
	})
	return nil
}

// --- alerts ---

type alertStore Store

func (s *alertStore) Get(ctx context.Context, id int64) (*store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *alertStore) ActiveByKey(ctx context.Context, typ store.AlertType, itemID, poID *int64) (*store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.Status != store.AlertActive || a.Type != typ {
			continue
		}
		if sameRef(a.ItemID, itemID) && sameRef(a.POID, poID) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *alertStore) ListActiveByType(ctx context.Context, typ store.AlertType) ([]*store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Alert
	for _, a := range s.alerts {
		if a.Status == store.AlertActive && a.Type == typ {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *alertStore) List(ctx context.Context, filter store.AlertFilter) ([]*store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Alert
	for _, a := range s.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.Type != "" && a.Type != filter.Type {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *alertStore) Insert(ctx context.Context, alert *store.Alert) (int64, error) {
	s.mu.Lock()
	s.nextAlertID++
	cp := *alert
	cp.ID = s.nextAlertID
	if cp.Status == "" {
		cp.Status = store.AlertActive
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.alerts[cp.ID] = &cp
	s.mu.Unlock()

	fields := map[string]any{
		"alert_id":   cp.ID,
		"alert_type": string(cp.Type),
		"severity":   string(cp.Severity),
	}
	if cp.ItemID != nil {
		fields["item_id"] = *cp.ItemID
	}
	if cp.POID != nil {
		fields["po_id"] = *cp.POID
	}
	(*Store)(s).emit("alert_generated", fields)
	return cp.ID, nil
}

func (s *alertStore) Resolve(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != store.AlertActive {
		return store.ErrNotFound
	}
	a.Status = store.AlertResolved
	resolved := at.UTC()
	a.ResolvedAt = &resolved
	return nil
}

// --- forecasts ---

type forecastStore Store

func (s *forecastStore) Get(ctx context.Context, id int64) (*store.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forecasts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *forecastStore) Upsert(ctx context.Context, f *store.Forecast) (int64, error) {
	s.mu.Lock()
	cp := *f
	if cp.ID == 0 {
		s.nextForecastID++
		cp.ID = s.nextForecastID
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.forecasts[cp.ID] = &cp
	s.mu.Unlock()

	(*Store)(s).emit("forecast_updated", map[string]any{
		"forecast_id":           cp.ID,
		"item_id":               cp.ItemID,
		"forecast_date":         cp.ForecastDate.UTC().Format("2006-01-02"),
		"predicted_consumption": cp.PredictedConsumption,
	})
	return cp.ID, nil
}

func (s *forecastStore) LatestForItem(ctx context.Context, itemID int64) (*store.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *store.Forecast
	for _, f := range s.forecasts {
		if f.ItemID != itemID {
			continue
		}
		if latest == nil || f.CreatedAt.After(latest.CreatedAt) {
			latest = f
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// --- metrics ---

type metricStore Store

func (s *metricStore) Record(ctx context.Context, name string, value float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metricSample{name: name, value: value, at: at})
	return nil
}

// MetricCount returns how many samples of name were recorded, for tests.
func (s *Store) MetricCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.metrics {
		if m.name == name {
			n++
		}
	}
	return n
}

func sameRef(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
