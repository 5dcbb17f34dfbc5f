// Package store defines the domain entities and the storage contracts the
// processing engine, gateway and simulator share.
package store

import (
	"context"
	"errors"
	"time"
)

// Domain errors.
var (
	ErrNotFound = errors.New("not found")
)

// StockLevel is the derived stock classification. It is recomputed by the
// inventory classifier and must never be written by any other actor.
type StockLevel string

const (
	StockLow    StockLevel = "LOW"
	StockMedium StockLevel = "MEDIUM"
	StockHigh   StockLevel = "HIGH"
)

// POStatus is a purchase-order lifecycle state. The lifecycle is owned by
// the PO advancer; values written by anything else are proposals.
type POStatus string

const (
	POCreated           POStatus = "created"
	POApproved          POStatus = "approved"
	POShipped           POStatus = "shipped"
	POPartiallyReceived POStatus = "partially_received"
	POReceived          POStatus = "received"
	POCancelled         POStatus = "cancelled"
)

// IsValid checks if the status is a known lifecycle state.
func (s POStatus) IsValid() bool {
	switch s {
	case POCreated, POApproved, POShipped, POPartiallyReceived, POReceived, POCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s POStatus) IsTerminal() bool {
	return s == POReceived || s == POCancelled
}

// AlertSeverity levels.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType identifies the rule that raised an alert.
type AlertType string

const (
	AlertStockOut        AlertType = "stock_out"
	AlertLowStock        AlertType = "low_stock"
	AlertDeliveryOverdue AlertType = "delivery_overdue"
	AlertStockoutRisk    AlertType = "stockout_risk"
)

// AlertStatus is the alert lifecycle state.
type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

// InventoryItem is a stocked item. StockLevel is derived state kept
// consistent with CurrentStock/SafetyStock by the classifier.
type InventoryItem struct {
	ID           int64
	Name         string
	CurrentStock int64
	SafetyStock  int64
	Location     string
	StockLevel   StockLevel
	LastUpdated  time.Time
}

// PurchaseOrder is a procurement order.
type PurchaseOrder struct {
	ID               int64
	Supplier         string
	Status           POStatus
	CreatedDate      time.Time
	ExpectedDelivery time.Time
	TotalValue       float64
}

// POLineItem is one ordered item on a purchase order.
type POLineItem struct {
	POID             int64
	ItemID           int64
	QuantityOrdered  int64
	QuantityReceived int64
}

// Alert is a raised condition. At most one active alert may exist per
// (Type, ItemID|POID) key; the alert engine enforces this, not the store.
type Alert struct {
	ID         int64
	Type       AlertType
	Severity   AlertSeverity
	ItemID     *int64
	POID       *int64
	Message    string
	Status     AlertStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Forecast is persisted forecast-lookup output for an item.
type Forecast struct {
	ID                   int64
	ItemID               int64
	ForecastDate         time.Time
	PredictedConsumption int64
	CreatedAt            time.Time
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Status   AlertStatus
	Severity AlertSeverity
	Type     AlertType
	Limit    int
}

// InventoryStore accesses inventory rows.
type InventoryStore interface {
	Get(ctx context.Context, id int64) (*InventoryItem, error)
	List(ctx context.Context) ([]*InventoryItem, error)
	// SetStockLevel writes the derived classification only.
	SetStockLevel(ctx context.Context, id int64, level StockLevel) error
	// SetStock writes the physical quantity (simulator, receipt posting).
	SetStock(ctx context.Context, id int64, quantity int64) error
	// AdjustStock adds delta to the physical quantity and returns the result.
	AdjustStock(ctx context.Context, id int64, delta int64) (int64, error)
	Create(ctx context.Context, item *InventoryItem) error
}

// PurchaseOrderStore accesses purchase orders and their line items.
type PurchaseOrderStore interface {
	Get(ctx context.Context, id int64) (*PurchaseOrder, error)
	// ListActive returns orders not yet in a terminal state.
	ListActive(ctx context.Context) ([]*PurchaseOrder, error)
	SetStatus(ctx context.Context, id int64, status POStatus) error
	LineItems(ctx context.Context, poID int64) ([]*POLineItem, error)
	SetLineReceived(ctx context.Context, poID, itemID, quantity int64) error
	Create(ctx context.Context, po *PurchaseOrder, lines []*POLineItem) error
}

// AlertStore accesses alerts.
type AlertStore interface {
	Get(ctx context.Context, id int64) (*Alert, error)
	// ActiveByKey returns the active alert for (type, item|po), or ErrNotFound.
	ActiveByKey(ctx context.Context, typ AlertType, itemID, poID *int64) (*Alert, error)
	// ListActiveByType returns all active alerts of one type.
	ListActiveByType(ctx context.Context, typ AlertType) ([]*Alert, error)
	List(ctx context.Context, filter AlertFilter) ([]*Alert, error)
	Insert(ctx context.Context, alert *Alert) (int64, error)
	// Resolve marks an active alert resolved and stamps ResolvedAt.
	Resolve(ctx context.Context, id int64, at time.Time) error
}

// ForecastStore persists forecast-lookup output.
type ForecastStore interface {
	Get(ctx context.Context, id int64) (*Forecast, error)
	Upsert(ctx context.Context, f *Forecast) (int64, error)
	LatestForItem(ctx context.Context, itemID int64) (*Forecast, error)
}

// MetricStore records system metric samples.
type MetricStore interface {
	Record(ctx context.Context, name string, value float64, at time.Time) error
}

// Store aggregates the entity stores behind one owned resource handle.
// RunInTx runs fn against a view of the store bound to a single transaction:
// every write made through that view commits atomically or not at all.
type Store interface {
	Inventory() InventoryStore
	PurchaseOrders() PurchaseOrderStore
	Alerts() AlertStore
	Forecasts() ForecastStore
	Metrics() MetricStore
	RunInTx(ctx context.Context, fn func(Store) error) error
	Close() error
}
