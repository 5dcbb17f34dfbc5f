// Package events defines the canonical change-event schema emitted by the
// store triggers, the payload decoder, and the deduplication window.
// All consumers MUST use these types for event processing.
package events

import (
	"strconv"
	"time"
)

// Kind identifies the type of change a notification describes.
// One Kind corresponds to exactly one notification channel.
type Kind string

const (
	KindInventoryChanged Kind = "inventory_changed"
	KindPOStatusChanged  Kind = "po_status_changed"
	KindAlertGenerated   Kind = "alert_generated"
	KindForecastUpdated  Kind = "forecast_updated"
)

// IsValid checks if the kind is a known valid kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindInventoryChanged, KindPOStatusChanged, KindAlertGenerated, KindForecastUpdated:
		return true
	default:
		return false
	}
}

// Channel returns the notification channel carrying this kind.
// Channel names double as Kind values on the wire.
func (k Kind) Channel() string { return string(k) }

// KindForChannel maps a source channel name to its expected event kind.
func KindForChannel(channel string) (Kind, bool) {
	k := Kind(channel)
	return k, k.IsValid()
}

// Channels returns all notification channels the processor subscribes to.
func Channels() []string {
	return []string{
		KindInventoryChanged.Channel(),
		KindPOStatusChanged.Channel(),
		KindAlertGenerated.Channel(),
		KindForecastUpdated.Channel(),
	}
}

// Origin is the row-level operation that produced the notification.
// Values are uppercase to match the trigger's TG_OP.
type Origin string

const (
	OriginInsert Origin = "INSERT"
	OriginUpdate Origin = "UPDATE"
	OriginDelete Origin = "DELETE"
)

// IsValid checks if the origin is a known valid operation.
func (o Origin) IsValid() bool {
	switch o {
	case OriginInsert, OriginUpdate, OriginDelete:
		return true
	default:
		return false
	}
}

// InventoryChange is the payload of an inventory_changed event.
type InventoryChange struct {
	OldQuantity int64 `json:"old_quantity"`
	NewQuantity int64 `json:"new_quantity"`
}

// POChange is the payload of a po_status_changed event. NewStatus is a
// proposed transition, not an authoritative state; the lifecycle advancer
// decides whether it stands.
type POChange struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// AlertChange is the payload of an alert_generated event.
type AlertChange struct {
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	ItemID    *int64 `json:"item_id,omitempty"`
	POID      *int64 `json:"po_id,omitempty"`
}

// ForecastChange is the payload of a forecast_updated event.
type ForecastChange struct {
	ItemID               int64     `json:"item_id"`
	ForecastDate         time.Time `json:"forecast_date"`
	PredictedConsumption int64     `json:"predicted_consumption"`
}

// ChangeEvent is a decoded notification. Exactly one of the payload pointers
// is set, matching Kind. Immutable once decoded.
type ChangeEvent struct {
	Kind       Kind
	EntityID   int64
	Origin     Origin
	OccurredAt time.Time

	// Attempt counts prior deliveries of this event through the internal
	// requeue path. Zero for events straight off the wire.
	Attempt int

	Inventory *InventoryChange
	PO        *POChange
	Alert     *AlertChange
	Forecast  *ForecastChange
}

// OldValue returns a string form of the event's pre-change value, used for
// fingerprinting and logs.
func (e *ChangeEvent) OldValue() string {
	switch {
	case e.Inventory != nil:
		return formatInt(e.Inventory.OldQuantity)
	case e.PO != nil:
		return e.PO.OldStatus
	default:
		return ""
	}
}

// NewValue returns a string form of the event's post-change value.
func (e *ChangeEvent) NewValue() string {
	switch {
	case e.Inventory != nil:
		return formatInt(e.Inventory.NewQuantity)
	case e.PO != nil:
		return e.PO.NewStatus
	case e.Alert != nil:
		return e.Alert.AlertType + "/" + e.Alert.Severity
	case e.Forecast != nil:
		return formatInt(e.Forecast.PredictedConsumption)
	default:
		return ""
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
