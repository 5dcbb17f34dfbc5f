package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// DecodeError reports a malformed notification payload. It carries enough
// context to dead-letter the event for manual replay. Decoding never panics;
// every malformed input surfaces as one of these.
type DecodeError struct {
	Channel string
	Payload string
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Channel, e.Reason)
}

func decodeErrorf(channel string, payload []byte, format string, args ...any) *DecodeError {
	return &DecodeError{
		Channel: channel,
		Payload: string(payload),
		Reason:  fmt.Sprintf(format, args...),
	}
}

// timestampLayouts are the formats the store triggers and the simulator are
// known to emit. Tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type inventoryPayload struct {
	ItemID      *int64  `json:"item_id"`
	OldQuantity *int64  `json:"old_quantity"`
	NewQuantity *int64  `json:"new_quantity"`
	ChangeType  *string `json:"change_type"`
	Timestamp   string  `json:"timestamp"`
	Attempt     int     `json:"_attempt"`
}

type poPayload struct {
	POID       *int64  `json:"po_id"`
	OldStatus  string  `json:"old_status"`
	NewStatus  *string `json:"new_status"`
	ChangeType *string `json:"change_type"`
	Timestamp  string  `json:"timestamp"`
	Attempt    int     `json:"_attempt"`
}

type alertPayload struct {
	AlertID   *int64  `json:"alert_id"`
	AlertType *string `json:"alert_type"`
	Severity  string  `json:"severity"`
	ItemID    *int64  `json:"item_id"`
	POID      *int64  `json:"po_id"`
	Timestamp string  `json:"timestamp"`
	Attempt   int     `json:"_attempt"`
}

type forecastPayload struct {
	ForecastID           *int64  `json:"forecast_id"`
	ItemID               *int64  `json:"item_id"`
	ForecastDate         string  `json:"forecast_date"`
	PredictedConsumption *int64  `json:"predicted_consumption"`
	ChangeType           *string `json:"change_type"`
	Timestamp            string  `json:"timestamp"`
	Attempt              int     `json:"_attempt"`
}

// Decode parses a raw notification payload from the given source channel into
// a typed ChangeEvent. The payload must be a JSON object carrying at minimum
// the changed entity's identifier; numeric and timestamp fields are checked
// explicitly. Failures return a *DecodeError, never a panic.
func Decode(channel string, payload []byte) (*ChangeEvent, error) {
	kind, ok := KindForChannel(channel)
	if !ok {
		return nil, decodeErrorf(channel, payload, "unknown channel")
	}

	switch kind {
	case KindInventoryChanged:
		return decodeInventory(channel, payload)
	case KindPOStatusChanged:
		return decodePO(channel, payload)
	case KindAlertGenerated:
		return decodeAlert(channel, payload)
	case KindForecastUpdated:
		return decodeForecast(channel, payload)
	default:
		return nil, decodeErrorf(channel, payload, "unhandled kind %q", kind)
	}
}

func decodeInventory(channel string, payload []byte) (*ChangeEvent, error) {
	var p inventoryPayload
	if err := strictUnmarshal(payload, &p); err != nil {
		return nil, decodeErrorf(channel, payload, "invalid JSON: %v", err)
	}
	if p.ItemID == nil {
		return nil, decodeErrorf(channel, payload, "missing item_id")
	}
	if p.OldQuantity == nil || p.NewQuantity == nil {
		return nil, decodeErrorf(channel, payload, "missing old_quantity/new_quantity")
	}
	origin, err := decodeOrigin(p.ChangeType)
	if err != nil {
		return nil, decodeErrorf(channel, payload, "%v", err)
	}
	return &ChangeEvent{
		Kind:       KindInventoryChanged,
		EntityID:   *p.ItemID,
		Origin:     origin,
		OccurredAt: decodeTimestamp(p.Timestamp),
		Attempt:    p.Attempt,
		Inventory: &InventoryChange{
			OldQuantity: *p.OldQuantity,
			NewQuantity: *p.NewQuantity,
		},
	}, nil
}

func decodePO(channel string, payload []byte) (*ChangeEvent, error) {
	var p poPayload
	if err := strictUnmarshal(payload, &p); err != nil {
		return nil, decodeErrorf(channel, payload, "invalid JSON: %v", err)
	}
	if p.POID == nil {
		return nil, decodeErrorf(channel, payload, "missing po_id")
	}
	if p.NewStatus == nil || *p.NewStatus == "" {
		return nil, decodeErrorf(channel, payload, "missing new_status")
	}
	origin, err := decodeOrigin(p.ChangeType)
	if err != nil {
		return nil, decodeErrorf(channel, payload, "%v", err)
	}
	return &ChangeEvent{
		Kind:       KindPOStatusChanged,
		EntityID:   *p.POID,
		Origin:     origin,
		OccurredAt: decodeTimestamp(p.Timestamp),
		Attempt:    p.Attempt,
		PO: &POChange{
			OldStatus: p.OldStatus,
			NewStatus: *p.NewStatus,
		},
	}, nil
}

func decodeAlert(channel string, payload []byte) (*ChangeEvent, error) {
	var p alertPayload
	if err := strictUnmarshal(payload, &p); err != nil {
		return nil, decodeErrorf(channel, payload, "invalid JSON: %v", err)
	}
	if p.AlertID == nil {
		return nil, decodeErrorf(channel, payload, "missing alert_id")
	}
	if p.AlertType == nil || *p.AlertType == "" {
		return nil, decodeErrorf(channel, payload, "missing alert_type")
	}
	return &ChangeEvent{
		Kind:       KindAlertGenerated,
		EntityID:   *p.AlertID,
		Origin:     OriginInsert,
		OccurredAt: decodeTimestamp(p.Timestamp),
		Attempt:    p.Attempt,
		Alert: &AlertChange{
			AlertType: *p.AlertType,
			Severity:  p.Severity,
			ItemID:    p.ItemID,
			POID:      p.POID,
		},
	}, nil
}

func decodeForecast(channel string, payload []byte) (*ChangeEvent, error) {
	var p forecastPayload
	if err := strictUnmarshal(payload, &p); err != nil {
		return nil, decodeErrorf(channel, payload, "invalid JSON: %v", err)
	}
	if p.ForecastID == nil {
		return nil, decodeErrorf(channel, payload, "missing forecast_id")
	}
	if p.ItemID == nil {
		return nil, decodeErrorf(channel, payload, "missing item_id")
	}
	if p.PredictedConsumption == nil {
		return nil, decodeErrorf(channel, payload, "missing predicted_consumption")
	}
	forecastDate, ok := parseTimestamp(p.ForecastDate)
	if !ok {
		// forecast_date may arrive as a bare date
		if t, err := time.Parse("2006-01-02", p.ForecastDate); err == nil {
			forecastDate, ok = t.UTC(), true
		}
	}
	if !ok {
		return nil, decodeErrorf(channel, payload, "invalid forecast_date %q", p.ForecastDate)
	}
	origin, err := decodeOrigin(p.ChangeType)
	if err != nil {
		return nil, decodeErrorf(channel, payload, "%v", err)
	}
	return &ChangeEvent{
		Kind:       KindForecastUpdated,
		EntityID:   *p.ForecastID,
		Origin:     origin,
		OccurredAt: decodeTimestamp(p.Timestamp),
		Attempt:    p.Attempt,
		Forecast: &ForecastChange{
			ItemID:               *p.ItemID,
			ForecastDate:         forecastDate,
			PredictedConsumption: *p.PredictedConsumption,
		},
	}, nil
}

// decodeOrigin validates an optional change_type tag. Channels whose triggers
// fire on insert only (alerts, forecasts) may omit it.
func decodeOrigin(changeType *string) (Origin, error) {
	if changeType == nil || *changeType == "" {
		return OriginInsert, nil
	}
	origin := Origin(*changeType)
	if !origin.IsValid() {
		return "", fmt.Errorf("invalid change_type %q", *changeType)
	}
	return origin, nil
}

// decodeTimestamp is lenient: a missing or unparseable event timestamp falls
// back to receipt time so the event can still be fingerprinted and processed.
func decodeTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	if t, ok := parseTimestamp(s); ok {
		return t
	}
	return time.Now().UTC()
}

// strictUnmarshal rejects payloads whose top level is not a JSON object,
// and surfaces type mismatches on known fields.
func strictUnmarshal(payload []byte, v any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}
