package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Inventory(t *testing.T) {
	payload := `{"item_id": 42, "old_quantity": 100, "new_quantity": 85, "change_type": "UPDATE", "timestamp": "2025-03-01T12:00:00Z"}`

	ev, err := Decode("inventory_changed", []byte(payload))
	require.NoError(t, err)

	assert.Equal(t, KindInventoryChanged, ev.Kind)
	assert.Equal(t, int64(42), ev.EntityID)
	assert.Equal(t, OriginUpdate, ev.Origin)
	require.NotNil(t, ev.Inventory)
	assert.Equal(t, int64(100), ev.Inventory.OldQuantity)
	assert.Equal(t, int64(85), ev.Inventory.NewQuantity)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), ev.OccurredAt)
	assert.Nil(t, ev.PO)
	assert.Nil(t, ev.Alert)
	assert.Nil(t, ev.Forecast)
}

func TestDecode_Inventory_MissingItemID(t *testing.T) {
	payload := `{"old_quantity": 100, "new_quantity": 85, "change_type": "UPDATE"}`

	_, err := Decode("inventory_changed", []byte(payload))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "inventory_changed", decodeErr.Channel)
	assert.Contains(t, decodeErr.Reason, "item_id")
	assert.Equal(t, payload, decodeErr.Payload)
}

func TestDecode_Inventory_WrongFieldType(t *testing.T) {
	payload := `{"item_id": "not-a-number", "old_quantity": 1, "new_quantity": 2, "change_type": "UPDATE"}`

	_, err := Decode("inventory_changed", []byte(payload))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecode_NotAnObject(t *testing.T) {
	for _, payload := range []string{`[]`, `"text"`, `42`, `not json at all`, ``} {
		_, err := Decode("inventory_changed", []byte(payload))
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr, "payload %q", payload)
	}
}

func TestDecode_UnknownChannel(t *testing.T) {
	_, err := Decode("mystery_channel", []byte(`{"item_id": 1}`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.Reason, "unknown channel")
}

func TestDecode_PO(t *testing.T) {
	payload := `{"po_id": 7, "old_status": "created", "new_status": "approved", "change_type": "UPDATE", "timestamp": "2025-03-01 08:30:00"}`

	ev, err := Decode("po_status_changed", []byte(payload))
	require.NoError(t, err)

	assert.Equal(t, KindPOStatusChanged, ev.Kind)
	assert.Equal(t, int64(7), ev.EntityID)
	require.NotNil(t, ev.PO)
	assert.Equal(t, "created", ev.PO.OldStatus)
	assert.Equal(t, "approved", ev.PO.NewStatus)
}

func TestDecode_PO_InvalidChangeType(t *testing.T) {
	payload := `{"po_id": 7, "new_status": "approved", "change_type": "UPSERT"}`

	_, err := Decode("po_status_changed", []byte(payload))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.Reason, "change_type")
}

func TestDecode_Alert(t *testing.T) {
	payload := `{"alert_id": 3, "alert_type": "low_stock", "severity": "medium", "item_id": 42, "timestamp": "2025-03-01T12:00:00Z"}`

	ev, err := Decode("alert_generated", []byte(payload))
	require.NoError(t, err)

	assert.Equal(t, KindAlertGenerated, ev.Kind)
	assert.Equal(t, int64(3), ev.EntityID)
	assert.Equal(t, OriginInsert, ev.Origin)
	require.NotNil(t, ev.Alert)
	assert.Equal(t, "low_stock", ev.Alert.AlertType)
	require.NotNil(t, ev.Alert.ItemID)
	assert.Equal(t, int64(42), *ev.Alert.ItemID)
	assert.Nil(t, ev.Alert.POID)
}

func TestDecode_Forecast(t *testing.T) {
	payload := `{"forecast_id": 9, "item_id": 42, "forecast_date": "2025-03-08", "predicted_consumption": 120, "timestamp": "2025-03-01T12:00:00Z"}`

	ev, err := Decode("forecast_updated", []byte(payload))
	require.NoError(t, err)

	assert.Equal(t, KindForecastUpdated, ev.Kind)
	require.NotNil(t, ev.Forecast)
	assert.Equal(t, int64(42), ev.Forecast.ItemID)
	assert.Equal(t, int64(120), ev.Forecast.PredictedConsumption)
	assert.Equal(t, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), ev.Forecast.ForecastDate)
}

func TestDecode_MissingTimestampFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	ev, err := Decode("inventory_changed", []byte(`{"item_id": 1, "old_quantity": 5, "new_quantity": 4, "change_type": "UPDATE"}`))
	require.NoError(t, err)
	assert.False(t, ev.OccurredAt.Before(before.Add(-time.Second)))
}

func TestDecode_AttemptCounterRoundTrip(t *testing.T) {
	payload := `{"item_id": 1, "old_quantity": 5, "new_quantity": 4, "change_type": "UPDATE", "_attempt": 2}`
	ev, err := Decode("inventory_changed", []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Attempt)
}
