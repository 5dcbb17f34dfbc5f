// Package realtime streams processed events to websocket clients, with
// optional CEL filter expressions per subscription.
package realtime

import (
	"encoding/json"
	"time"
)

// Message types
const (
	TypeSubscribe      = "subscribe"
	TypeSubscribeAck   = "subscribe_ack"
	TypeUnsubscribe    = "unsubscribe"
	TypeUnsubscribeAck = "unsubscribe_ack"
	TypeEvent          = "event"
	TypeError          = "error"
)

// BaseMessage is the envelope for every websocket frame.
type BaseMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload opens a subscription. Filter is an optional CEL
// expression over the `event` variable, e.g.
//
//	event.kind == 'inventory_changed' && event.entity_id == 3
type SubscribePayload struct {
	Filter string `json:"filter,omitempty"`
}

// UnsubscribePayload closes a subscription by its ID.
type UnsubscribePayload struct {
	ID string `json:"id"`
}

// ErrorPayload reports a per-message failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// FeedEvent is one processed event on the wire.
type FeedEvent struct {
	SubID      string    `json:"sub_id"`
	Kind       string    `json:"kind"`
	EntityID   int64     `json:"entity_id"`
	Origin     string    `json:"origin"`
	OccurredAt time.Time `json:"occurred_at"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	Actions    []string  `json:"actions,omitempty"`
}

func mustMarshal(v any) []byte {
	b, _ := json.Marshal(v) // Should not fail for internal types
	return b
}
