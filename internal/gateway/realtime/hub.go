package realtime

import (
	"context"
	"log/slog"
	"sync"

	"lighthouse/internal/engine"
)

// Hub maintains the set of active clients and fans processed events out to
// matching subscriptions. It is an engine.Sink: the dispatcher hands it
// every processed event.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan engine.ProcessedEvent
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger

	mu sync.RWMutex
}

var _ engine.Sink = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan engine.ProcessedEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With("component", "realtime"),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
		case pe := <-h.broadcast:
			h.dispatch(pe)
		}
	}
}

// Handle implements engine.Sink. A full broadcast buffer drops the event
// rather than stalling the dispatcher.
func (h *Hub) Handle(ctx context.Context, pe engine.ProcessedEvent) {
	select {
	case h.broadcast <- pe:
	default:
		h.logger.Warn("realtime feed backlogged, dropping event", "kind", pe.Event.Kind)
	}
}

func (h *Hub) dispatch(pe engine.ProcessedEvent) {
	actions := make([]string, 0, len(pe.Derived))
	for _, d := range pe.Derived {
		actions = append(actions, d.Action)
	}
	// Flat view the CEL filters evaluate against.
	eventMap := map[string]any{
		"kind":      string(pe.Event.Kind),
		"entity_id": pe.Event.EntityID,
		"origin":    string(pe.Event.Origin),
		"outcome":   string(pe.Outcome),
		"old_value": pe.Event.OldValue(),
		"new_value": pe.Event.NewValue(),
		"actions":   actions,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			continue
		}
		for subID, sub := range client.subscriptions {
			if !evalFilter(sub.program, eventMap) {
				continue
			}
			feed := FeedEvent{
				SubID:      subID,
				Kind:       string(pe.Event.Kind),
				EntityID:   pe.Event.EntityID,
				Origin:     string(pe.Event.Origin),
				OccurredAt: pe.Event.OccurredAt,
				Outcome:    string(pe.Outcome),
				Detail:     pe.Detail,
				Actions:    actions,
			}
			msg := BaseMessage{Type: TypeEvent, Payload: mustMarshal(feed)}
			select {
			case client.send <- msg:
			default:
				// Slow client; drop rather than block the hub.
			}
		}
		client.mu.Unlock()
	}
}
