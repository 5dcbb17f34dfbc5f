// Package memory provides an in-process notification transport used by tests
// and by standalone demo mode, where the in-memory store's notifier hook
// stands in for the database triggers.
package memory

import (
	"context"
	"sync"

	"lighthouse/internal/transport"
)

// Bus is an in-memory transport.Transport. Publishes to channels the bus is
// not subscribed to are dropped, mirroring LISTEN/NOTIFY semantics.
type Bus struct {
	channels map[string]bool

	out        chan transport.Notification
	reconnects chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// Compile-time check that Bus implements transport.Transport.
var _ transport.Transport = (*Bus)(nil)

// NewBus creates a bus subscribed to the given channels.
func NewBus(channels []string, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	subs := make(map[string]bool, len(channels))
	for _, ch := range channels {
		subs[ch] = true
	}
	return &Bus{
		channels:   subs,
		out:        make(chan transport.Notification, bufSize),
		reconnects: make(chan struct{}, 1),
	}
}

// Start marks the bus ready. The context is watched so the notification
// stream closes on cancellation.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	b.started = true

	go func() {
		<-ctx.Done()
		b.Close()
	}()
	return nil
}

// Notifications returns the notification stream.
func (b *Bus) Notifications() <-chan transport.Notification { return b.out }

// Reconnects returns the reconnect signal channel.
func (b *Bus) Reconnects() <-chan struct{} { return b.reconnects }

// Publish delivers a payload to the bus if the channel is subscribed.
// The read lock is held across the send so Close cannot race it.
func (b *Bus) Publish(ctx context.Context, channel, payload string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return transport.ErrClosed
	}
	if !b.channels[channel] {
		return nil
	}

	select {
	case b.out <- transport.Notification{Channel: channel, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignalReconnect simulates a transport reconnect, for exercising the
// dispatcher's compensation path.
func (b *Bus) SignalReconnect() {
	select {
	case b.reconnects <- struct{}{}:
	default:
	}
}

// Err always returns nil; the in-memory bus has no fatal failure mode.
func (b *Bus) Err() error { return nil }

// Close closes the notification stream. Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.out)
	return nil
}
