// Package transport abstracts the notification channel between the data
// store and the event processor. Delivery is at-most-once per physical
// connection: anything emitted while the transport is disconnected is lost,
// and the dispatcher compensates with its reconciliation sweep.
package transport

import (
	"context"
	"errors"
)

// Notification is one raw payload received on a named channel.
type Notification struct {
	Channel string
	Payload string
}

// Transport delivers store notifications to the processor and lets the
// processor publish its own (e.g. requeues after a transient failure).
type Transport interface {
	// Start connects and subscribes to the configured channels. It must be
	// called before Notifications.
	Start(ctx context.Context) error

	// Notifications returns the stream of raw notifications. The channel is
	// closed when the context is cancelled or the transport fails fatally;
	// consult Err after it closes.
	Notifications() <-chan Notification

	// Reconnects signals that the underlying connection was re-established.
	// Notifications emitted during the outage are gone; the consumer should
	// trigger a reconciliation sweep.
	Reconnects() <-chan struct{}

	// Publish sends a payload on a channel.
	Publish(ctx context.Context, channel, payload string) error

	// Err returns the fatal error that closed the notification stream, if any.
	Err() error

	// Close releases resources.
	Close() error
}

var (
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("transport closed")

	// ErrDowntimeExceeded is the fatal error reported when the connection
	// could not be re-established within the configured budget.
	ErrDowntimeExceeded = errors.New("transport reconnect budget exhausted")

	// ErrNotStarted is returned when Publish is called before Start.
	ErrNotStarted = errors.New("transport not started")
)
