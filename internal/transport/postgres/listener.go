// Package postgres implements the notification transport over PostgreSQL
// LISTEN/NOTIFY using lib/pq's Listener, which re-establishes the connection
// with exponential backoff and re-LISTENs every registered channel before
// resuming delivery.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"lighthouse/internal/transport"
)

// Config holds the listener configuration.
type Config struct {
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn" env:"LIGHTHOUSE_DB_DSN"`

	// MinReconnect is the initial reconnect backoff.
	MinReconnect time.Duration `yaml:"min_reconnect"`

	// MaxReconnect caps the reconnect backoff.
	MaxReconnect time.Duration `yaml:"max_reconnect"`

	// MaxDowntime bounds how long the transport may stay disconnected before
	// the condition is treated as fatal. Zero disables the bound.
	MaxDowntime time.Duration `yaml:"max_downtime"`

	// PingInterval controls how often the connection is probed so stale
	// connections are detected even when traffic is idle.
	PingInterval time.Duration `yaml:"ping_interval"`
}

// DefaultConfig returns the default listener configuration.
func DefaultConfig() Config {
	return Config{
		MinReconnect: time.Second,
		MaxReconnect: 30 * time.Second,
		MaxDowntime:  5 * time.Minute,
		PingInterval: 15 * time.Second,
	}
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.MinReconnect <= 0 {
		c.MinReconnect = def.MinReconnect
	}
	if c.MaxReconnect <= 0 {
		c.MaxReconnect = def.MaxReconnect
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.MaxDowntime < 0 {
		c.MaxDowntime = 0
	}
}

// Listener is a transport.Transport backed by LISTEN/NOTIFY.
type Listener struct {
	cfg      Config
	channels []string
	logger   *slog.Logger

	pql *pq.Listener
	db  *sql.DB // dedicated publish connection, NOTIFY only

	out        chan transport.Notification
	reconnects chan struct{}

	mu             sync.Mutex
	fatalErr       error
	disconnectedAt time.Time
	started        bool
	closed         bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Compile-time check that Listener implements transport.Transport.
var _ transport.Transport = (*Listener)(nil)

// New creates a listener subscribed to the given channels once started.
func New(cfg Config, channels []string, logger *slog.Logger) *Listener {
	cfg.ApplyDefaults()
	return &Listener{
		cfg:        cfg,
		channels:   channels,
		logger:     logger.With("component", "transport"),
		out:        make(chan transport.Notification, 64),
		reconnects: make(chan struct{}, 1),
	}
}

// Start connects, LISTENs on every configured channel and begins forwarding
// notifications. Reconnect attempts and outcomes are logged via the
// pq.Listener event callback.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("listener already started")
	}
	l.started = true
	l.mu.Unlock()

	l.pql = pq.NewListener(l.cfg.DSN, l.cfg.MinReconnect, l.cfg.MaxReconnect, l.onEvent)
	for _, ch := range l.channels {
		if err := l.pql.Listen(ch); err != nil {
			l.pql.Close()
			return fmt.Errorf("listen %s: %w", ch, err)
		}
		l.logger.Info("subscribed to channel", "channel", ch)
	}

	db, err := sql.Open("postgres", l.cfg.DSN)
	if err != nil {
		l.pql.Close()
		return fmt.Errorf("open publish connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	l.db = db

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(2)
	go l.forward(runCtx)
	go l.watchdog(runCtx)
	return nil
}

// Notifications returns the notification stream.
func (l *Listener) Notifications() <-chan transport.Notification { return l.out }

// Reconnects returns the reconnect signal channel.
func (l *Listener) Reconnects() <-chan struct{} { return l.reconnects }

// Publish emits a NOTIFY on the given channel.
func (l *Listener) Publish(ctx context.Context, channel, payload string) error {
	l.mu.Lock()
	db := l.db
	closed := l.closed
	l.mu.Unlock()

	if closed {
		return transport.ErrClosed
	}
	if db == nil {
		return transport.ErrNotStarted
	}
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, payload); err != nil {
		return fmt.Errorf("publish on %s: %w", channel, err)
	}
	return nil
}

// Err returns the fatal error that terminated the stream, if any.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fatalErr
}

// Close stops the listener and releases both connections.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
	if l.pql != nil {
		l.pql.Close()
	}
	if l.db != nil {
		l.db.Close()
	}
	return nil
}

// onEvent receives connection lifecycle events from pq. Every reconnect
// attempt and its outcome is logged here.
func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.logger.Info("connected to notification channel")
	case pq.ListenerEventDisconnected:
		l.logger.Warn("notification connection lost", "error", err)
		l.mu.Lock()
		l.disconnectedAt = time.Now()
		l.mu.Unlock()
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("reconnect attempt failed", "error", err)
	case pq.ListenerEventReconnected:
		l.logger.Info("reconnected, channels re-subscribed")
		l.mu.Lock()
		l.disconnectedAt = time.Time{}
		l.mu.Unlock()
		l.signalReconnect()
	}
}

func (l *Listener) signalReconnect() {
	select {
	case l.reconnects <- struct{}{}:
	default:
		// Already signalled
	}
}

// forward pumps pq notifications into the transport stream. pq delivers a
// nil notification after a connection loss to flag a delivery gap; that is
// surfaced as a reconnect signal rather than an event.
func (l *Listener) forward(ctx context.Context) {
	defer l.wg.Done()
	defer close(l.out)

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-l.pql.Notify:
			if n == nil {
				l.signalReconnect()
				continue
			}
			select {
			case l.out <- transport.Notification{Channel: n.Channel, Payload: n.Extra}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// watchdog probes the connection on an interval so stale links are noticed
// during idle periods, and escalates to a fatal error once the connection
// has been down longer than MaxDowntime.
func (l *Listener) watchdog(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.pql.Ping(); err != nil {
				l.logger.Warn("notification connection ping failed", "error", err)
			}

			l.mu.Lock()
			down := l.disconnectedAt
			l.mu.Unlock()

			if l.cfg.MaxDowntime > 0 && !down.IsZero() && time.Since(down) > l.cfg.MaxDowntime {
				l.logger.Error("transport down too long, giving up",
					"since", down, "max_downtime", l.cfg.MaxDowntime)
				l.mu.Lock()
				l.fatalErr = transport.ErrDowntimeExceeded
				l.mu.Unlock()
				if l.cancel != nil {
					l.cancel()
				}
				return
			}
		}
	}
}
