// Package bridge publishes processed events to NATS JetStream so other
// systems can consume the monitoring feed without touching the database.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"lighthouse/internal/engine"
)

const (
	streamName    = "LIGHTHOUSE"
	subjectPrefix = "lighthouse.events."
)

// Config holds the bridge connection settings.
type Config struct {
	Enabled bool   `yaml:"enabled" env:"LIGHTHOUSE_NATS_ENABLED"`
	URL     string `yaml:"url" env:"LIGHTHOUSE_NATS_URL"`
}

// DefaultConfig returns the bridge defaults.
func DefaultConfig() Config {
	return Config{URL: nats.DefaultURL}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
}

// outboundEvent is the wire form published per processed event.
type outboundEvent struct {
	Kind        string           `json:"kind"`
	EntityID    int64            `json:"entity_id"`
	Origin      string           `json:"origin"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Outcome     string           `json:"outcome"`
	Detail      string           `json:"detail,omitempty"`
	Derived     []engine.Derived `json:"derived,omitempty"`
	ProcessedIn string           `json:"processed_in"`
}

// Bridge is an engine.Sink that forwards processed events to JetStream.
type Bridge struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

var _ engine.Sink = (*Bridge)(nil)

// New connects to NATS and ensures the outbound stream exists.
func New(cfg Config, logger *slog.Logger) (*Bridge, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
		Storage:  jetstream.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &Bridge{
		nc:     nc,
		js:     js,
		logger: logger.With("component", "bridge"),
	}, nil
}

// Handle publishes one processed event. Failures are logged, not propagated:
// the bridge is a best-effort tap and must never stall the dispatcher.
func (b *Bridge) Handle(ctx context.Context, pe engine.ProcessedEvent) {
	out := outboundEvent{
		Kind:        string(pe.Event.Kind),
		EntityID:    pe.Event.EntityID,
		Origin:      string(pe.Event.Origin),
		OccurredAt:  pe.Event.OccurredAt,
		Outcome:     string(pe.Outcome),
		Detail:      pe.Detail,
		Derived:     pe.Derived,
		ProcessedIn: pe.Duration.String(),
	}
	data, err := json.Marshal(out)
	if err != nil {
		b.logger.Error("marshal outbound event failed", "kind", pe.Event.Kind, "error", err)
		return
	}

	subject := subjectPrefix + string(pe.Event.Kind)
	if _, err := b.js.Publish(ctx, subject, data,
		jetstream.WithExpectStream(streamName),
		jetstream.WithRetryAttempts(3)); err != nil {
		b.logger.Error("publish outbound event failed", "subject", subject, "error", err)
	}
}

// Close drains the connection.
func (b *Bridge) Close() {
	if err := b.nc.Drain(); err != nil {
		b.logger.Warn("nats drain failed", "error", err)
	}
}
