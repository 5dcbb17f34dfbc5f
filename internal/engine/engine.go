// Package engine is the change-processing core: a single worker that
// consumes store notifications, deduplicates them, applies the domain
// rules transactionally and feeds the outcomes to the configured sinks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"lighthouse/internal/events"
	"lighthouse/internal/store"
	"lighthouse/internal/transport"
)

// Config holds the dispatcher tuning knobs.
type Config struct {
	// DedupWindow bounds how long a fingerprint suppresses redeliveries.
	DedupWindow time.Duration `yaml:"dedup_window" env:"LIGHTHOUSE_DEDUP_WINDOW"`
	// SweepInterval is the reconciliation cadence.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"LIGHTHOUSE_SWEEP_INTERVAL"`
	// MaxAttempts bounds deliveries per event before it is quarantined.
	MaxAttempts int `yaml:"max_attempts" env:"LIGHTHOUSE_MAX_ATTEMPTS"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DedupWindow:   events.DefaultWindowTTL,
		SweepInterval: time.Minute,
		MaxAttempts:   3,
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.DedupWindow <= 0 {
		c.DedupWindow = events.DefaultWindowTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
}

// ProcessedEvent is what the engine hands to its sinks after an event has
// left the pipeline, whatever the outcome.
type ProcessedEvent struct {
	Event    *events.ChangeEvent
	Outcome  store.ProcessingOutcome
	Detail   string
	Derived  []Derived
	Duration time.Duration
}

// Sink receives processed events. Implementations must not block; slow
// consumers stall the single worker.
type Sink interface {
	Handle(ctx context.Context, pe ProcessedEvent)
}

// Stats are the engine's live counters.
type Stats struct {
	Received     atomic.Int64
	Processed    atomic.Int64
	Duplicates   atomic.Int64
	Rejected     atomic.Int64
	Requeued     atomic.Int64
	DeadLettered atomic.Int64
	Sweeps       atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Received     int64 `json:"received"`
	Processed    int64 `json:"processed"`
	Duplicates   int64 `json:"duplicates"`
	Rejected     int64 `json:"rejected"`
	Requeued     int64 `json:"requeued"`
	DeadLettered int64 `json:"dead_lettered"`
	Sweeps       int64 `json:"sweeps"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Received:     s.Received.Load(),
		Processed:    s.Processed.Load(),
		Duplicates:   s.Duplicates.Load(),
		Rejected:     s.Rejected.Load(),
		Requeued:     s.Requeued.Load(),
		DeadLettered: s.DeadLettered.Load(),
		Sweeps:       s.Sweeps.Load(),
	}
}

// Engine is the single-worker dispatcher. All rule execution happens on one
// goroutine, so ordering per entity is the arrival order and the rules need
// no locking of their own.
type Engine struct {
	cfg    Config
	tr     transport.Transport
	st     store.Store
	audit  store.AuditStore
	window *events.Window
	sinks  []Sink
	logger *slog.Logger
	stats  Stats

	// selfWrites remembers status reverts this engine issued, keyed by
	// (po, from, to), so their trigger echoes are not re-validated.
	// Keys are staged in pendingSelfWrites during the transaction and
	// promoted only once it commits; a rolled-back revert fires no echo.
	selfWrites        map[string]struct{}
	pendingSelfWrites []string

	// clock overrides time.Now in tests.
	clock func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runErr  error
}

// New creates an engine. The transport must be started by the caller.
func New(cfg Config, tr transport.Transport, st store.Store, audit store.AuditStore, logger *slog.Logger, sinks ...Sink) *Engine {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		tr:         tr,
		st:         st,
		audit:      audit,
		window:     events.NewWindow(cfg.DedupWindow),
		sinks:      sinks,
		logger:     logger.With("component", "engine"),
		selfWrites: make(map[string]struct{}),
	}
}

// Stats exposes the live counters.
func (e *Engine) Stats() *Stats { return &e.stats }

// AddSink registers another sink. Must be called before Start.
func (e *Engine) AddSink(s Sink) { e.sinks = append(e.sinks, s) }

// Start launches the worker goroutine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.Run(runCtx); err != nil {
			e.mu.Lock()
			e.runErr = err
			e.mu.Unlock()
			e.logger.Error("engine stopped", "error", err)
		}
	}()

	e.logger.Info("engine started",
		"dedup_window", e.cfg.DedupWindow,
		"sweep_interval", e.cfg.SweepInterval,
		"max_attempts", e.cfg.MaxAttempts)
	return nil
}

// Stop cancels the worker and waits for it to drain.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// Run is the dispatcher loop. It returns when the context is cancelled or
// the transport fails fatally. Transport downtime beyond the reconnect
// budget is the only error that stops the loop.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	// Initial sweep repairs whatever happened while we were down.
	e.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-e.tr.Notifications():
			if !ok {
				if err := e.tr.Err(); err != nil {
					return fmt.Errorf("transport failed: %w", err)
				}
				return nil
			}
			e.handleNotification(ctx, n)
		case <-e.tr.Reconnects():
			e.logger.Warn("transport reconnected, notifications may have been lost")
			e.sweep(ctx)
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Engine) handleNotification(ctx context.Context, n transport.Notification) {
	e.stats.Received.Add(1)

	ev, err := events.Decode(n.Channel, []byte(n.Payload))
	if err != nil {
		e.deadLetter(ctx, n, "decode", err, 1)
		return
	}

	fp := ev.Fingerprint()
	if !e.window.Admit(fp) {
		e.stats.Duplicates.Add(1)
		e.recordProcessing(ctx, store.ProcessingRecord{
			Fingerprint: string(fp),
			Kind:        string(ev.Kind),
			ProcessedAt: e.now(),
			Outcome:     store.OutcomeSkippedDuplicate,
		})
		e.logger.Debug("duplicate suppressed", "kind", ev.Kind, "entity_id", ev.EntityID)
		return
	}

	e.processEvent(ctx, n, ev, fp)
}

func (e *Engine) processEvent(ctx context.Context, n transport.Notification, ev *events.ChangeEvent, fp events.Fingerprint) {
	start := time.Now()

	var derived []Derived
	e.pendingSelfWrites = e.pendingSelfWrites[:0]
	err := e.st.RunInTx(ctx, func(tx store.Store) error {
		d, err := e.applyRules(ctx, tx, ev)
		derived = d
		return err
	})
	duration := time.Since(start)

	if err != nil {
		e.pendingSelfWrites = e.pendingSelfWrites[:0]
		e.handleFailure(ctx, n, ev, fp, err)
		return
	}
	for _, key := range e.pendingSelfWrites {
		e.selfWrites[key] = struct{}{}
	}
	e.pendingSelfWrites = e.pendingSelfWrites[:0]

	outcome := store.OutcomeOK
	detail := ""
	for _, d := range derived {
		if d.Action == "transition_rejected" {
			e.stats.Rejected.Add(1)
			detail = d.Detail
			break
		}
	}
	e.stats.Processed.Add(1)

	e.recordProcessing(ctx, store.ProcessingRecord{
		Fingerprint: string(fp),
		Kind:        string(ev.Kind),
		ProcessedAt: e.now(),
		Duration:    duration,
		Outcome:     outcome,
		Detail:      detail,
	})

	pe := ProcessedEvent{Event: ev, Outcome: outcome, Detail: detail, Derived: derived, Duration: duration}
	for _, sink := range e.sinks {
		sink.Handle(ctx, pe)
	}

	e.logger.Debug("event processed",
		"kind", ev.Kind, "entity_id", ev.EntityID, "derived", len(derived), "took", duration)
}

func (e *Engine) applyRules(ctx context.Context, tx store.Store, ev *events.ChangeEvent) ([]Derived, error) {
	switch ev.Kind {
	case events.KindInventoryChanged:
		return e.applyInventoryChange(ctx, tx, ev)
	case events.KindPOStatusChanged:
		return e.applyPOChange(ctx, tx, ev)
	case events.KindAlertGenerated:
		return e.applyAlertEvent(ctx, tx, ev.EntityID, ev.Alert.AlertType, ev.Alert.Severity)
	case events.KindForecastUpdated:
		return e.applyForecastUpdate(ctx, tx, ev)
	default:
		return nil, fmt.Errorf("no rule for kind %q", ev.Kind)
	}
}

// handleFailure requeues a transiently failed event with a bumped attempt
// count, quarantining it once the attempt budget is spent. The fingerprint
// is forgotten first so the deliberate redelivery is not swallowed as a
// duplicate.
func (e *Engine) handleFailure(ctx context.Context, n transport.Notification, ev *events.ChangeEvent, fp events.Fingerprint, cause error) {
	attempts := ev.Attempt + 1

	e.recordProcessing(ctx, store.ProcessingRecord{
		Fingerprint: string(fp),
		Kind:        string(ev.Kind),
		ProcessedAt: e.now(),
		Outcome:     store.OutcomeFailed,
		Detail:      cause.Error(),
	})

	if attempts >= e.cfg.MaxAttempts {
		e.deadLetter(ctx, n, "attempts_exhausted", cause, attempts)
		return
	}

	e.window.Forget(fp)
	payload, err := events.BumpAttempt([]byte(n.Payload), attempts)
	if err != nil {
		e.deadLetter(ctx, n, "requeue_encode", errors.Join(cause, err), attempts)
		return
	}
	if err := e.tr.Publish(ctx, n.Channel, string(payload)); err != nil {
		e.deadLetter(ctx, n, "requeue_publish", errors.Join(cause, err), attempts)
		return
	}
	e.stats.Requeued.Add(1)
	e.logger.Warn("event requeued",
		"kind", ev.Kind, "entity_id", ev.EntityID, "attempt", attempts, "error", cause)
}

func (e *Engine) deadLetter(ctx context.Context, n transport.Notification, failureKind string, cause error, attempts int) {
	e.stats.DeadLettered.Add(1)
	e.logger.Error("event dead-lettered",
		"channel", n.Channel, "failure", failureKind, "attempts", attempts, "error", cause)

	err := e.audit.AddDeadLetter(ctx, store.DeadLetter{
		Channel:     n.Channel,
		Payload:     n.Payload,
		FailureKind: failureKind,
		Error:       cause.Error(),
		Attempts:    attempts,
		CreatedAt:   e.now(),
	})
	if err != nil {
		// The trail is the last line of defense; losing an entry is loud.
		e.logger.Error("dead letter write failed", "channel", n.Channel, "error", err)
	}
}

func (e *Engine) sweep(ctx context.Context) {
	e.stats.Sweeps.Add(1)
	if err := e.reconcile(ctx); err != nil {
		e.logger.Error("reconcile sweep failed", "error", err)
	}
	e.recordMetrics(ctx)
}

// recordMetrics persists a counter snapshot each sweep.
func (e *Engine) recordMetrics(ctx context.Context) {
	snap := e.stats.Snapshot()
	now := e.now()
	samples := map[string]int64{
		"events_received":     snap.Received,
		"events_processed":    snap.Processed,
		"events_duplicate":    snap.Duplicates,
		"events_rejected":     snap.Rejected,
		"events_requeued":     snap.Requeued,
		"events_dead_letters": snap.DeadLettered,
	}
	for name, value := range samples {
		if err := e.st.Metrics().Record(ctx, name, float64(value), now); err != nil {
			e.logger.Warn("metric write failed", "metric", name, "error", err)
			continue
		}
	}
}

func (e *Engine) recordProcessing(ctx context.Context, rec store.ProcessingRecord) {
	if err := e.audit.RecordProcessing(ctx, rec); err != nil {
		e.logger.Warn("processing record write failed", "fingerprint", rec.Fingerprint, "error", err)
	}
}
