package store

import (
	"context"
	"time"
)

// ProcessingOutcome classifies how an event left the dispatcher.
type ProcessingOutcome string

const (
	OutcomeOK               ProcessingOutcome = "ok"
	OutcomeSkippedDuplicate ProcessingOutcome = "skipped_duplicate"
	OutcomeFailed           ProcessingOutcome = "failed"
)

// ProcessingRecord is one row of the append-only processing audit trail.
// Records are retained on a rolling, time-bounded basis.
type ProcessingRecord struct {
	Fingerprint string
	Kind        string
	ProcessedAt time.Time
	Duration    time.Duration
	Outcome     ProcessingOutcome
	// Detail carries the rejection or failure reason, empty on success.
	Detail string
}

// DeadLetter is a quarantined event retained with enough context for manual
// inspection and replay.
type DeadLetter struct {
	ID          string
	Channel     string
	Payload     string
	FailureKind string
	Error       string
	Attempts    int
	CreatedAt   time.Time
}

// AuditStore is the sink for processing records and dead letters. The trail
// must never silently lose data: even rejected domain writes leave a record.
type AuditStore interface {
	RecordProcessing(ctx context.Context, rec ProcessingRecord) error
	AddDeadLetter(ctx context.Context, dl DeadLetter) error
	GetDeadLetter(ctx context.Context, id string) (*DeadLetter, error)
	ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetter, error)
	// DeleteDeadLetter removes a dead letter after a successful replay.
	DeleteDeadLetter(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
