package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lighthouse/internal/store"
)

// AuditStore is an in-memory store.AuditStore for tests and demo mode.
type AuditStore struct {
	mu          sync.Mutex
	records     []store.ProcessingRecord
	deadLetters map[string]*store.DeadLetter
}

var _ store.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates an empty in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{deadLetters: make(map[string]*store.DeadLetter)}
}

func (s *AuditStore) RecordProcessing(ctx context.Context, rec store.ProcessingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *AuditStore) AddDeadLetter(ctx context.Context, dl store.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}
	cp := dl
	s.deadLetters[dl.ID] = &cp
	return nil
}

func (s *AuditStore) GetDeadLetter(ctx context.Context, id string) (*store.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.deadLetters[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *dl
	return &cp, nil
}

func (s *AuditStore) ListDeadLetters(ctx context.Context, limit int) ([]*store.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.DeadLetter, 0, len(s.deadLetters))
	for _, dl := range s.deadLetters {
		cp := *dl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AuditStore) DeleteDeadLetter(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deadLetters[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.deadLetters, id)
	return nil
}

func (s *AuditStore) Close(ctx context.Context) error { return nil }

// Records returns a copy of the processing trail, for tests.
func (s *AuditStore) Records() []store.ProcessingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ProcessingRecord, len(s.records))
	copy(out, s.records)
	return out
}
