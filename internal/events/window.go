package events

import (
	"sync"
	"time"
)

// DefaultWindowTTL bounds how long a fingerprint suppresses redeliveries.
const DefaultWindowTTL = 5 * time.Minute

// Window is a time-bounded set of recently seen event fingerprints. It
// collapses redundant redeliveries of the same event; it makes no global
// ordering guarantee. Entries older than the TTL are evicted lazily on
// insert, keeping memory proportional to recent traffic.
//
// The dispatcher's single worker is the only writer; the mutex exists so
// gateway stats reads stay safe.
type Window struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[Fingerprint]time.Time
}

// NewWindow creates a Window with the given TTL. A non-positive TTL falls
// back to DefaultWindowTTL.
func NewWindow(ttl time.Duration) *Window {
	if ttl <= 0 {
		ttl = DefaultWindowTTL
	}
	return &Window{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Fingerprint]time.Time),
	}
}

// Admit reports whether the event identified by fp should be processed.
// It returns false if the fingerprint was seen within the TTL (duplicate,
// drop); otherwise it records the fingerprint and returns true.
func (w *Window) Admit(fp Fingerprint) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evictLocked(now)

	if seen, ok := w.entries[fp]; ok && now.Sub(seen) < w.ttl {
		return false
	}
	w.entries[fp] = now
	return true
}

// Forget removes a fingerprint so a deliberate requeue of the same event is
// not swallowed as a duplicate.
func (w *Window) Forget(fp Fingerprint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, fp)
}

// Len returns the number of live entries.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Window) evictLocked(now time.Time) {
	for fp, seen := range w.entries {
		if now.Sub(seen) >= w.ttl {
			delete(w.entries, fp)
		}
	}
}
