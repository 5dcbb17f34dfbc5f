package events

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// FingerprintGranularity is the bucket size applied to OccurredAt before
// hashing. Redeliveries of the same physical change carry timestamps within
// the same bucket; distinct changes with identical values in different
// buckets stay distinct.
const FingerprintGranularity = time.Second

// Fingerprint is the derived identity of a ChangeEvent, used only by the
// deduplication window. Never persisted as domain state.
type Fingerprint string

// Fingerprint computes the event's dedup key from its kind, entity, value
// transition and coarse timestamp. The attempt counter is deliberately
// excluded: a requeued event keeps the identity of its first delivery.
func (e *ChangeEvent) Fingerprint() Fingerprint {
	bucket := e.OccurredAt.UTC().Truncate(FingerprintGranularity)

	var buf []byte
	for _, field := range []string{
		string(e.Kind),
		formatInt(e.EntityID),
		e.OldValue(),
		e.NewValue(),
		bucket.Format(time.RFC3339),
	} {
		buf = append(buf, field...)
		buf = append(buf, 0)
	}
	sum := blake3.Sum256(buf)
	return Fingerprint(hex.EncodeToString(sum[:16]))
}
