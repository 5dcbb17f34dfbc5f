package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(entityID int64, oldQty, newQty int64, at time.Time) *ChangeEvent {
	return &ChangeEvent{
		Kind:       KindInventoryChanged,
		EntityID:   entityID,
		Origin:     OriginUpdate,
		OccurredAt: at,
		Inventory:  &InventoryChange{OldQuantity: oldQty, NewQuantity: newQty},
	}
}

func TestFingerprint_IdenticalEventsCollide(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 123_000_000, time.UTC)
	a := testEvent(42, 100, 85, at)
	b := testEvent(42, 100, 85, at.Add(200*time.Millisecond)) // same coarse bucket

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_DistinctEventsDiffer(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := testEvent(42, 100, 85, at)

	assert.NotEqual(t, base.Fingerprint(), testEvent(43, 100, 85, at).Fingerprint(), "entity id")
	assert.NotEqual(t, base.Fingerprint(), testEvent(42, 100, 84, at).Fingerprint(), "new value")
	assert.NotEqual(t, base.Fingerprint(), testEvent(42, 100, 85, at.Add(2*time.Second)).Fingerprint(), "time bucket")
}

func TestFingerprint_AttemptExcluded(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := testEvent(42, 100, 85, at)
	b := testEvent(42, 100, 85, at)
	b.Attempt = 2

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestWindow_AdmitThenDuplicate(t *testing.T) {
	w := NewWindow(5 * time.Minute)
	fp := testEvent(1, 10, 9, time.Now()).Fingerprint()

	assert.True(t, w.Admit(fp))
	assert.False(t, w.Admit(fp))
	assert.Equal(t, 1, w.Len())
}

func TestWindow_ExpiryAllowsReadmission(t *testing.T) {
	w := NewWindow(time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	fp := Fingerprint("abc")
	require.True(t, w.Admit(fp))
	require.False(t, w.Admit(fp))

	now = now.Add(61 * time.Second)
	assert.True(t, w.Admit(fp), "expired entry should be evicted and readmitted")
}

func TestWindow_LazyEvictionBoundsMemory(t *testing.T) {
	w := NewWindow(time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		require.True(t, w.Admit(testEvent(int64(i), 10, 9, now).Fingerprint()))
	}
	require.Equal(t, 100, w.Len())

	now = now.Add(2 * time.Minute)
	w.Admit(Fingerprint("fresh"))
	assert.Equal(t, 1, w.Len(), "stale entries evicted on insert")
}

func TestWindow_Forget(t *testing.T) {
	w := NewWindow(time.Minute)
	fp := Fingerprint("requeue-me")

	require.True(t, w.Admit(fp))
	w.Forget(fp)
	assert.True(t, w.Admit(fp), "forgotten fingerprint admits again")
}

func TestWindow_DefaultTTL(t *testing.T) {
	w := NewWindow(0)
	assert.Equal(t, DefaultWindowTTL, w.ttl)
}
