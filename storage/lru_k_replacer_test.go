package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUKReplacerEmpty(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	assert.Equal(t, 0, r.Size())
	_, ok := r.Evict()
	assert.False(t, ok, "empty replacer must not produce a victim")
}

func TestLRUKReplacerInfiniteDistancePreferred(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	// Frame 0: one access (infinite distance). Frame 1: two accesses.
	r.RecordAccess(0, AccessUnknown)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(1, AccessUnknown)
	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(0), victim, "frame with <k accesses must be evicted first")
}

func TestLRUKReplacerLRUAmongInfinite(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	// Both frames have a single access; the older one loses.
	r.RecordAccess(2, AccessUnknown)
	r.RecordAccess(3, AccessUnknown)
	r.SetEvictable(2, true)
	r.SetEvictable(3, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(2), victim)

	victim, ok = r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(3), victim)
	assert.Equal(t, 0, r.Size())
}

func TestLRUKReplacerBackwardKDistance(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	// Interleaved accesses: a at ts 0,2,4 and b at ts 1,3. With k=2 the
	// window slides, so a's history is [2,4] and b's is [1,3]. At ts 5,
	// b's k-distance (5-1=4) exceeds a's (5-2=3).
	r.RecordAccess(0, AccessUnknown) // a
	r.RecordAccess(1, AccessUnknown) // b
	r.RecordAccess(0, AccessUnknown)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(0, AccessUnknown)
	r.SetEvictable(0, true)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(1), victim)
}

func TestLRUKReplacerHistoryWindow(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	for i := 0; i < 5; i++ {
		r.RecordAccess(0, AccessUnknown)
	}
	r.mutex.Lock()
	history := r.nodes[0].history
	r.mutex.Unlock()

	require.Len(t, history, 2, "history length is min(accesses, k)")
	assert.Equal(t, uint64(3), history[0])
	assert.Equal(t, uint64(4), history[1])
}

func TestLRUKReplacerSetEvictableTracksSize(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	r.RecordAccess(0, AccessUnknown)
	r.RecordAccess(1, AccessUnknown)
	assert.Equal(t, 0, r.Size(), "new frames start non-evictable")

	r.SetEvictable(0, true)
	r.SetEvictable(1, true)
	assert.Equal(t, 2, r.Size())

	// Repeating a state is not a transition.
	r.SetEvictable(0, true)
	assert.Equal(t, 2, r.Size())

	r.SetEvictable(0, false)
	assert.Equal(t, 1, r.Size())
}

func TestLRUKReplacerRemove(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	r.RecordAccess(0, AccessUnknown)
	r.SetEvictable(0, true)
	r.Remove(0)
	assert.Equal(t, 0, r.Size())

	// Removing a frame that was never recorded is a no-op.
	r.Remove(3)
}

func TestLRUKReplacerEvictRemovesNode(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	r.RecordAccess(0, AccessUnknown)
	r.SetEvictable(0, true)
	_, ok := r.Evict()
	require.True(t, ok)

	// The victim's history is gone; recording again starts fresh.
	r.RecordAccess(0, AccessUnknown)
	r.mutex.Lock()
	historyLen := len(r.nodes[0].history)
	r.mutex.Unlock()
	assert.Equal(t, 1, historyLen)
}

func TestLRUKReplacerPanicsOnMisuse(t *testing.T) {
	r := NewLRUKReplacer(4, 2)

	assert.Panics(t, func() {
		r.RecordAccess(4, AccessUnknown) // frame id == replacer size
	})
	assert.Panics(t, func() {
		r.RecordAccess(-1, AccessUnknown)
	})
	assert.Panics(t, func() {
		r.SetEvictable(2, true) // never recorded
	})

	r.RecordAccess(0, AccessUnknown)
	assert.Panics(t, func() {
		r.Remove(0) // non-evictable
	})
}
