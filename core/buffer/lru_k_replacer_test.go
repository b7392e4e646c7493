package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/sukunadb/core/storage/page"
)

func TestLRUKReplacer_EvictOrder(t *testing.T) {
	r := NewLRUKReplacer(7, 2)

	// Access pattern 1,2,3,1,2: frames 1 and 2 have two samples, frame 3
	// only one, so frame 3 is the unique +inf candidate.
	for _, f := range []page.FrameID{1, 2, 3, 1, 2} {
		r.RecordAccess(f)
	}
	for _, f := range []page.FrameID{1, 2, 3} {
		r.SetEvictable(f, true)
	}
	require.Equal(t, 3, r.Size())

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(3), victim)

	// Among the remaining frames, 1 has the older 2nd-most-recent access.
	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(1), victim)

	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(2), victim)

	_, ok = r.Evict()
	require.False(t, ok)
	require.Equal(t, 0, r.Size())
}

func TestLRUKReplacer_InfTieBreakIsLRU(t *testing.T) {
	r := NewLRUKReplacer(4, 3)

	// All frames have fewer than k=3 samples; the earliest-accessed wins.
	r.RecordAccess(10)
	r.RecordAccess(11)
	r.RecordAccess(12)
	r.RecordAccess(10) // still only 2 samples for frame 10
	for _, f := range []page.FrameID{10, 11, 12} {
		r.SetEvictable(f, true)
	}

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(10), victim, "oldest first access evicts first among +inf frames")
}

func TestLRUKReplacer_EvictableAccounting(t *testing.T) {
	r := NewLRUKReplacer(3, 2)
	r.RecordAccess(1)
	r.RecordAccess(2)
	require.Equal(t, 0, r.Size(), "new frames start non-evictable")

	r.SetEvictable(1, true)
	r.SetEvictable(1, true) // idempotent
	require.Equal(t, 1, r.Size())

	r.SetEvictable(1, false)
	require.Equal(t, 0, r.Size())
	_, ok := r.Evict()
	require.False(t, ok)

	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	r.Remove(1)
	require.Equal(t, 1, r.Size())
	r.Remove(1) // absent, no-op
	require.Equal(t, 1, r.Size())

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, page.FrameID(2), victim)
}

func TestLRUKReplacer_RecordAccessDoesNotMakeEvictable(t *testing.T) {
	r := NewLRUKReplacer(2, 2)
	r.RecordAccess(0)
	r.SetEvictable(0, false)
	r.RecordAccess(0)
	r.RecordAccess(0)
	require.Equal(t, 0, r.Size())
	_, ok := r.Evict()
	require.False(t, ok)
}
