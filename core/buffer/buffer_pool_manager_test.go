package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/sukunadb/core/storage/disk"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// setupBufferPool creates a buffer pool over a fresh temp database file.
func setupBufferPool(t *testing.T, poolSize, k int) *BufferPoolManager {
	t.Helper()
	dm, err := disk.NewDiskManager(filepath.Join(t.TempDir(), "test.db"), page.DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.ShutDown() })
	return NewBufferPoolManager(poolSize, k, dm, nil, nil)
}

func TestBufferPool_NewAndFetch(t *testing.T) {
	bpm := setupBufferPool(t, 3, 2)

	p0, err := bpm.NewPage()
	require.NoError(t, err)
	copy(p0.GetData(), []byte("hello page zero"))
	id0 := p0.GetPageID()
	require.Equal(t, 1, bpm.PinCount(id0))

	require.True(t, bpm.UnpinPage(id0, true))

	fetched, err := bpm.FetchPage(id0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello page zero"), fetched.GetData()[:15])
	require.True(t, bpm.UnpinPage(id0, false))
}

func TestBufferPool_EvictionRoundTrip(t *testing.T) {
	bpm := setupBufferPool(t, 2, 2)

	ids := make([]page.PageID, 0, 4)
	for i := 0; i < 4; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		p.GetData()[0] = byte(i + 1)
		ids = append(ids, p.GetPageID())
		require.True(t, bpm.UnpinPage(p.GetPageID(), true))
	}

	// All four pages round-trip through the 2-frame pool.
	for i, id := range ids {
		p, err := bpm.FetchPage(id)
		require.NoError(t, err)
		require.Equal(t, byte(i+1), p.GetData()[0])
		require.True(t, bpm.UnpinPage(id, false))
	}
}

func TestBufferPool_FullOfPinnedPages(t *testing.T) {
	bpm := setupBufferPool(t, 2, 2)

	p1, err := bpm.NewPage()
	require.NoError(t, err)
	p2, err := bpm.NewPage()
	require.NoError(t, err)

	_, err = bpm.NewPage()
	require.ErrorIs(t, err, ErrBufferPoolFull)
	_, err = bpm.FetchPage(page.PageID(99))
	require.ErrorIs(t, err, ErrBufferPoolFull)

	require.True(t, bpm.UnpinPage(p1.GetPageID(), false))
	_, err = bpm.NewPage()
	require.NoError(t, err)

	require.True(t, bpm.UnpinPage(p2.GetPageID(), false))
}

func TestBufferPool_UnpinTwiceFails(t *testing.T) {
	bpm := setupBufferPool(t, 2, 2)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	id := p.GetPageID()

	require.True(t, bpm.UnpinPage(id, false))
	require.False(t, bpm.UnpinPage(id, false), "pin count already zero")
	require.False(t, bpm.UnpinPage(page.PageID(42), false), "not resident")
}

func TestBufferPool_DirtyFlagLatchesOn(t *testing.T) {
	bpm := setupBufferPool(t, 2, 2)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	id := p.GetPageID()
	p.Pin() // second pin, via pool-internal accounting
	require.True(t, bpm.UnpinPage(id, true))
	require.True(t, bpm.UnpinPage(id, false), "clean unpin must not clear dirty")
	require.True(t, p.IsDirty())

	require.NoError(t, bpm.FlushPage(id))
	require.False(t, p.IsDirty())
}

func TestBufferPool_DeletePage(t *testing.T) {
	bpm := setupBufferPool(t, 2, 2)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	id := p.GetPageID()

	require.False(t, bpm.DeletePage(id), "pinned pages cannot be deleted")
	require.True(t, bpm.UnpinPage(id, false))
	require.True(t, bpm.DeletePage(id))
	require.True(t, bpm.DeletePage(id), "deleting a non-resident page succeeds")
	require.Equal(t, -1, bpm.PinCount(id))
}

func TestBufferPool_FlushAllPages(t *testing.T) {
	bpm := setupBufferPool(t, 3, 2)

	for i := 0; i < 3; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		p.GetData()[0] = 0xAB
		require.True(t, bpm.UnpinPage(p.GetPageID(), true))
	}
	require.NoError(t, bpm.FlushAllPages())
	for _, frame := range bpm.pages {
		require.False(t, frame.IsDirty())
	}
}
