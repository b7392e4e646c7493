package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageGuard_PinAccounting(t *testing.T) {
	bpm := setupBufferPool(t, 4, 2)

	basic, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := basic.PageID()
	require.Equal(t, 1, bpm.PinCount(id))

	read, err := bpm.FetchPageRead(id)
	require.NoError(t, err)
	require.Equal(t, 2, bpm.PinCount(id))

	read.Drop()
	require.Equal(t, 1, bpm.PinCount(id))

	basic.Drop()
	require.Equal(t, 0, bpm.PinCount(id))

	basic.Drop() // idempotent
	require.Equal(t, 0, bpm.PinCount(id))
}

func TestPageGuard_MoveThenDropOld(t *testing.T) {
	bpm := setupBufferPool(t, 4, 2)

	g1, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	g2, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id1, id2 := g1.PageID(), g2.PageID()

	// Move g2 into g1: g1's original pin is dropped, g2 is emptied.
	g1.MoveFrom(&g2)
	require.Equal(t, 0, bpm.PinCount(id1))
	require.Equal(t, 1, bpm.PinCount(id2))
	require.Equal(t, id2, g1.PageID())

	// Self-move is a no-op.
	g1.MoveFrom(&g1)
	require.Equal(t, 1, bpm.PinCount(id2))

	g1.Drop()
	require.Equal(t, 0, bpm.PinCount(id2))
	g2.Drop() // empty after move, no-op
}

func TestPageGuard_WriteGuardMarksDirty(t *testing.T) {
	bpm := setupBufferPool(t, 4, 2)

	g, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := g.PageID()
	g.Drop()

	w, err := bpm.FetchPageWrite(id)
	require.NoError(t, err)
	copy(w.GetDataMut(), []byte("dirty bytes"))
	w.Drop()

	p, err := bpm.FetchPage(id)
	require.NoError(t, err)
	require.True(t, p.IsDirty())
	require.True(t, bpm.UnpinPage(id, false))
}

func TestPageGuard_UpgradeReleasesNothing(t *testing.T) {
	bpm := setupBufferPool(t, 4, 2)

	g, err := bpm.NewPageGuarded()
	require.NoError(t, err)
	id := g.PageID()

	w := g.UpgradeWrite()
	require.Equal(t, 1, bpm.PinCount(id), "upgrade keeps the pin")
	w.GetDataMut()[0] = 0xFF
	w.Drop()
	require.Equal(t, 0, bpm.PinCount(id))
	w.Drop() // idempotent

	g2, err := bpm.FetchPageBasic(id)
	require.NoError(t, err)
	r := g2.UpgradeRead()
	require.Equal(t, 1, bpm.PinCount(id))
	r.Drop()
	require.Equal(t, 0, bpm.PinCount(id))
}
