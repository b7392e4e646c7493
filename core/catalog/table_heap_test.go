package catalog

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/storage/disk"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

func setupCatalog(t *testing.T) (*Catalog, *buffer.BufferPoolManager) {
	t.Helper()
	dm, err := disk.NewDiskManager(filepath.Join(t.TempDir(), "catalog.db"), page.DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.ShutDown() })
	bpm := buffer.NewBufferPoolManager(64, 2, dm, nil, nil)
	return NewCatalog(bpm, nil), bpm
}

func kvSchema() *Schema {
	return NewSchema(
		Column{Name: "id", Type: TypeInteger},
		Column{Name: "payload", Type: TypeVarchar},
	)
}

func TestTableHeap_InsertGetRoundTrip(t *testing.T) {
	cat, _ := setupCatalog(t)
	info, err := cat.CreateTable("t", kvSchema())
	require.NoError(t, err)

	tuple := NewTuple([]Value{NewIntegerValue(7), NewVarcharValue("seven")})
	rid, err := info.Heap.InsertTuple(TupleMeta{}, tuple)
	require.NoError(t, err)

	meta, got, err := info.Heap.GetTuple(rid)
	require.NoError(t, err)
	require.False(t, meta.IsDeleted)
	require.Equal(t, int64(7), got.Value(0).AsInt())
	require.Equal(t, "seven", got.Value(1).AsString())
	require.Equal(t, rid, got.RID())
}

func TestTableHeap_SpansPages(t *testing.T) {
	cat, _ := setupCatalog(t)
	info, err := cat.CreateTable("t", kvSchema())
	require.NoError(t, err)

	// Large payloads force the heap onto multiple pages.
	const n = 100
	payload := make([]byte, 256)
	rids := make([]page.RID, 0, n)
	for i := 0; i < n; i++ {
		tuple := NewTuple([]Value{NewIntegerValue(int64(i)), NewVarcharValue(string(payload))})
		rid, err := info.Heap.InsertTuple(TupleMeta{}, tuple)
		require.NoError(t, err)
		rids = append(rids, rid)
	}
	require.NotEqual(t, rids[0].PageID, rids[n-1].PageID, "expected the heap to span pages")

	it, err := info.Heap.MakeIterator()
	require.NoError(t, err)
	seen := 0
	for {
		_, tuple, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		require.Equal(t, int64(seen), tuple.Value(0).AsInt(), "iteration follows insertion order")
		seen++
	}
	require.Equal(t, n, seen)
}

func TestTableHeap_DeleteMarkAndNulls(t *testing.T) {
	cat, _ := setupCatalog(t)
	info, err := cat.CreateTable("t", kvSchema())
	require.NoError(t, err)

	tuple := NewTuple([]Value{NewIntegerValue(1), NewNullValue(TypeVarchar)})
	rid, err := info.Heap.InsertTuple(TupleMeta{}, tuple)
	require.NoError(t, err)

	meta, got, err := info.Heap.GetTuple(rid)
	require.NoError(t, err)
	require.False(t, meta.IsDeleted)
	require.True(t, got.Value(1).IsNull(), "null values survive the round trip")

	require.NoError(t, info.Heap.UpdateTupleMeta(TupleMeta{IsDeleted: true}, rid))
	meta, err = info.Heap.GetTupleMeta(rid)
	require.NoError(t, err)
	require.True(t, meta.IsDeleted)

	require.NoError(t, info.Heap.UpdateTupleMeta(TupleMeta{IsDeleted: false}, rid))
	meta, err = info.Heap.GetTupleMeta(rid)
	require.NoError(t, err)
	require.False(t, meta.IsDeleted, "the deletion mark flips back cleanly")
}

func TestCatalog_Lookups(t *testing.T) {
	cat, _ := setupCatalog(t)
	info, err := cat.CreateTable("orders", kvSchema())
	require.NoError(t, err)

	_, err = cat.CreateTable("orders", kvSchema())
	require.ErrorIs(t, err, ErrTableExists)

	byOID, err := cat.GetTable(info.OID)
	require.NoError(t, err)
	byName, err := cat.GetTableByName("orders")
	require.NoError(t, err)
	require.Same(t, byOID, byName)

	_, err = cat.GetTableByName("missing")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestCatalog_IndexBackfillAndOrder(t *testing.T) {
	cat, _ := setupCatalog(t)
	info, err := cat.CreateTable("nums", kvSchema())
	require.NoError(t, err)

	// Insert out of order, including a negative key, before the index
	// exists.
	for _, id := range []int64{5, -3, 12, 0} {
		tuple := NewTuple([]Value{NewIntegerValue(id), NewVarcharValue(fmt.Sprint(id))})
		_, err := info.Heap.InsertTuple(TupleMeta{}, tuple)
		require.NoError(t, err)
	}

	index, err := cat.CreateIndex("nums_id", "nums", []int{0})
	require.NoError(t, err)

	// Backfilled lookups work.
	for _, id := range []int64{5, -3, 12, 0} {
		key := NewTuple([]Value{NewIntegerValue(id)})
		_, found, err := index.ScanKey(key)
		require.NoError(t, err)
		require.True(t, found, "key %d", id)
	}

	// The sign-flipped encoding keeps numeric order across zero.
	it, err := index.Index.Iterator()
	require.NoError(t, err)
	var order []page.RID
	for ; !it.IsEnd(); it.Next() {
		order = append(order, it.RID())
	}
	it.Close()
	require.Len(t, order, 4)
	var ids []int64
	for _, rid := range order {
		_, tuple, err := info.Heap.GetTuple(rid)
		require.NoError(t, err)
		ids = append(ids, tuple.Value(0).AsInt())
	}
	require.Equal(t, []int64{-3, 0, 5, 12}, ids)

	require.Len(t, cat.GetTableIndexes("nums"), 1)
	_, err = cat.CreateIndex("nums_id", "nums", []int{0})
	require.ErrorIs(t, err, ErrIndexExists)
}
