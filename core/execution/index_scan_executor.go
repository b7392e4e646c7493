package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/indexing/bptree"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// IndexScanExecutor walks a B+ tree index in key order and fetches each
// referenced tuple through the table heap, skipping deleted ones.
type IndexScanExecutor struct {
	ctx   *ExecutorContext
	plan  *IndexScanPlan
	table *catalog.TableInfo
	iter  *bptree.Iterator
}

// NewIndexScanExecutor builds an index scan.
func NewIndexScanExecutor(ctx *ExecutorContext, plan *IndexScanPlan) *IndexScanExecutor {
	return &IndexScanExecutor{ctx: ctx, plan: plan}
}

// Init resolves the index and positions the iterator at the first key.
func (e *IndexScanExecutor) Init() error {
	index, err := e.ctx.Catalog.GetIndex(e.plan.IndexOID)
	if err != nil {
		return err
	}
	e.table, err = e.ctx.Catalog.GetTable(e.plan.TableOID)
	if err != nil {
		return err
	}
	e.iter, err = index.Index.Iterator()
	return err
}

// Next yields the next live tuple in index key order.
func (e *IndexScanExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	for ; !e.iter.IsEnd(); e.iter.Next() {
		entryRID := e.iter.RID()
		meta, row, err := e.table.Heap.GetTuple(entryRID)
		if err != nil {
			e.iter.Close()
			return false, err
		}
		if meta.IsDeleted {
			continue
		}
		*tuple = *row
		*rid = entryRID
		e.iter.Next()
		return true, nil
	}
	e.iter.Close()
	return false, nil
}
