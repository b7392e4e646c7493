package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/concurrency"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// DeleteExecutor marks its child's rows deleted, removes their index
// entries and records undo information. It emits a single count row.
// Row X locks were already taken by the scan below it (the context's
// delete flag).
type DeleteExecutor struct {
	ctx     *ExecutorContext
	plan    *DeletePlan
	child   Executor
	table   *catalog.TableInfo
	indexes []*catalog.IndexInfo
	done    bool
}

// NewDeleteExecutor builds a delete.
func NewDeleteExecutor(ctx *ExecutorContext, plan *DeletePlan, child Executor) *DeleteExecutor {
	return &DeleteExecutor{ctx: ctx, plan: plan, child: child}
}

// Init primes the child (which acquires IX and row X locks).
func (e *DeleteExecutor) Init() error {
	table, err := e.ctx.Catalog.GetTable(e.plan.TableOID)
	if err != nil {
		return err
	}
	e.table = table
	e.indexes = e.ctx.Catalog.GetTableIndexes(table.Name)
	e.done = false
	return e.child.Init()
}

// Next deletes every child row, then emits the summary count once.
func (e *DeleteExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	if e.done {
		return false, nil
	}
	count := int64(0)
	for {
		var row catalog.Tuple
		var rowRID page.RID
		ok, err := e.child.Next(&row, &rowRID)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}

		if err := e.table.Heap.UpdateTupleMeta(catalog.TupleMeta{IsDeleted: true}, rowRID); err != nil {
			return false, err
		}
		e.ctx.Txn.AppendTableWrite(concurrency.TableWriteRecord{
			TableOID: e.plan.TableOID, RID: rowRID, Heap: e.table.Heap, WType: concurrency.WriteDelete,
		})
		for _, index := range e.indexes {
			key := row.KeyFromTuple(index.KeyAttrs)
			if err := index.DeleteEntry(key); err != nil {
				return false, err
			}
			e.ctx.Txn.AppendIndexWrite(concurrency.IndexWriteRecord{
				IndexOID: index.OID, RID: rowRID, KeyTuple: key, WType: concurrency.WriteDelete,
			})
		}
		count++
	}

	e.done = true
	*tuple = *catalog.NewTuple([]catalog.Value{catalog.NewIntegerValue(count)})
	*rid = page.RID{PageID: page.InvalidPageID}
	return true, nil
}
