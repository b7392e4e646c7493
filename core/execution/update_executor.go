package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/concurrency"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// UpdateExecutor rewrites rows as delete-plus-insert at the heap level,
// mirrored in every index, and emits a single count row.
type UpdateExecutor struct {
	ctx     *ExecutorContext
	plan    *UpdatePlan
	child   Executor
	table   *catalog.TableInfo
	indexes []*catalog.IndexInfo
	done    bool
}

// NewUpdateExecutor builds an update.
func NewUpdateExecutor(ctx *ExecutorContext, plan *UpdatePlan, child Executor) *UpdateExecutor {
	return &UpdateExecutor{ctx: ctx, plan: plan, child: child}
}

// Init primes the child (which acquires IX and row X locks).
func (e *UpdateExecutor) Init() error {
	table, err := e.ctx.Catalog.GetTable(e.plan.TableOID)
	if err != nil {
		return err
	}
	e.table = table
	e.indexes = e.ctx.Catalog.GetTableIndexes(table.Name)
	e.done = false
	return e.child.Init()
}

// Next updates every child row, then emits the summary count once.
func (e *UpdateExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
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

		// Delete the old image.
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

		// Insert the new image.
		vals := make([]catalog.Value, len(e.plan.TargetExprs))
		for i, expr := range e.plan.TargetExprs {
			vals[i] = expr.Evaluate(&row, e.table.Schema)
		}
		newTuple := catalog.NewTuple(vals)
		newRID, err := e.table.Heap.InsertTuple(catalog.TupleMeta{}, newTuple)
		if err != nil {
			return false, err
		}
		if e.ctx.LockMgr != nil {
			if err := e.ctx.LockMgr.LockRow(e.ctx.Txn, concurrency.Exclusive, e.plan.TableOID, newRID); err != nil {
				return false, err
			}
		}
		e.ctx.Txn.AppendTableWrite(concurrency.TableWriteRecord{
			TableOID: e.plan.TableOID, RID: newRID, Heap: e.table.Heap, WType: concurrency.WriteInsert,
		})
		for _, index := range e.indexes {
			key := newTuple.KeyFromTuple(index.KeyAttrs)
			if err := index.InsertEntry(key, newRID); err != nil {
				return false, err
			}
			e.ctx.Txn.AppendIndexWrite(concurrency.IndexWriteRecord{
				IndexOID: index.OID, RID: newRID, KeyTuple: key, WType: concurrency.WriteInsert,
			})
		}
		count++
	}

	e.done = true
	*tuple = *catalog.NewTuple([]catalog.Value{catalog.NewIntegerValue(count)})
	*rid = page.RID{PageID: page.InvalidPageID}
	return true, nil
}
