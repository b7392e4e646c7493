package execution

import (
	"fmt"

	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/concurrency"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// InsertExecutor drains its child, inserting every tuple into the heap
// and all of the table's indexes, recording undo information as it
// goes. It emits a single row holding the insert count.
type InsertExecutor struct {
	ctx     *ExecutorContext
	plan    *InsertPlan
	child   Executor
	table   *catalog.TableInfo
	indexes []*catalog.IndexInfo
	done    bool
}

// NewInsertExecutor builds an insert.
func NewInsertExecutor(ctx *ExecutorContext, plan *InsertPlan, child Executor) *InsertExecutor {
	return &InsertExecutor{ctx: ctx, plan: plan, child: child}
}

// Init locks the table in IX and primes the child.
func (e *InsertExecutor) Init() error {
	table, err := e.ctx.Catalog.GetTable(e.plan.TableOID)
	if err != nil {
		return err
	}
	e.table = table
	e.indexes = e.ctx.Catalog.GetTableIndexes(table.Name)
	if e.ctx.LockMgr != nil {
		if err := e.ctx.LockMgr.LockTable(e.ctx.Txn, concurrency.IntentionExclusive, e.plan.TableOID); err != nil {
			return fmt.Errorf("insert table lock: %w", err)
		}
	}
	e.done = false
	return e.child.Init()
}

// Next inserts every child row, then emits the summary count once.
func (e *InsertExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	if e.done {
		return false, nil
	}
	count := int64(0)
	for {
		var row catalog.Tuple
		var childRID page.RID
		ok, err := e.child.Next(&row, &childRID)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}

		newRID, err := e.table.Heap.InsertTuple(catalog.TupleMeta{}, &row)
		if err != nil {
			return false, err
		}
		if e.ctx.LockMgr != nil {
			if err := e.ctx.LockMgr.LockRow(e.ctx.Txn, concurrency.Exclusive, e.plan.TableOID, newRID); err != nil {
				return false, fmt.Errorf("insert row lock: %w", err)
			}
		}
		e.ctx.Txn.AppendTableWrite(concurrency.TableWriteRecord{
			TableOID: e.plan.TableOID, RID: newRID, Heap: e.table.Heap, WType: concurrency.WriteInsert,
		})
		for _, index := range e.indexes {
			key := row.KeyFromTuple(index.KeyAttrs)
			if err := index.InsertEntry(key, newRID); err != nil {
				return false, fmt.Errorf("insert into index %s: %w", index.Name, err)
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
