package execution

import (
	"fmt"

	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/concurrency"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// SeqScanExecutor walks a table heap in rid order under two-phase
// locking: an intention lock on the table, then per-row S (or X when
// scanning for a delete/update). READ_UNCOMMITTED takes no read locks;
// READ_COMMITTED releases row S locks as soon as the row is surfaced.
type SeqScanExecutor struct {
	ctx   *ExecutorContext
	plan  *SeqScanPlan
	table *catalog.TableInfo
	iter  *catalog.TableIterator
}

// NewSeqScanExecutor builds a sequential scan.
func NewSeqScanExecutor(ctx *ExecutorContext, plan *SeqScanPlan) *SeqScanExecutor {
	return &SeqScanExecutor{ctx: ctx, plan: plan}
}

// Init acquires the table-level lock and positions the iterator.
func (e *SeqScanExecutor) Init() error {
	table, err := e.ctx.Catalog.GetTable(e.plan.TableOID)
	if err != nil {
		return err
	}
	e.table = table

	if e.ctx.LockMgr != nil {
		if e.ctx.IsDelete {
			if err := e.ctx.LockMgr.LockTable(e.ctx.Txn, concurrency.IntentionExclusive, e.plan.TableOID); err != nil {
				return fmt.Errorf("seq scan table lock: %w", err)
			}
		} else if e.ctx.Txn.Isolation() != concurrency.ReadUncommitted {
			if err := e.ctx.LockMgr.LockTable(e.ctx.Txn, concurrency.IntentionShared, e.plan.TableOID); err != nil {
				return fmt.Errorf("seq scan table lock: %w", err)
			}
		}
	}

	e.iter, err = table.Heap.MakeIterator()
	return err
}

// lockRow takes the per-row lock appropriate for this scan. Returns
// whether a shared lock was taken (and may need early release).
func (e *SeqScanExecutor) lockRow(rid page.RID) (bool, error) {
	if e.ctx.LockMgr == nil {
		return false, nil
	}
	if e.ctx.IsDelete {
		if err := e.ctx.LockMgr.LockRow(e.ctx.Txn, concurrency.Exclusive, e.plan.TableOID, rid); err != nil {
			return false, fmt.Errorf("seq scan row lock: %w", err)
		}
		return false, nil
	}
	if e.ctx.Txn.Isolation() == concurrency.ReadUncommitted {
		return false, nil
	}
	if err := e.ctx.LockMgr.LockRow(e.ctx.Txn, concurrency.Shared, e.plan.TableOID, rid); err != nil {
		return false, fmt.Errorf("seq scan row lock: %w", err)
	}
	return true, nil
}

// unlockRowForce drops a shared row lock without the 2PL transition,
// used when a row is skipped or already surfaced under READ_COMMITTED.
func (e *SeqScanExecutor) unlockRowForce(rid page.RID) {
	_ = e.ctx.LockMgr.UnlockRow(e.ctx.Txn, e.plan.TableOID, rid, true)
}

// Next yields the next live row passing the predicate.
func (e *SeqScanExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	for {
		meta, row, ok, err := e.iter.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		rowRID := row.RID()

		sLocked, err := e.lockRow(rowRID)
		if err != nil {
			return false, err
		}
		if meta.IsDeleted {
			if sLocked {
				e.unlockRowForce(rowRID)
			}
			continue
		}
		if e.plan.Predicate != nil && !truthy(e.plan.Predicate.Evaluate(row, e.plan.OutSchema)) {
			if sLocked {
				e.unlockRowForce(rowRID)
			}
			continue
		}

		*tuple = *row
		*rid = rowRID
		// Row X locks are retained until commit; S locks are dropped once
		// the row is surfaced under READ_COMMITTED.
		if sLocked && e.ctx.Txn.Isolation() == concurrency.ReadCommitted {
			e.unlockRowForce(rowRID)
		}
		return true, nil
	}
}
