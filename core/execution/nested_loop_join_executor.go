package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// NestedLoopJoinExecutor is outer-driven: for every outer (left) row it
// re-initialises and drains the inner (right) child. INNER and LEFT are
// supported; LEFT pads unmatched outer rows with nulls.
type NestedLoopJoinExecutor struct {
	ctx         *ExecutorContext
	plan        *NestedLoopJoinPlan
	left, right Executor

	leftTuple   *catalog.Tuple
	leftValid   bool
	leftMatched bool
}

// NewNestedLoopJoinExecutor builds a nested-loop join.
func NewNestedLoopJoinExecutor(ctx *ExecutorContext, plan *NestedLoopJoinPlan, left, right Executor) *NestedLoopJoinExecutor {
	return &NestedLoopJoinExecutor{ctx: ctx, plan: plan, left: left, right: right}
}

// Init primes both children.
func (e *NestedLoopJoinExecutor) Init() error {
	if err := e.left.Init(); err != nil {
		return err
	}
	if err := e.right.Init(); err != nil {
		return err
	}
	e.leftValid = false
	return nil
}

// joinedTuple concatenates left and right values.
func joinedTuple(left, right *catalog.Tuple) *catalog.Tuple {
	vals := make([]catalog.Value, 0, len(left.Values())+len(right.Values()))
	vals = append(vals, left.Values()...)
	vals = append(vals, right.Values()...)
	return catalog.NewTuple(vals)
}

// nullPadded concatenates left values with nulls for the right schema.
func nullPadded(left *catalog.Tuple, rightSchema *catalog.Schema) *catalog.Tuple {
	vals := make([]catalog.Value, 0, len(left.Values())+rightSchema.ColumnCount())
	vals = append(vals, left.Values()...)
	for _, col := range rightSchema.Columns {
		vals = append(vals, catalog.NewNullValue(col.Type))
	}
	return catalog.NewTuple(vals)
}

// Next emits the next joined row.
func (e *NestedLoopJoinExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	for {
		if !e.leftValid {
			var lt catalog.Tuple
			var lrid page.RID
			ok, err := e.left.Next(&lt, &lrid)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
			copied := lt
			e.leftTuple = &copied
			e.leftValid = true
			e.leftMatched = false
			if err := e.right.Init(); err != nil {
				return false, err
			}
		}

		var rt catalog.Tuple
		var rrid page.RID
		ok, err := e.right.Next(&rt, &rrid)
		if err != nil {
			return false, err
		}
		if !ok {
			// Inner exhausted: maybe pad, then advance the outer side.
			needPad := e.plan.JoinKind == LeftJoin && !e.leftMatched
			padded := e.leftTuple
			e.leftValid = false
			if needPad {
				*tuple = *nullPadded(padded, e.plan.Right.Schema())
				*rid = page.RID{PageID: page.InvalidPageID}
				return true, nil
			}
			continue
		}

		if e.plan.Predicate == nil ||
			truthy(e.plan.Predicate.EvaluateJoin(e.leftTuple, e.plan.Left.Schema(), &rt, e.plan.Right.Schema())) {
			e.leftMatched = true
			*tuple = *joinedTuple(e.leftTuple, &rt)
			*rid = page.RID{PageID: page.InvalidPageID}
			return true, nil
		}
	}
}
