package execution

import (
	"sort"

	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// compareTuples orders two tuples by the order-by list, honouring
// per-column direction. Returns <0 when a sorts before b.
func compareTuples(a, b *catalog.Tuple, schema *catalog.Schema, orderBys []OrderBy) int {
	for _, ob := range orderBys {
		av := ob.Expr.Evaluate(a, schema)
		bv := ob.Expr.Evaluate(b, schema)
		if av.CompareEquals(bv) == catalog.CmpTrue || (av.IsNull() && bv.IsNull()) {
			continue
		}
		less := av.CompareLessThan(bv) == catalog.CmpTrue
		// NULLs sort first in ascending order.
		if av.IsNull() != bv.IsNull() {
			less = av.IsNull()
		}
		if ob.Type == OrderDesc {
			less = !less
		}
		if less {
			return -1
		}
		return 1
	}
	return 0
}

// SortExecutor materialises the child's rows, stable-sorts them by the
// order-by list and streams the result.
type SortExecutor struct {
	ctx   *ExecutorContext
	plan  *SortPlan
	child Executor
	rows  []*catalog.Tuple
	pos   int
}

// NewSortExecutor builds a sort.
func NewSortExecutor(ctx *ExecutorContext, plan *SortPlan, child Executor) *SortExecutor {
	return &SortExecutor{ctx: ctx, plan: plan, child: child}
}

// Init drains and sorts.
func (e *SortExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	e.rows = nil
	e.pos = 0
	for {
		var row catalog.Tuple
		var rid page.RID
		ok, err := e.child.Next(&row, &rid)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		copied := row
		e.rows = append(e.rows, &copied)
	}
	schema := e.plan.Child.Schema()
	sort.SliceStable(e.rows, func(i, j int) bool {
		return compareTuples(e.rows[i], e.rows[j], schema, e.plan.OrderBys) < 0
	})
	return nil
}

// Next streams the sorted rows.
func (e *SortExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	if e.pos >= len(e.rows) {
		return false, nil
	}
	*tuple = *e.rows[e.pos]
	e.pos++
	*rid = page.RID{PageID: page.InvalidPageID}
	return true, nil
}
