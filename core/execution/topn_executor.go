package execution

import (
	"container/heap"

	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// topNHeap is a bounded max-heap under the sort comparator: the root is
// the largest of the kept rows, so it is the one displaced when a
// smaller row arrives.
type topNHeap struct {
	rows     []*catalog.Tuple
	schema   *catalog.Schema
	orderBys []OrderBy
}

func (h *topNHeap) Len() int { return len(h.rows) }
func (h *topNHeap) Less(i, j int) bool {
	return compareTuples(h.rows[i], h.rows[j], h.schema, h.orderBys) > 0
}
func (h *topNHeap) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *topNHeap) Push(x any)    { h.rows = append(h.rows, x.(*catalog.Tuple)) }
func (h *topNHeap) Pop() any {
	n := len(h.rows)
	row := h.rows[n-1]
	h.rows = h.rows[:n-1]
	return row
}

// TopNExecutor keeps the N smallest rows under the sort order while
// draining its child, then streams them ascending.
type TopNExecutor struct {
	ctx   *ExecutorContext
	plan  *TopNPlan
	child Executor
	rows  []*catalog.Tuple
	pos   int
}

// NewTopNExecutor builds a top-N.
func NewTopNExecutor(ctx *ExecutorContext, plan *TopNPlan, child Executor) *TopNExecutor {
	return &TopNExecutor{ctx: ctx, plan: plan, child: child}
}

// Init drains the child through the bounded heap.
func (e *TopNExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	h := &topNHeap{schema: e.plan.Child.Schema(), orderBys: e.plan.OrderBys}
	heap.Init(h)
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
		if h.Len() < e.plan.N {
			heap.Push(h, &copied)
			continue
		}
		if e.plan.N > 0 && compareTuples(&copied, h.rows[0], h.schema, h.orderBys) < 0 {
			h.rows[0] = &copied
			heap.Fix(h, 0)
		}
	}

	// Drain the heap largest-first, then reverse into output order.
	e.rows = make([]*catalog.Tuple, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		e.rows[i] = heap.Pop(h).(*catalog.Tuple)
	}
	e.pos = 0
	return nil
}

// Next streams the retained rows in sort order.
func (e *TopNExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	if e.pos >= len(e.rows) {
		return false, nil
	}
	*tuple = *e.rows[e.pos]
	e.pos++
	*rid = page.RID{PageID: page.InvalidPageID}
	return true, nil
}
