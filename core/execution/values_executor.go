package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// ValuesExecutor emits one tuple per literal row. It is the usual child
// of an insert.
type ValuesExecutor struct {
	ctx  *ExecutorContext
	plan *ValuesPlan
	pos  int
}

// NewValuesExecutor builds a values source.
func NewValuesExecutor(ctx *ExecutorContext, plan *ValuesPlan) *ValuesExecutor {
	return &ValuesExecutor{ctx: ctx, plan: plan}
}

// Init rewinds to the first row.
func (e *ValuesExecutor) Init() error {
	e.pos = 0
	return nil
}

// Next materialises the next literal row.
func (e *ValuesExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	if e.pos >= len(e.plan.Rows) {
		return false, nil
	}
	exprs := e.plan.Rows[e.pos]
	e.pos++
	vals := make([]catalog.Value, len(exprs))
	for i, expr := range exprs {
		vals[i] = expr.Evaluate(nil, e.plan.OutSchema)
	}
	*tuple = *catalog.NewTuple(vals)
	*rid = page.RID{PageID: page.InvalidPageID}
	return true, nil
}
