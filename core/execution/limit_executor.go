package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// LimitExecutor passes through at most N child rows.
type LimitExecutor struct {
	ctx     *ExecutorContext
	plan    *LimitPlan
	child   Executor
	emitted int
}

// NewLimitExecutor builds a limit.
func NewLimitExecutor(ctx *ExecutorContext, plan *LimitPlan, child Executor) *LimitExecutor {
	return &LimitExecutor{ctx: ctx, plan: plan, child: child}
}

// Init resets the counter and primes the child.
func (e *LimitExecutor) Init() error {
	e.emitted = 0
	return e.child.Init()
}

// Next forwards child rows until the cap is reached.
func (e *LimitExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	if e.emitted >= e.plan.N {
		return false, nil
	}
	ok, err := e.child.Next(tuple, rid)
	if err != nil || !ok {
		return false, err
	}
	e.emitted++
	return true, nil
}
