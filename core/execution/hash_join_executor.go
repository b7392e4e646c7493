package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// HashJoinExecutor builds a hash table over the right child on Init,
// keyed by the right key expressions, then probes it with each left
// row. INNER and LEFT are supported; LEFT pads misses with nulls. Rows
// whose key contains NULL never match.
type HashJoinExecutor struct {
	ctx         *ExecutorContext
	plan        *HashJoinPlan
	left, right Executor

	table map[string][]*catalog.Tuple

	leftTuple *catalog.Tuple
	matches   []*catalog.Tuple
	matchPos  int
	padLeft   bool
}

// NewHashJoinExecutor builds a hash join.
func NewHashJoinExecutor(ctx *ExecutorContext, plan *HashJoinPlan, left, right Executor) *HashJoinExecutor {
	return &HashJoinExecutor{ctx: ctx, plan: plan, left: left, right: right}
}

// hashKey serialises the key values; the bool is false when any key
// value is NULL (such rows never join).
func hashKey(tuple *catalog.Tuple, schema *catalog.Schema, exprs []Expression) (string, bool) {
	vals := make([]catalog.Value, len(exprs))
	for i, expr := range exprs {
		v := expr.Evaluate(tuple, schema)
		if v.IsNull() {
			return "", false
		}
		vals[i] = v
	}
	return string(catalog.NewTuple(vals).Serialize()), true
}

// Init drains the right child into the hash table and primes the left.
func (e *HashJoinExecutor) Init() error {
	if err := e.right.Init(); err != nil {
		return err
	}
	e.table = make(map[string][]*catalog.Tuple)
	for {
		var rt catalog.Tuple
		var rrid page.RID
		ok, err := e.right.Next(&rt, &rrid)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key, hashable := hashKey(&rt, e.plan.Right.Schema(), e.plan.RightKeys)
		if !hashable {
			continue
		}
		copied := rt
		e.table[key] = append(e.table[key], &copied)
	}

	e.leftTuple = nil
	e.matches = nil
	e.matchPos = 0
	e.padLeft = false
	return e.left.Init()
}

// Next emits the next probe result.
func (e *HashJoinExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	for {
		if e.matchPos < len(e.matches) {
			*tuple = *joinedTuple(e.leftTuple, e.matches[e.matchPos])
			*rid = page.RID{PageID: page.InvalidPageID}
			e.matchPos++
			return true, nil
		}
		if e.padLeft {
			e.padLeft = false
			*tuple = *nullPadded(e.leftTuple, e.plan.Right.Schema())
			*rid = page.RID{PageID: page.InvalidPageID}
			return true, nil
		}

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
		e.matches = nil
		e.matchPos = 0

		key, hashable := hashKey(e.leftTuple, e.plan.Left.Schema(), e.plan.LeftKeys)
		if hashable {
			e.matches = e.table[key]
		}
		if len(e.matches) == 0 && e.plan.JoinKind == LeftJoin {
			e.padLeft = true
		}
	}
}
