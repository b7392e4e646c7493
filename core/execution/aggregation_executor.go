package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// AggregationExecutor groups its child's rows by the group-by
// expressions and folds each aggregate with a combine step. With no
// group-bys and no input it emits a single row of initial values
// (count 0, the rest NULL).
type AggregationExecutor struct {
	ctx   *ExecutorContext
	plan  *AggregationPlan
	child Executor

	groups map[string]*aggState
	order  []string
	pos    int
}

type aggState struct {
	groupVals []catalog.Value
	aggVals   []catalog.Value
}

// NewAggregationExecutor builds an aggregation.
func NewAggregationExecutor(ctx *ExecutorContext, plan *AggregationPlan, child Executor) *AggregationExecutor {
	return &AggregationExecutor{ctx: ctx, plan: plan, child: child}
}

// initialAggValues seeds the fold: counts start at 0, the others NULL.
func (e *AggregationExecutor) initialAggValues() []catalog.Value {
	vals := make([]catalog.Value, len(e.plan.AggTypes))
	for i, at := range e.plan.AggTypes {
		switch at {
		case AggCountStar, AggCount:
			vals[i] = catalog.NewIntegerValue(0)
		default:
			vals[i] = catalog.NewNullValue(catalog.TypeInteger)
		}
	}
	return vals
}

// combine folds one input row into the group's running aggregates.
func (e *AggregationExecutor) combine(state *aggState, row *catalog.Tuple) {
	schema := e.plan.Child.Schema()
	for i, at := range e.plan.AggTypes {
		var input catalog.Value
		if at != AggCountStar {
			input = e.plan.Aggs[i].Evaluate(row, schema)
		}
		cur := state.aggVals[i]
		switch at {
		case AggCountStar:
			state.aggVals[i] = catalog.NewIntegerValue(cur.AsInt() + 1)
		case AggCount:
			if !input.IsNull() {
				state.aggVals[i] = catalog.NewIntegerValue(cur.AsInt() + 1)
			}
		case AggSum:
			if input.IsNull() {
				break
			}
			if cur.IsNull() {
				state.aggVals[i] = input
			} else {
				state.aggVals[i] = catalog.NewIntegerValue(cur.AsInt() + input.AsInt())
			}
		case AggMin:
			if input.IsNull() {
				break
			}
			if cur.IsNull() || input.CompareLessThan(cur) == catalog.CmpTrue {
				state.aggVals[i] = input
			}
		case AggMax:
			if input.IsNull() {
				break
			}
			if cur.IsNull() || input.CompareGreaterThan(cur) == catalog.CmpTrue {
				state.aggVals[i] = input
			}
		}
	}
}

// Init drains the child and builds the group hash table.
func (e *AggregationExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	e.groups = make(map[string]*aggState)
	e.order = nil
	e.pos = 0
	schema := e.plan.Child.Schema()

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
		groupVals := make([]catalog.Value, len(e.plan.GroupBys))
		for i, g := range e.plan.GroupBys {
			groupVals[i] = g.Evaluate(&row, schema)
		}
		key := string(catalog.NewTuple(groupVals).Serialize())
		state, ok := e.groups[key]
		if !ok {
			state = &aggState{groupVals: groupVals, aggVals: e.initialAggValues()}
			e.groups[key] = state
			e.order = append(e.order, key)
		}
		e.combine(state, &row)
	}

	// A global aggregation over empty input still yields one row.
	if len(e.groups) == 0 && len(e.plan.GroupBys) == 0 {
		key := ""
		e.groups[key] = &aggState{aggVals: e.initialAggValues()}
		e.order = append(e.order, key)
	}
	return nil
}

// Next emits one row per group: group-by values then aggregates.
func (e *AggregationExecutor) Next(tuple *catalog.Tuple, rid *page.RID) (bool, error) {
	if e.pos >= len(e.order) {
		return false, nil
	}
	state := e.groups[e.order[e.pos]]
	e.pos++
	vals := make([]catalog.Value, 0, len(state.groupVals)+len(state.aggVals))
	vals = append(vals, state.groupVals...)
	vals = append(vals, state.aggVals...)
	*tuple = *catalog.NewTuple(vals)
	*rid = page.RID{PageID: page.InvalidPageID}
	return true, nil
}
