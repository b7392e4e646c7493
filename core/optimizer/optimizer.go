// Package optimizer applies rule-based plan rewrites bottom-up,
// producing a new plan tree: nested-loop joins over equi-predicates
// become hash joins, and a limit over a sort becomes a top-N.
package optimizer

import (
	"github.com/sushant-115/sukunadb/core/execution"
)

// Optimize rewrites the plan tree bottom-up with every rule.
func Optimize(plan execution.PlanNode) execution.PlanNode {
	plan = rewriteChildren(plan)
	plan = nljAsHashJoin(plan)
	plan = sortLimitAsTopN(plan)
	return plan
}

// rewriteChildren rebuilds the node with optimized children.
func rewriteChildren(plan execution.PlanNode) execution.PlanNode {
	switch p := plan.(type) {
	case *execution.InsertPlan:
		cp := *p
		cp.Child = Optimize(p.Child)
		return &cp
	case *execution.DeletePlan:
		cp := *p
		cp.Child = Optimize(p.Child)
		return &cp
	case *execution.UpdatePlan:
		cp := *p
		cp.Child = Optimize(p.Child)
		return &cp
	case *execution.NestedLoopJoinPlan:
		cp := *p
		cp.Left = Optimize(p.Left)
		cp.Right = Optimize(p.Right)
		return &cp
	case *execution.HashJoinPlan:
		cp := *p
		cp.Left = Optimize(p.Left)
		cp.Right = Optimize(p.Right)
		return &cp
	case *execution.AggregationPlan:
		cp := *p
		cp.Child = Optimize(p.Child)
		return &cp
	case *execution.SortPlan:
		cp := *p
		cp.Child = Optimize(p.Child)
		return &cp
	case *execution.LimitPlan:
		cp := *p
		cp.Child = Optimize(p.Child)
		return &cp
	case *execution.TopNPlan:
		cp := *p
		cp.Child = Optimize(p.Child)
		return &cp
	default:
		return plan
	}
}

// equiPair extracts (leftKey, rightKey) from an equality between column
// references on distinct join sides, normalising orientation.
func equiPair(expr execution.Expression) (left, right execution.Expression, ok bool) {
	cmp, isCmp := expr.(*execution.Comparison)
	if !isCmp || cmp.Op != execution.CmpEqual {
		return nil, nil, false
	}
	lc, lok := cmp.Left.(*execution.ColumnValue)
	rc, rok := cmp.Right.(*execution.ColumnValue)
	if !lok || !rok || lc.TupleIdx == rc.TupleIdx {
		return nil, nil, false
	}
	if lc.TupleIdx == execution.SideLeft {
		return execution.NewColumnValue(lc.ColIdx, lc.ColType), execution.NewColumnValue(rc.ColIdx, rc.ColType), true
	}
	return execution.NewColumnValue(rc.ColIdx, rc.ColType), execution.NewColumnValue(lc.ColIdx, lc.ColType), true
}

// nljAsHashJoin rewrites a nested-loop join whose predicate is one
// equi-condition, or a top-level conjunction of two, into a hash join
// preserving join type and schema.
func nljAsHashJoin(plan execution.PlanNode) execution.PlanNode {
	nlj, ok := plan.(*execution.NestedLoopJoinPlan)
	if !ok {
		return plan
	}

	var leftKeys, rightKeys []execution.Expression
	if l, r, ok := equiPair(nlj.Predicate); ok {
		leftKeys = append(leftKeys, l)
		rightKeys = append(rightKeys, r)
	} else if logic, isLogic := nlj.Predicate.(*execution.Logic); isLogic && logic.Op == execution.LogicAnd {
		l1, r1, ok1 := equiPair(logic.Left)
		l2, r2, ok2 := equiPair(logic.Right)
		if !ok1 || !ok2 {
			return plan
		}
		leftKeys = append(leftKeys, l1, l2)
		rightKeys = append(rightKeys, r1, r2)
	} else {
		return plan
	}

	return &execution.HashJoinPlan{
		Left:      nlj.Left,
		Right:     nlj.Right,
		LeftKeys:  leftKeys,
		RightKeys: rightKeys,
		JoinKind:  nlj.JoinKind,
		OutSchema: nlj.OutSchema,
	}
}

// sortLimitAsTopN rewrites limit(sort(x)) into topn(x) carrying the
// sort's order-by list and the limit's cap.
func sortLimitAsTopN(plan execution.PlanNode) execution.PlanNode {
	limit, ok := plan.(*execution.LimitPlan)
	if !ok {
		return plan
	}
	sortPlan, ok := limit.Child.(*execution.SortPlan)
	if !ok {
		return plan
	}
	return &execution.TopNPlan{
		Child:    sortPlan.Child,
		OrderBys: sortPlan.OrderBys,
		N:        limit.N,
	}
}
