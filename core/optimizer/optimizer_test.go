package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/execution"
)

func scanPlan(name string) *execution.SeqScanPlan {
	return &execution.SeqScanPlan{
		TableName: name,
		OutSchema: catalog.NewSchema(
			catalog.Column{Name: "a", Type: catalog.TypeInteger},
			catalog.Column{Name: "b", Type: catalog.TypeInteger},
		),
	}
}

func equi(leftCol, rightCol int) execution.Expression {
	return execution.NewComparison(execution.CmpEqual,
		execution.NewJoinColumnValue(execution.SideLeft, leftCol, catalog.TypeInteger),
		execution.NewJoinColumnValue(execution.SideRight, rightCol, catalog.TypeInteger))
}

func TestOptimizer_NLJToHashJoin(t *testing.T) {
	left, right := scanPlan("l"), scanPlan("r")
	nlj := &execution.NestedLoopJoinPlan{
		Left:      left,
		Right:     right,
		Predicate: equi(0, 1),
		JoinKind:  execution.LeftJoin,
		OutSchema: catalog.JoinSchemas(left.OutSchema, right.OutSchema),
	}

	got := Optimize(nlj)
	hj, ok := got.(*execution.HashJoinPlan)
	require.True(t, ok, "equi NLJ must become a hash join")
	require.Equal(t, execution.LeftJoin, hj.JoinKind, "join type is preserved")
	require.Equal(t, nlj.OutSchema, hj.OutSchema, "schema is preserved")
	require.Len(t, hj.LeftKeys, 1)
	require.Len(t, hj.RightKeys, 1)
	lk := hj.LeftKeys[0].(*execution.ColumnValue)
	rk := hj.RightKeys[0].(*execution.ColumnValue)
	require.Equal(t, 0, lk.ColIdx)
	require.Equal(t, 1, rk.ColIdx)
}

func TestOptimizer_NLJFlippedEquality(t *testing.T) {
	// right.col = left.col must normalise into (left_key, right_key).
	pred := execution.NewComparison(execution.CmpEqual,
		execution.NewJoinColumnValue(execution.SideRight, 1, catalog.TypeInteger),
		execution.NewJoinColumnValue(execution.SideLeft, 0, catalog.TypeInteger))
	left, right := scanPlan("l"), scanPlan("r")
	nlj := &execution.NestedLoopJoinPlan{
		Left: left, Right: right, Predicate: pred,
		JoinKind:  execution.InnerJoin,
		OutSchema: catalog.JoinSchemas(left.OutSchema, right.OutSchema),
	}

	hj, ok := Optimize(nlj).(*execution.HashJoinPlan)
	require.True(t, ok)
	require.Equal(t, 0, hj.LeftKeys[0].(*execution.ColumnValue).ColIdx)
	require.Equal(t, 1, hj.RightKeys[0].(*execution.ColumnValue).ColIdx)
}

func TestOptimizer_NLJConjunctionOfTwoEqualities(t *testing.T) {
	left, right := scanPlan("l"), scanPlan("r")
	pred := execution.NewLogic(execution.LogicAnd, equi(0, 0), equi(1, 1))
	nlj := &execution.NestedLoopJoinPlan{
		Left: left, Right: right, Predicate: pred,
		JoinKind:  execution.InnerJoin,
		OutSchema: catalog.JoinSchemas(left.OutSchema, right.OutSchema),
	}

	hj, ok := Optimize(nlj).(*execution.HashJoinPlan)
	require.True(t, ok)
	require.Len(t, hj.LeftKeys, 2)
	require.Len(t, hj.RightKeys, 2)
}

func TestOptimizer_NLJNonEquiUntouched(t *testing.T) {
	left, right := scanPlan("l"), scanPlan("r")
	pred := execution.NewComparison(execution.CmpLessThan,
		execution.NewJoinColumnValue(execution.SideLeft, 0, catalog.TypeInteger),
		execution.NewJoinColumnValue(execution.SideRight, 0, catalog.TypeInteger))
	nlj := &execution.NestedLoopJoinPlan{
		Left: left, Right: right, Predicate: pred,
		JoinKind:  execution.InnerJoin,
		OutSchema: catalog.JoinSchemas(left.OutSchema, right.OutSchema),
	}

	_, stillNLJ := Optimize(nlj).(*execution.NestedLoopJoinPlan)
	require.True(t, stillNLJ, "non-equi predicates stay nested-loop")

	// Same-side "equality" is not a join condition either.
	sameSide := execution.NewComparison(execution.CmpEqual,
		execution.NewJoinColumnValue(execution.SideLeft, 0, catalog.TypeInteger),
		execution.NewJoinColumnValue(execution.SideLeft, 1, catalog.TypeInteger))
	nlj2 := &execution.NestedLoopJoinPlan{
		Left: left, Right: right, Predicate: sameSide,
		JoinKind:  execution.InnerJoin,
		OutSchema: catalog.JoinSchemas(left.OutSchema, right.OutSchema),
	}
	_, stillNLJ = Optimize(nlj2).(*execution.NestedLoopJoinPlan)
	require.True(t, stillNLJ)
}

func TestOptimizer_SortLimitToTopN(t *testing.T) {
	scan := scanPlan("t")
	orderBys := []execution.OrderBy{
		{Type: execution.OrderDesc, Expr: execution.NewColumnValue(0, catalog.TypeInteger)},
	}
	plan := &execution.LimitPlan{
		Child: &execution.SortPlan{Child: scan, OrderBys: orderBys},
		N:     10,
	}

	topn, ok := Optimize(plan).(*execution.TopNPlan)
	require.True(t, ok, "limit over sort must become top-n")
	require.Equal(t, 10, topn.N)
	require.Equal(t, orderBys, topn.OrderBys)
	require.Same(t, execution.PlanNode(scan), topn.Child, "sort's child is adopted directly")

	// A limit over anything else stays a limit.
	bare := &execution.LimitPlan{Child: scan, N: 3}
	_, stillLimit := Optimize(bare).(*execution.LimitPlan)
	require.True(t, stillLimit)
}

func TestOptimizer_RewritesNestedChildren(t *testing.T) {
	// An equi NLJ under a sort+limit is rewritten, and so is the sort+limit.
	left, right := scanPlan("l"), scanPlan("r")
	inner := &execution.LimitPlan{
		Child: &execution.SortPlan{
			Child: &execution.NestedLoopJoinPlan{
				Left: left, Right: right, Predicate: equi(0, 0),
				JoinKind:  execution.InnerJoin,
				OutSchema: catalog.JoinSchemas(left.OutSchema, right.OutSchema),
			},
			OrderBys: []execution.OrderBy{
				{Type: execution.OrderAsc, Expr: execution.NewColumnValue(0, catalog.TypeInteger)},
			},
		},
		N: 5,
	}

	got := Optimize(inner)
	topn, ok := got.(*execution.TopNPlan)
	require.True(t, ok)
	_, ok = topn.Child.(*execution.HashJoinPlan)
	require.True(t, ok, "rules compose bottom-up")
}
