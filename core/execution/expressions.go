package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
)

// Expression is evaluated against one tuple (or a pair, for join
// predicates) and yields a value under three-valued logic.
type Expression interface {
	Evaluate(tuple *catalog.Tuple, schema *catalog.Schema) catalog.Value
	EvaluateJoin(left *catalog.Tuple, leftSchema *catalog.Schema,
		right *catalog.Tuple, rightSchema *catalog.Schema) catalog.Value
}

// Tuple side markers for ColumnValue in join predicates.
const (
	SideLeft  = 0
	SideRight = 1
)

// ColumnValue references one column of the input tuple (or of the left
// or right join input).
type ColumnValue struct {
	TupleIdx int // SideLeft or SideRight; ignored outside joins
	ColIdx   int
	ColType  catalog.TypeID
}

// NewColumnValue references column colIdx of a single input.
func NewColumnValue(colIdx int, colType catalog.TypeID) *ColumnValue {
	return &ColumnValue{TupleIdx: SideLeft, ColIdx: colIdx, ColType: colType}
}

// NewJoinColumnValue references column colIdx of the given join side.
func NewJoinColumnValue(side, colIdx int, colType catalog.TypeID) *ColumnValue {
	return &ColumnValue{TupleIdx: side, ColIdx: colIdx, ColType: colType}
}

func (c *ColumnValue) Evaluate(tuple *catalog.Tuple, _ *catalog.Schema) catalog.Value {
	return tuple.Value(c.ColIdx)
}

func (c *ColumnValue) EvaluateJoin(left *catalog.Tuple, _ *catalog.Schema,
	right *catalog.Tuple, _ *catalog.Schema) catalog.Value {
	if c.TupleIdx == SideLeft {
		return left.Value(c.ColIdx)
	}
	return right.Value(c.ColIdx)
}

// Constant is a literal value.
type Constant struct {
	Val catalog.Value
}

// NewConstant wraps a literal.
func NewConstant(v catalog.Value) *Constant { return &Constant{Val: v} }

func (c *Constant) Evaluate(*catalog.Tuple, *catalog.Schema) catalog.Value { return c.Val }

func (c *Constant) EvaluateJoin(*catalog.Tuple, *catalog.Schema, *catalog.Tuple, *catalog.Schema) catalog.Value {
	return c.Val
}

// CompareOp enumerates comparison operators.
type CompareOp int

const (
	CmpEqual CompareOp = iota
	CmpNotEqual
	CmpLessThan
	CmpLessThanOrEqual
	CmpGreaterThan
	CmpGreaterThanOrEqual
)

// Comparison applies a comparison operator; NULL operands yield NULL.
type Comparison struct {
	Op          CompareOp
	Left, Right Expression
}

// NewComparison builds a comparison expression.
func NewComparison(op CompareOp, left, right Expression) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

func cmpToValue(c catalog.CmpBool) catalog.Value {
	if c == catalog.CmpNull {
		return catalog.NewNullValue(catalog.TypeBoolean)
	}
	return catalog.NewBooleanValue(c == catalog.CmpTrue)
}

func (e *Comparison) compare(l, r catalog.Value) catalog.Value {
	switch e.Op {
	case CmpEqual:
		return cmpToValue(l.CompareEquals(r))
	case CmpNotEqual:
		res := l.CompareEquals(r)
		if res == catalog.CmpNull {
			return catalog.NewNullValue(catalog.TypeBoolean)
		}
		return catalog.NewBooleanValue(res == catalog.CmpFalse)
	case CmpLessThan:
		return cmpToValue(l.CompareLessThan(r))
	case CmpGreaterThan:
		return cmpToValue(l.CompareGreaterThan(r))
	case CmpLessThanOrEqual:
		gt := l.CompareGreaterThan(r)
		if gt == catalog.CmpNull {
			return catalog.NewNullValue(catalog.TypeBoolean)
		}
		return catalog.NewBooleanValue(gt == catalog.CmpFalse)
	default: // CmpGreaterThanOrEqual
		lt := l.CompareLessThan(r)
		if lt == catalog.CmpNull {
			return catalog.NewNullValue(catalog.TypeBoolean)
		}
		return catalog.NewBooleanValue(lt == catalog.CmpFalse)
	}
}

func (e *Comparison) Evaluate(tuple *catalog.Tuple, schema *catalog.Schema) catalog.Value {
	return e.compare(e.Left.Evaluate(tuple, schema), e.Right.Evaluate(tuple, schema))
}

func (e *Comparison) EvaluateJoin(lt *catalog.Tuple, ls *catalog.Schema,
	rt *catalog.Tuple, rs *catalog.Schema) catalog.Value {
	return e.compare(e.Left.EvaluateJoin(lt, ls, rt, rs), e.Right.EvaluateJoin(lt, ls, rt, rs))
}

// LogicOp enumerates boolean connectives.
type LogicOp int

const (
	LogicAnd LogicOp = iota
	LogicOr
)

// Logic combines two boolean expressions under three-valued logic.
type Logic struct {
	Op          LogicOp
	Left, Right Expression
}

// NewLogic builds a logic expression.
func NewLogic(op LogicOp, left, right Expression) *Logic {
	return &Logic{Op: op, Left: left, Right: right}
}

func (e *Logic) combine(l, r catalog.Value) catalog.Value {
	lt := !l.IsNull() && l.AsBool()
	rt := !r.IsNull() && r.AsBool()
	lf := !l.IsNull() && !l.AsBool()
	rf := !r.IsNull() && !r.AsBool()
	if e.Op == LogicAnd {
		if lf || rf {
			return catalog.NewBooleanValue(false)
		}
		if lt && rt {
			return catalog.NewBooleanValue(true)
		}
		return catalog.NewNullValue(catalog.TypeBoolean)
	}
	if lt || rt {
		return catalog.NewBooleanValue(true)
	}
	if lf && rf {
		return catalog.NewBooleanValue(false)
	}
	return catalog.NewNullValue(catalog.TypeBoolean)
}

func (e *Logic) Evaluate(tuple *catalog.Tuple, schema *catalog.Schema) catalog.Value {
	return e.combine(e.Left.Evaluate(tuple, schema), e.Right.Evaluate(tuple, schema))
}

func (e *Logic) EvaluateJoin(lt *catalog.Tuple, ls *catalog.Schema,
	rt *catalog.Tuple, rs *catalog.Schema) catalog.Value {
	return e.combine(e.Left.EvaluateJoin(lt, ls, rt, rs), e.Right.EvaluateJoin(lt, ls, rt, rs))
}

// truthy reports whether a predicate result passes: only a non-null
// TRUE does.
func truthy(v catalog.Value) bool {
	return !v.IsNull() && v.Type() == catalog.TypeBoolean && v.AsBool()
}
