package execution

import (
	"github.com/sushant-115/sukunadb/core/catalog"
)

// PlanNode is a node of the physical plan tree. Schemas are statically
// known; Children exposes the tree shape to the optimizer.
type PlanNode interface {
	Schema() *catalog.Schema
	Children() []PlanNode
}

// JoinType selects join semantics.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// countSchema is the single-column output of Insert/Update/Delete.
func countSchema() *catalog.Schema {
	return catalog.NewSchema(catalog.Column{Name: "count", Type: catalog.TypeInteger})
}

// SeqScanPlan scans a table heap, optionally filtering.
type SeqScanPlan struct {
	TableOID  uint32
	TableName string
	Predicate Expression // may be nil
	OutSchema *catalog.Schema
}

func (p *SeqScanPlan) Schema() *catalog.Schema { return p.OutSchema }
func (p *SeqScanPlan) Children() []PlanNode    { return nil }

// IndexScanPlan walks an index in key order, fetching heap tuples.
type IndexScanPlan struct {
	IndexOID  uint32
	TableOID  uint32
	OutSchema *catalog.Schema
}

func (p *IndexScanPlan) Schema() *catalog.Schema { return p.OutSchema }
func (p *IndexScanPlan) Children() []PlanNode    { return nil }

// ValuesPlan emits literal rows; it feeds Insert.
type ValuesPlan struct {
	Rows      [][]Expression
	OutSchema *catalog.Schema
}

func (p *ValuesPlan) Schema() *catalog.Schema { return p.OutSchema }
func (p *ValuesPlan) Children() []PlanNode    { return nil }

// InsertPlan inserts its child's rows into a table; emits one count row.
type InsertPlan struct {
	TableOID uint32
	Child    PlanNode
}

func (p *InsertPlan) Schema() *catalog.Schema { return countSchema() }
func (p *InsertPlan) Children() []PlanNode    { return []PlanNode{p.Child} }

// DeletePlan marks its child's rows deleted; emits one count row.
type DeletePlan struct {
	TableOID uint32
	Child    PlanNode
}

func (p *DeletePlan) Schema() *catalog.Schema { return countSchema() }
func (p *DeletePlan) Children() []PlanNode    { return []PlanNode{p.Child} }

// UpdatePlan rewrites its child's rows as delete+insert; emits one count
// row. Target expressions compute the new values from the old tuple.
type UpdatePlan struct {
	TableOID    uint32
	TargetExprs []Expression
	Child       PlanNode
}

func (p *UpdatePlan) Schema() *catalog.Schema { return countSchema() }
func (p *UpdatePlan) Children() []PlanNode    { return []PlanNode{p.Child} }

// NestedLoopJoinPlan joins by re-scanning the inner side per outer row.
type NestedLoopJoinPlan struct {
	Left, Right PlanNode
	Predicate   Expression
	JoinKind    JoinType
	OutSchema   *catalog.Schema
}

func (p *NestedLoopJoinPlan) Schema() *catalog.Schema { return p.OutSchema }
func (p *NestedLoopJoinPlan) Children() []PlanNode    { return []PlanNode{p.Left, p.Right} }

// HashJoinPlan joins by hashing the right side on its key expressions.
type HashJoinPlan struct {
	Left, Right PlanNode
	LeftKeys    []Expression
	RightKeys   []Expression
	JoinKind    JoinType
	OutSchema   *catalog.Schema
}

func (p *HashJoinPlan) Schema() *catalog.Schema { return p.OutSchema }
func (p *HashJoinPlan) Children() []PlanNode    { return []PlanNode{p.Left, p.Right} }

// AggregationType enumerates the supported aggregates.
type AggregationType int

const (
	AggCountStar AggregationType = iota
	AggCount
	AggSum
	AggMin
	AggMax
)

// AggregationPlan groups its child's rows and combines aggregates per
// group. Output columns are the group-bys followed by the aggregates.
type AggregationPlan struct {
	Child     PlanNode
	GroupBys  []Expression
	Aggs      []Expression
	AggTypes  []AggregationType
	OutSchema *catalog.Schema
}

func (p *AggregationPlan) Schema() *catalog.Schema { return p.OutSchema }
func (p *AggregationPlan) Children() []PlanNode    { return []PlanNode{p.Child} }

// OrderByType selects sort direction.
type OrderByType int

const (
	OrderAsc OrderByType = iota
	OrderDesc
)

// OrderBy pairs a direction with a sort key expression.
type OrderBy struct {
	Type OrderByType
	Expr Expression
}

// SortPlan materialises and stable-sorts its child.
type SortPlan struct {
	Child    PlanNode
	OrderBys []OrderBy
}

func (p *SortPlan) Schema() *catalog.Schema { return p.Child.Schema() }
func (p *SortPlan) Children() []PlanNode    { return []PlanNode{p.Child} }

// LimitPlan caps its child's output at N rows.
type LimitPlan struct {
	Child PlanNode
	N     int
}

func (p *LimitPlan) Schema() *catalog.Schema { return p.Child.Schema() }
func (p *LimitPlan) Children() []PlanNode    { return []PlanNode{p.Child} }

// TopNPlan produces the N smallest rows under the sort order without a
// full sort.
type TopNPlan struct {
	Child    PlanNode
	OrderBys []OrderBy
	N        int
}

func (p *TopNPlan) Schema() *catalog.Schema { return p.Child.Schema() }
func (p *TopNPlan) Children() []PlanNode    { return []PlanNode{p.Child} }
