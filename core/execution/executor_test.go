package execution

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/concurrency"
	"github.com/sushant-115/sukunadb/core/storage/disk"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

type testEngine struct {
	cat *catalog.Catalog
	lm  *concurrency.LockManager
	tm  *concurrency.TransactionManager
	bpm *buffer.BufferPoolManager
}

func setupExecEngine(t *testing.T) *testEngine {
	t.Helper()
	dm, err := disk.NewDiskManager(filepath.Join(t.TempDir(), "exec.db"), page.DefaultPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.ShutDown() })
	bpm := buffer.NewBufferPoolManager(128, 2, dm, nil, nil)
	cat := catalog.NewCatalog(bpm, nil)
	lm := concurrency.NewLockManager(time.Hour, nil, nil)
	t.Cleanup(lm.Close)
	tm := concurrency.NewTransactionManager(lm, cat, nil, nil)
	return &testEngine{cat: cat, lm: lm, tm: tm, bpm: bpm}
}

func (e *testEngine) ctx(txn *concurrency.Transaction) *ExecutorContext {
	return NewExecutorContext(txn, e.tm, e.cat, e.bpm, e.lm, nil)
}

// seedUsers creates users(id INT, dept VARCHAR, score INT) with a fixed
// data set.
func seedUsers(t *testing.T, e *testEngine) *catalog.TableInfo {
	t.Helper()
	schema := catalog.NewSchema(
		catalog.Column{Name: "id", Type: catalog.TypeInteger},
		catalog.Column{Name: "dept", Type: catalog.TypeVarchar},
		catalog.Column{Name: "score", Type: catalog.TypeInteger},
	)
	info, err := e.cat.CreateTable("users", schema)
	require.NoError(t, err)
	rows := []struct {
		id    int64
		dept  string
		score int64
	}{
		{1, "eng", 90},
		{2, "eng", 70},
		{3, "ops", 80},
		{4, "ops", 60},
		{5, "sales", 85},
	}
	for _, r := range rows {
		tuple := catalog.NewTuple([]catalog.Value{
			catalog.NewIntegerValue(r.id),
			catalog.NewVarcharValue(r.dept),
			catalog.NewIntegerValue(r.score),
		})
		_, err := info.Heap.InsertTuple(catalog.TupleMeta{}, tuple)
		require.NoError(t, err)
	}
	return info
}

// seedDepts creates depts(name VARCHAR, building INT).
func seedDepts(t *testing.T, e *testEngine) *catalog.TableInfo {
	t.Helper()
	schema := catalog.NewSchema(
		catalog.Column{Name: "name", Type: catalog.TypeVarchar},
		catalog.Column{Name: "building", Type: catalog.TypeInteger},
	)
	info, err := e.cat.CreateTable("depts", schema)
	require.NoError(t, err)
	for _, r := range []struct {
		name     string
		building int64
	}{{"eng", 1}, {"ops", 2}} {
		tuple := catalog.NewTuple([]catalog.Value{
			catalog.NewVarcharValue(r.name),
			catalog.NewIntegerValue(r.building),
		})
		_, err := info.Heap.InsertTuple(catalog.TupleMeta{}, tuple)
		require.NoError(t, err)
	}
	return info
}

func seqScanPlan(table *catalog.TableInfo, pred Expression) *SeqScanPlan {
	return &SeqScanPlan{
		TableOID:  table.OID,
		TableName: table.Name,
		Predicate: pred,
		OutSchema: table.Schema,
	}
}

func TestSeqScan_PredicateAndLocks(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)
	txn := e.tm.Begin(concurrency.RepeatableRead)

	pred := NewComparison(CmpGreaterThan,
		NewColumnValue(2, catalog.TypeInteger),
		NewConstant(catalog.NewIntegerValue(75)))
	rows, err := Execute(e.ctx(txn), seqScanPlan(users, pred))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.Greater(t, r.Value(2).AsInt(), int64(75))
	}
	e.tm.Commit(txn)
}

func TestInsert_ThroughValuesAndIndex(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)
	index, err := e.cat.CreateIndex("users_id", "users", []int{0})
	require.NoError(t, err)

	txn := e.tm.Begin(concurrency.RepeatableRead)
	values := &ValuesPlan{
		Rows: [][]Expression{
			{
				NewConstant(catalog.NewIntegerValue(6)),
				NewConstant(catalog.NewVarcharValue("eng")),
				NewConstant(catalog.NewIntegerValue(95)),
			},
			{
				NewConstant(catalog.NewIntegerValue(7)),
				NewConstant(catalog.NewVarcharValue("ops")),
				NewConstant(catalog.NewIntegerValue(55)),
			},
		},
		OutSchema: users.Schema,
	}
	rows, err := Execute(e.ctx(txn), &InsertPlan{TableOID: users.OID, Child: values})
	require.NoError(t, err)
	require.Len(t, rows, 1, "insert emits a single summary row")
	require.Equal(t, int64(2), rows[0].Value(0).AsInt())
	e.tm.Commit(txn)

	// New keys are visible through the index.
	key := catalog.NewTuple([]catalog.Value{catalog.NewIntegerValue(6)})
	_, found, err := index.ScanKey(key)
	require.NoError(t, err)
	require.True(t, found)

	txn2 := e.tm.Begin(concurrency.RepeatableRead)
	rows, err = Execute(e.ctx(txn2), seqScanPlan(users, nil))
	require.NoError(t, err)
	require.Len(t, rows, 7)
	e.tm.Commit(txn2)
}

func TestDelete_MarksAndCounts(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)

	txn := e.tm.Begin(concurrency.RepeatableRead)
	pred := NewComparison(CmpEqual,
		NewColumnValue(1, catalog.TypeVarchar),
		NewConstant(catalog.NewVarcharValue("ops")))
	rows, err := Execute(e.ctx(txn), &DeletePlan{
		TableOID: users.OID,
		Child:    seqScanPlan(users, pred),
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), rows[0].Value(0).AsInt())
	e.tm.Commit(txn)

	txn2 := e.tm.Begin(concurrency.RepeatableRead)
	remaining, err := Execute(e.ctx(txn2), seqScanPlan(users, nil))
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	e.tm.Commit(txn2)
}

func TestDelete_AbortRestoresRows(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)

	txn := e.tm.Begin(concurrency.RepeatableRead)
	rows, err := Execute(e.ctx(txn), &DeletePlan{
		TableOID: users.OID,
		Child:    seqScanPlan(users, nil),
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), rows[0].Value(0).AsInt())
	e.tm.Abort(txn)

	txn2 := e.tm.Begin(concurrency.RepeatableRead)
	restored, err := Execute(e.ctx(txn2), seqScanPlan(users, nil))
	require.NoError(t, err)
	require.Len(t, restored, 5, "aborted delete leaves no visible effect")
	e.tm.Commit(txn2)
}

func TestInsert_AbortIsInvisibleToReadUncommitted(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)

	t1 := e.tm.Begin(concurrency.ReadUncommitted)
	values := &ValuesPlan{
		Rows: [][]Expression{{
			NewConstant(catalog.NewIntegerValue(99)),
			NewConstant(catalog.NewVarcharValue("tmp")),
			NewConstant(catalog.NewIntegerValue(1)),
		}},
		OutSchema: users.Schema,
	}
	_, err := Execute(e.ctx(t1), &InsertPlan{TableOID: users.OID, Child: values})
	require.NoError(t, err)
	e.tm.Abort(t1)

	t2 := e.tm.Begin(concurrency.ReadUncommitted)
	rows, err := Execute(e.ctx(t2), seqScanPlan(users, nil))
	require.NoError(t, err)
	require.Len(t, rows, 5, "dirty effect of the aborted insert must not be seen")
	e.tm.Commit(t2)
}

func TestUpdate_RewritesRows(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)

	// Set every eng score to 100, keeping the other columns.
	txn := e.tm.Begin(concurrency.RepeatableRead)
	pred := NewComparison(CmpEqual,
		NewColumnValue(1, catalog.TypeVarchar),
		NewConstant(catalog.NewVarcharValue("eng")))
	rows, err := Execute(e.ctx(txn), &UpdatePlan{
		TableOID: users.OID,
		TargetExprs: []Expression{
			NewColumnValue(0, catalog.TypeInteger),
			NewColumnValue(1, catalog.TypeVarchar),
			NewConstant(catalog.NewIntegerValue(100)),
		},
		Child: seqScanPlan(users, pred),
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), rows[0].Value(0).AsInt())
	e.tm.Commit(txn)

	txn2 := e.tm.Begin(concurrency.RepeatableRead)
	all, err := Execute(e.ctx(txn2), seqScanPlan(users, nil))
	require.NoError(t, err)
	require.Len(t, all, 5)
	engCount := 0
	for _, r := range all {
		if r.Value(1).AsString() == "eng" {
			engCount++
			require.Equal(t, int64(100), r.Value(2).AsInt())
		}
	}
	require.Equal(t, 2, engCount)
	e.tm.Commit(txn2)
}

func TestIndexScan_KeyOrderSkipsDeleted(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)
	index, err := e.cat.CreateIndex("users_id", "users", []int{0})
	require.NoError(t, err)

	// Delete id=3, then scan through the index.
	txn := e.tm.Begin(concurrency.RepeatableRead)
	pred := NewComparison(CmpEqual,
		NewColumnValue(0, catalog.TypeInteger),
		NewConstant(catalog.NewIntegerValue(3)))
	_, err = Execute(e.ctx(txn), &DeletePlan{TableOID: users.OID, Child: seqScanPlan(users, pred)})
	require.NoError(t, err)
	e.tm.Commit(txn)

	txn2 := e.tm.Begin(concurrency.RepeatableRead)
	rows, err := Execute(e.ctx(txn2), &IndexScanPlan{
		IndexOID:  index.OID,
		TableOID:  users.OID,
		OutSchema: users.Schema,
	})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	var ids []int64
	for _, r := range rows {
		ids = append(ids, r.Value(0).AsInt())
	}
	require.Equal(t, []int64{1, 2, 4, 5}, ids, "index scan yields key order and skips deleted rows")
	e.tm.Commit(txn2)
}

// joinSchema is the output schema of users joined with depts.
func joinSchema(users, depts *catalog.TableInfo) *catalog.Schema {
	return catalog.JoinSchemas(users.Schema, depts.Schema)
}

func TestNestedLoopJoin_InnerAndLeft(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)
	depts := seedDepts(t, e)

	pred := NewComparison(CmpEqual,
		NewJoinColumnValue(SideLeft, 1, catalog.TypeVarchar),
		NewJoinColumnValue(SideRight, 0, catalog.TypeVarchar))

	txn := e.tm.Begin(concurrency.RepeatableRead)
	inner, err := Execute(e.ctx(txn), &NestedLoopJoinPlan{
		Left:      seqScanPlan(users, nil),
		Right:     seqScanPlan(depts, nil),
		Predicate: pred,
		JoinKind:  InnerJoin,
		OutSchema: joinSchema(users, depts),
	})
	require.NoError(t, err)
	require.Len(t, inner, 4, "sales has no dept row")

	left, err := Execute(e.ctx(txn), &NestedLoopJoinPlan{
		Left:      seqScanPlan(users, nil),
		Right:     seqScanPlan(depts, nil),
		Predicate: pred,
		JoinKind:  LeftJoin,
		OutSchema: joinSchema(users, depts),
	})
	require.NoError(t, err)
	require.Len(t, left, 5)
	var padded *catalog.Tuple
	for _, r := range left {
		if r.Value(1).AsString() == "sales" {
			padded = r
		}
	}
	require.NotNil(t, padded)
	require.True(t, padded.Value(3).IsNull(), "unmatched outer row is null-padded")
	require.True(t, padded.Value(4).IsNull())
	e.tm.Commit(txn)
}

func TestHashJoin_MatchesNestedLoop(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)
	depts := seedDepts(t, e)

	plan := &HashJoinPlan{
		Left:      seqScanPlan(users, nil),
		Right:     seqScanPlan(depts, nil),
		LeftKeys:  []Expression{NewColumnValue(1, catalog.TypeVarchar)},
		RightKeys: []Expression{NewColumnValue(0, catalog.TypeVarchar)},
		JoinKind:  InnerJoin,
		OutSchema: joinSchema(users, depts),
	}
	txn := e.tm.Begin(concurrency.RepeatableRead)
	inner, err := Execute(e.ctx(txn), plan)
	require.NoError(t, err)
	require.Len(t, inner, 4)
	for _, r := range inner {
		require.Equal(t, r.Value(1).AsString(), r.Value(3).AsString())
	}

	leftPlan := *plan
	leftPlan.JoinKind = LeftJoin
	left, err := Execute(e.ctx(txn), &leftPlan)
	require.NoError(t, err)
	require.Len(t, left, 5)
	pads := 0
	for _, r := range left {
		if r.Value(3).IsNull() {
			pads++
			require.True(t, r.Value(4).IsNull())
		}
	}
	require.Equal(t, 1, pads)
	e.tm.Commit(txn)
}

func TestAggregation_GroupsAndGlobalEmpty(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)

	aggSchema := catalog.NewSchema(
		catalog.Column{Name: "dept", Type: catalog.TypeVarchar},
		catalog.Column{Name: "cnt", Type: catalog.TypeInteger},
		catalog.Column{Name: "sum_score", Type: catalog.TypeInteger},
		catalog.Column{Name: "min_score", Type: catalog.TypeInteger},
		catalog.Column{Name: "max_score", Type: catalog.TypeInteger},
	)
	score := NewColumnValue(2, catalog.TypeInteger)
	txn := e.tm.Begin(concurrency.RepeatableRead)
	rows, err := Execute(e.ctx(txn), &AggregationPlan{
		Child:     seqScanPlan(users, nil),
		GroupBys:  []Expression{NewColumnValue(1, catalog.TypeVarchar)},
		Aggs:      []Expression{score, score, score, score},
		AggTypes:  []AggregationType{AggCountStar, AggSum, AggMin, AggMax},
		OutSchema: aggSchema,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	byDept := map[string]*catalog.Tuple{}
	for _, r := range rows {
		byDept[r.Value(0).AsString()] = r
	}
	eng := byDept["eng"]
	require.Equal(t, int64(2), eng.Value(1).AsInt())
	require.Equal(t, int64(160), eng.Value(2).AsInt())
	require.Equal(t, int64(70), eng.Value(3).AsInt())
	require.Equal(t, int64(90), eng.Value(4).AsInt())

	// Global aggregation over an empty input: count 0, the rest NULL.
	nothing := NewComparison(CmpLessThan,
		NewColumnValue(0, catalog.TypeInteger),
		NewConstant(catalog.NewIntegerValue(0)))
	global, err := Execute(e.ctx(txn), &AggregationPlan{
		Child:     seqScanPlan(users, nothing),
		GroupBys:  nil,
		Aggs:      []Expression{score, score},
		AggTypes:  []AggregationType{AggCountStar, AggMax},
		OutSchema: catalog.NewSchema(
			catalog.Column{Name: "cnt", Type: catalog.TypeInteger},
			catalog.Column{Name: "max_score", Type: catalog.TypeInteger},
		),
	})
	require.NoError(t, err)
	require.Len(t, global, 1)
	require.Equal(t, int64(0), global[0].Value(0).AsInt())
	require.True(t, global[0].Value(1).IsNull())
	e.tm.Commit(txn)
}

func TestSort_Directions(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)

	txn := e.tm.Begin(concurrency.RepeatableRead)
	rows, err := Execute(e.ctx(txn), &SortPlan{
		Child: seqScanPlan(users, nil),
		OrderBys: []OrderBy{
			{Type: OrderAsc, Expr: NewColumnValue(1, catalog.TypeVarchar)},
			{Type: OrderDesc, Expr: NewColumnValue(2, catalog.TypeInteger)},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	// eng 90, eng 70, ops 80, ops 60, sales 85.
	wantIDs := []int64{1, 2, 3, 4, 5}
	for i, r := range rows {
		require.Equal(t, wantIDs[i], r.Value(0).AsInt())
	}
	e.tm.Commit(txn)
}

func TestTopN_MatchesSortLimit(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)
	orderBys := []OrderBy{{Type: OrderDesc, Expr: NewColumnValue(2, catalog.TypeInteger)}}

	txn := e.tm.Begin(concurrency.RepeatableRead)
	topn, err := Execute(e.ctx(txn), &TopNPlan{
		Child:    seqScanPlan(users, nil),
		OrderBys: orderBys,
		N:        3,
	})
	require.NoError(t, err)
	sorted, err := Execute(e.ctx(txn), &LimitPlan{
		Child: &SortPlan{Child: seqScanPlan(users, nil), OrderBys: orderBys},
		N:     3,
	})
	require.NoError(t, err)
	require.Len(t, topn, 3)
	require.Equal(t, len(sorted), len(topn))
	for i := range topn {
		require.Equal(t, sorted[i].Value(0).AsInt(), topn[i].Value(0).AsInt())
	}
	require.Equal(t, int64(90), topn[0].Value(2).AsInt())
	e.tm.Commit(txn)
}

func TestLimit_Caps(t *testing.T) {
	e := setupExecEngine(t)
	users := seedUsers(t, e)

	txn := e.tm.Begin(concurrency.RepeatableRead)
	rows, err := Execute(e.ctx(txn), &LimitPlan{Child: seqScanPlan(users, nil), N: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	e.tm.Commit(txn)
}
