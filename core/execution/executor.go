// Package execution implements the pull-based (iterator model) query
// executors, their plan nodes and the expression evaluator they share.
package execution

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/concurrency"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

var ErrUnknownPlan = errors.New("no executor for plan node")

// Executor is the two-method operator capability: Init primes state,
// Next produces one row at a time and reports false on exhaustion.
// Errors abort the operator; the surrounding transaction is expected to
// be aborted by the caller.
type Executor interface {
	Init() error
	Next(tuple *catalog.Tuple, rid *page.RID) (bool, error)
}

// ExecutorContext carries everything an executor needs at runtime.
type ExecutorContext struct {
	Txn      *concurrency.Transaction
	TxnMgr   *concurrency.TransactionManager
	Catalog  *catalog.Catalog
	BPM      *buffer.BufferPoolManager
	LockMgr  *concurrency.LockManager
	Logger   *zap.Logger
	IsDelete bool
}

// NewExecutorContext builds a context; a nil logger becomes a no-op.
func NewExecutorContext(txn *concurrency.Transaction, txnMgr *concurrency.TransactionManager,
	cat *catalog.Catalog, bpm *buffer.BufferPoolManager, lockMgr *concurrency.LockManager,
	logger *zap.Logger) *ExecutorContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutorContext{
		Txn:     txn,
		TxnMgr:  txnMgr,
		Catalog: cat,
		BPM:     bpm,
		LockMgr: lockMgr,
		Logger:  logger,
	}
}

// NewExecutor builds the executor tree for a plan bottom-up.
func NewExecutor(ctx *ExecutorContext, plan PlanNode) (Executor, error) {
	switch p := plan.(type) {
	case *SeqScanPlan:
		return NewSeqScanExecutor(ctx, p), nil
	case *IndexScanPlan:
		return NewIndexScanExecutor(ctx, p), nil
	case *ValuesPlan:
		return NewValuesExecutor(ctx, p), nil
	case *InsertPlan:
		child, err := NewExecutor(ctx, p.Child)
		if err != nil {
			return nil, err
		}
		return NewInsertExecutor(ctx, p, child), nil
	case *DeletePlan:
		ctx.IsDelete = true
		child, err := NewExecutor(ctx, p.Child)
		if err != nil {
			return nil, err
		}
		return NewDeleteExecutor(ctx, p, child), nil
	case *UpdatePlan:
		ctx.IsDelete = true
		child, err := NewExecutor(ctx, p.Child)
		if err != nil {
			return nil, err
		}
		return NewUpdateExecutor(ctx, p, child), nil
	case *NestedLoopJoinPlan:
		left, err := NewExecutor(ctx, p.Left)
		if err != nil {
			return nil, err
		}
		right, err := NewExecutor(ctx, p.Right)
		if err != nil {
			return nil, err
		}
		return NewNestedLoopJoinExecutor(ctx, p, left, right), nil
	case *HashJoinPlan:
		left, err := NewExecutor(ctx, p.Left)
		if err != nil {
			return nil, err
		}
		right, err := NewExecutor(ctx, p.Right)
		if err != nil {
			return nil, err
		}
		return NewHashJoinExecutor(ctx, p, left, right), nil
	case *AggregationPlan:
		child, err := NewExecutor(ctx, p.Child)
		if err != nil {
			return nil, err
		}
		return NewAggregationExecutor(ctx, p, child), nil
	case *SortPlan:
		child, err := NewExecutor(ctx, p.Child)
		if err != nil {
			return nil, err
		}
		return NewSortExecutor(ctx, p, child), nil
	case *LimitPlan:
		child, err := NewExecutor(ctx, p.Child)
		if err != nil {
			return nil, err
		}
		return NewLimitExecutor(ctx, p, child), nil
	case *TopNPlan:
		child, err := NewExecutor(ctx, p.Child)
		if err != nil {
			return nil, err
		}
		return NewTopNExecutor(ctx, p, child), nil
	default:
		return nil, ErrUnknownPlan
	}
}

// Execute pulls the whole plan to completion, collecting every tuple.
func Execute(ctx *ExecutorContext, plan PlanNode) ([]*catalog.Tuple, error) {
	exec, err := NewExecutor(ctx, plan)
	if err != nil {
		return nil, err
	}
	if err := exec.Init(); err != nil {
		return nil, err
	}
	var out []*catalog.Tuple
	for {
		var tuple catalog.Tuple
		var rid page.RID
		ok, err := exec.Next(&tuple, &rid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		row := tuple
		out = append(out, &row)
	}
}
