package concurrency

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/catalog"
)

// TxnMetrics receives transaction lifecycle events.
type TxnMetrics interface {
	TxnCommitted()
	TxnAborted()
}

type nopTxnMetrics struct{}

func (nopTxnMetrics) TxnCommitted() {}
func (nopTxnMetrics) TxnAborted()   {}

// TransactionManager assigns transaction ids, tracks live transactions
// and drives commit and abort. Abort replays the transaction's write
// sets in reverse: index entries are re-inserted or deleted and heap
// tuples have their deletion mark flipped back.
type TransactionManager struct {
	lockMgr *LockManager
	catalog *catalog.Catalog
	logger  *zap.Logger
	metrics TxnMetrics

	nextTxnID atomic.Uint64
	mu        sync.Mutex
	txns      map[uint64]*Transaction
}

// NewTransactionManager wires a transaction manager to the lock manager
// and (optionally) the catalog used to resolve indexes during abort. It
// registers itself as the lock manager's transaction lookup.
func NewTransactionManager(lockMgr *LockManager, cat *catalog.Catalog, logger *zap.Logger, metrics TxnMetrics) *TransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopTxnMetrics{}
	}
	tm := &TransactionManager{
		lockMgr: lockMgr,
		catalog: cat,
		logger:  logger,
		metrics: metrics,
		txns:    make(map[uint64]*Transaction),
	}
	if lockMgr != nil {
		lockMgr.SetTransactionLookup(tm.GetTransaction)
	}
	return tm
}

// Begin starts a transaction at the given isolation level.
func (tm *TransactionManager) Begin(isolation IsolationLevel) *Transaction {
	id := tm.nextTxnID.Add(1)
	txn := newTransaction(id, isolation)
	tm.mu.Lock()
	tm.txns[id] = txn
	tm.mu.Unlock()
	tm.logger.Debug("transaction begun",
		zap.Uint64("txn_id", id),
		zap.String("isolation", isolation.String()))
	return txn
}

// GetTransaction resolves a live transaction by id.
func (tm *TransactionManager) GetTransaction(id uint64) *Transaction {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.txns[id]
}

// Commit releases the transaction's locks and marks it COMMITTED.
func (tm *TransactionManager) Commit(txn *Transaction) {
	if tm.lockMgr != nil {
		tm.lockMgr.ReleaseAllLocks(txn)
	}
	txn.mu.Lock()
	txn.state = Committed
	txn.tableWriteSet = nil
	txn.indexWriteSet = nil
	txn.mu.Unlock()
	tm.metrics.TxnCommitted()
	tm.logger.Debug("transaction committed", zap.Uint64("txn_id", txn.ID()))
}

// Abort undoes the transaction's writes, releases its locks and marks
// it ABORTED. The index write set is replayed first, then the table
// write set, both newest first.
func (tm *TransactionManager) Abort(txn *Transaction) {
	txn.mu.Lock()
	indexWrites := txn.indexWriteSet
	tableWrites := txn.tableWriteSet
	txn.indexWriteSet = nil
	txn.tableWriteSet = nil
	txn.mu.Unlock()

	for i := len(indexWrites) - 1; i >= 0; i-- {
		rec := indexWrites[i]
		index, err := tm.resolveIndex(rec.IndexOID)
		if err != nil {
			tm.logger.Error("abort could not resolve index",
				zap.Uint64("txn_id", txn.ID()),
				zap.Uint32("index_oid", rec.IndexOID),
				zap.Error(err))
			continue
		}
		switch rec.WType {
		case WriteInsert:
			err = index.DeleteEntry(rec.KeyTuple)
		case WriteDelete:
			err = index.InsertEntry(rec.KeyTuple, rec.RID)
		}
		if err != nil {
			tm.logger.Error("abort failed to undo index write",
				zap.Uint64("txn_id", txn.ID()),
				zap.Uint32("index_oid", rec.IndexOID),
				zap.Error(err))
		}
	}

	for i := len(tableWrites) - 1; i >= 0; i-- {
		rec := tableWrites[i]
		// Undo flips the deletion mark: an aborted insert is re-deleted,
		// an aborted delete is resurrected.
		meta := catalog.TupleMeta{IsDeleted: rec.WType == WriteInsert}
		if err := rec.Heap.UpdateTupleMeta(meta, rec.RID); err != nil {
			tm.logger.Error("abort failed to undo heap write",
				zap.Uint64("txn_id", txn.ID()),
				zap.Error(err))
		}
	}

	if tm.lockMgr != nil {
		tm.lockMgr.ReleaseAllLocks(txn)
	}
	txn.SetState(Aborted)
	tm.metrics.TxnAborted()
	tm.logger.Debug("transaction aborted", zap.Uint64("txn_id", txn.ID()))
}

func (tm *TransactionManager) resolveIndex(oid uint32) (*catalog.IndexInfo, error) {
	if tm.catalog == nil {
		return nil, catalog.ErrIndexNotFound
	}
	return tm.catalog.GetIndex(oid)
}
