// Package concurrency implements transactional concurrency control: the
// hierarchical two-phase lock manager with deadlock detection, the
// transaction object with its lock and write sets, and the transaction
// manager that drives commit and abort.
package concurrency

import (
	"fmt"
	"sync"

	"github.com/sushant-115/sukunadb/core/catalog"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// IsolationLevel selects how strictly a transaction's reads are fenced.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
)

func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "READ_UNCOMMITTED"
	case ReadCommitted:
		return "READ_COMMITTED"
	default:
		return "REPEATABLE_READ"
	}
}

// TransactionState tracks the 2PL lifecycle.
type TransactionState int

const (
	Growing TransactionState = iota
	Shrinking
	Committed
	Aborted
)

func (s TransactionState) String() string {
	switch s {
	case Growing:
		return "GROWING"
	case Shrinking:
		return "SHRINKING"
	case Committed:
		return "COMMITTED"
	default:
		return "ABORTED"
	}
}

// WriteType tags a write-set record.
type WriteType int

const (
	WriteInsert WriteType = iota
	WriteDelete
)

// TableWriteRecord is the undo information for one heap modification.
type TableWriteRecord struct {
	TableOID uint32
	RID      page.RID
	Heap     *catalog.TableHeap
	WType    WriteType
}

// IndexWriteRecord is the undo information for one index modification.
type IndexWriteRecord struct {
	IndexOID uint32
	RID      page.RID
	KeyTuple *catalog.Tuple
	WType    WriteType
}

// Transaction carries the id, isolation level, 2PL state, per-mode lock
// sets and the two write sets. All fields behind mu are shared with the
// lock manager and the deadlock detector.
type Transaction struct {
	id        uint64
	isolation IsolationLevel

	mu    sync.Mutex
	state TransactionState

	// Table lock sets, one per mode.
	sTables, xTables, isTables, ixTables, sixTables map[uint32]struct{}
	// Row lock sets: table oid -> rids.
	sRows, xRows map[uint32]map[page.RID]struct{}

	tableWriteSet []TableWriteRecord
	indexWriteSet []IndexWriteRecord
}

func newTransaction(id uint64, isolation IsolationLevel) *Transaction {
	return &Transaction{
		id:        id,
		isolation: isolation,
		state:     Growing,
		sTables:   make(map[uint32]struct{}),
		xTables:   make(map[uint32]struct{}),
		isTables:  make(map[uint32]struct{}),
		ixTables:  make(map[uint32]struct{}),
		sixTables: make(map[uint32]struct{}),
		sRows:     make(map[uint32]map[page.RID]struct{}),
		xRows:     make(map[uint32]map[page.RID]struct{}),
	}
}

// ID returns the transaction id. Ids are assigned monotonically, so a
// larger id means a younger transaction.
func (t *Transaction) ID() uint64 { return t.id }

// Isolation returns the transaction's isolation level.
func (t *Transaction) Isolation() IsolationLevel { return t.isolation }

// State returns the current lifecycle state.
func (t *Transaction) State() TransactionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the lifecycle state.
func (t *Transaction) SetState(s TransactionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// tableLockSet returns the lock set for mode. Callers hold t.mu.
func (t *Transaction) tableLockSet(mode LockMode) map[uint32]struct{} {
	switch mode {
	case Shared:
		return t.sTables
	case Exclusive:
		return t.xTables
	case IntentionShared:
		return t.isTables
	case IntentionExclusive:
		return t.ixTables
	default:
		return t.sixTables
	}
}

// addTableLock records a granted table lock.
func (t *Transaction) addTableLock(mode LockMode, oid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tableLockSet(mode)[oid] = struct{}{}
}

// removeTableLock forgets a table lock.
func (t *Transaction) removeTableLock(mode LockMode, oid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tableLockSet(mode), oid)
}

// heldTableLock reports which mode, if any, the transaction holds on the
// table.
func (t *Transaction) heldTableLock(oid uint32) (LockMode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range []LockMode{Shared, Exclusive, IntentionShared, IntentionExclusive, SharedIntentionExclusive} {
		if _, ok := t.tableLockSet(m)[oid]; ok {
			return m, true
		}
	}
	return 0, false
}

// addRowLock records a granted row lock.
func (t *Transaction) addRowLock(mode LockMode, oid uint32, rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sRows
	if mode == Exclusive {
		set = t.xRows
	}
	if set[oid] == nil {
		set[oid] = make(map[page.RID]struct{})
	}
	set[oid][rid] = struct{}{}
}

// removeRowLock forgets a row lock.
func (t *Transaction) removeRowLock(mode LockMode, oid uint32, rid page.RID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.sRows
	if mode == Exclusive {
		set = t.xRows
	}
	delete(set[oid], rid)
	if len(set[oid]) == 0 {
		delete(set, oid)
	}
}

// heldRowLock reports which mode, if any, the transaction holds on the
// row.
func (t *Transaction) heldRowLock(oid uint32, rid page.RID) (LockMode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rids, ok := t.sRows[oid]; ok {
		if _, ok := rids[rid]; ok {
			return Shared, true
		}
	}
	if rids, ok := t.xRows[oid]; ok {
		if _, ok := rids[rid]; ok {
			return Exclusive, true
		}
	}
	return 0, false
}

// hasRowLocksOnTable reports whether any row locks on the table remain.
func (t *Transaction) hasRowLocksOnTable(oid uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sRows[oid]) > 0 || len(t.xRows[oid]) > 0
}

// AppendTableWrite records heap undo information.
func (t *Transaction) AppendTableWrite(rec TableWriteRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tableWriteSet = append(t.tableWriteSet, rec)
}

// AppendIndexWrite records index undo information.
func (t *Transaction) AppendIndexWrite(rec IndexWriteRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexWriteSet = append(t.indexWriteSet, rec)
}

func (t *Transaction) String() string {
	return fmt.Sprintf("txn %d (%s, %s)", t.id, t.isolation, t.State())
}
