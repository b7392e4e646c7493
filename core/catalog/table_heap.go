package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

var (
	ErrTupleTooLarge = errors.New("tuple does not fit in a single page")
	ErrBadRID        = errors.New("rid does not reference a stored tuple")
)

// TableHeap stores a table's tuples on a chain of slotted pages paged in
// through the buffer pool. Appends go to the tail page; a tuple that
// does not fit triggers allocation of a fresh page linked behind it.
type TableHeap struct {
	bpm         *buffer.BufferPoolManager
	schema      *Schema
	firstPageID page.PageID

	mu         sync.Mutex // serialises appends
	lastPageID page.PageID
}

// NewTableHeap creates an empty heap with one initial page.
func NewTableHeap(bpm *buffer.BufferPoolManager, schema *Schema) (*TableHeap, error) {
	first, err := bpm.NewPageGuarded()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate first table page: %w", err)
	}
	defer first.Drop()
	initTablePage(first.GetDataMut())
	return &TableHeap{
		bpm:         bpm,
		schema:      schema,
		firstPageID: first.PageID(),
		lastPageID:  first.PageID(),
	}, nil
}

// Schema returns the heap's tuple schema.
func (h *TableHeap) Schema() *Schema { return h.schema }

// FirstPageID returns the head of the page chain.
func (h *TableHeap) FirstPageID() page.PageID { return h.firstPageID }

// InsertTuple appends a tuple with the given meta and returns its rid.
func (h *TableHeap) InsertTuple(meta TupleMeta, tuple *Tuple) (page.RID, error) {
	data := tuple.Serialize()
	if len(data)+tableSlotSize+tablePageHeaderSize > page.DefaultPageSize {
		return page.RID{}, ErrTupleTooLarge
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	guard, err := h.bpm.FetchPageWrite(h.lastPageID)
	if err != nil {
		return page.RID{}, err
	}
	tp := tablePageView(guard.GetDataMut())
	if slot, ok := tp.insertTuple(data, meta.IsDeleted); ok {
		rid := page.RID{PageID: guard.PageID(), SlotNum: slot}
		guard.Drop()
		return rid, nil
	}

	// Tail page is full: chain a new one behind it.
	fresh, err := h.bpm.NewPageGuarded()
	if err != nil {
		guard.Drop()
		return page.RID{}, fmt.Errorf("failed to extend table heap: %w", err)
	}
	next := fresh.UpgradeWrite()
	initTablePage(next.GetDataMut())
	tp.setNext(next.PageID())
	guard.Drop()

	ntp := tablePageView(next.GetDataMut())
	slot, ok := ntp.insertTuple(data, meta.IsDeleted)
	if !ok {
		next.Drop()
		return page.RID{}, ErrTupleTooLarge
	}
	rid := page.RID{PageID: next.PageID(), SlotNum: slot}
	h.lastPageID = next.PageID()
	next.Drop()
	return rid, nil
}

// GetTuple reads the tuple and meta stored at rid.
func (h *TableHeap) GetTuple(rid page.RID) (TupleMeta, *Tuple, error) {
	guard, err := h.bpm.FetchPageRead(rid.PageID)
	if err != nil {
		return TupleMeta{}, nil, err
	}
	defer guard.Drop()
	tp := tablePageView(guard.GetData())
	if int(rid.SlotNum) >= tp.slotCount() {
		return TupleMeta{}, nil, fmt.Errorf("%w: %s", ErrBadRID, rid)
	}
	_, _, deleted := tp.slot(int(rid.SlotNum))
	tuple := DeserializeTuple(h.schema, tp.tupleData(int(rid.SlotNum)))
	tuple.SetRID(rid)
	return TupleMeta{IsDeleted: deleted}, tuple, nil
}

// GetTupleMeta reads only the meta at rid.
func (h *TableHeap) GetTupleMeta(rid page.RID) (TupleMeta, error) {
	guard, err := h.bpm.FetchPageRead(rid.PageID)
	if err != nil {
		return TupleMeta{}, err
	}
	defer guard.Drop()
	tp := tablePageView(guard.GetData())
	if int(rid.SlotNum) >= tp.slotCount() {
		return TupleMeta{}, fmt.Errorf("%w: %s", ErrBadRID, rid)
	}
	_, _, deleted := tp.slot(int(rid.SlotNum))
	return TupleMeta{IsDeleted: deleted}, nil
}

// UpdateTupleMeta overwrites the meta at rid; this is how deletes and
// abort undo flip the deletion mark.
func (h *TableHeap) UpdateTupleMeta(meta TupleMeta, rid page.RID) error {
	guard, err := h.bpm.FetchPageWrite(rid.PageID)
	if err != nil {
		return err
	}
	defer guard.Drop()
	tp := tablePageView(guard.GetDataMut())
	if int(rid.SlotNum) >= tp.slotCount() {
		return fmt.Errorf("%w: %s", ErrBadRID, rid)
	}
	tp.setSlotDeleted(int(rid.SlotNum), meta.IsDeleted)
	return nil
}

// TableIterator walks every slot of the heap in rid order. The end
// boundary is captured at creation time so tuples appended during the
// walk (for example by an update of the scanned table) are not revisited.
type TableIterator struct {
	heap     *TableHeap
	cur      page.RID
	stopPage page.PageID
	stopSlot uint32
	done     bool
}

// MakeIterator positions an iterator at the heap's first slot.
func (h *TableHeap) MakeIterator() (*TableIterator, error) {
	h.mu.Lock()
	lastID := h.lastPageID
	h.mu.Unlock()

	guard, err := h.bpm.FetchPageRead(lastID)
	if err != nil {
		return nil, err
	}
	stopSlot := uint32(tablePageView(guard.GetData()).slotCount())
	guard.Drop()

	return &TableIterator{
		heap:     h,
		cur:      page.RID{PageID: h.firstPageID, SlotNum: 0},
		stopPage: lastID,
		stopSlot: stopSlot,
	}, nil
}

// Next returns the next tuple (deleted ones included; callers check the
// meta). The third result is false at the end of the heap.
func (it *TableIterator) Next() (TupleMeta, *Tuple, bool, error) {
	for !it.done {
		if it.cur.PageID == it.stopPage && it.cur.SlotNum >= it.stopSlot {
			it.done = true
			break
		}
		guard, err := it.heap.bpm.FetchPageRead(it.cur.PageID)
		if err != nil {
			return TupleMeta{}, nil, false, err
		}
		tp := tablePageView(guard.GetData())
		if int(it.cur.SlotNum) >= tp.slotCount() {
			next := tp.next()
			guard.Drop()
			if next == page.InvalidPageID {
				it.done = true
				break
			}
			it.cur = page.RID{PageID: next, SlotNum: 0}
			continue
		}
		_, _, deleted := tp.slot(int(it.cur.SlotNum))
		tuple := DeserializeTuple(it.heap.schema, tp.tupleData(int(it.cur.SlotNum)))
		tuple.SetRID(it.cur)
		rid := it.cur
		guard.Drop()
		it.cur = page.RID{PageID: rid.PageID, SlotNum: rid.SlotNum + 1}
		return TupleMeta{IsDeleted: deleted}, tuple, true, nil
	}
	return TupleMeta{}, nil, false, nil
}
