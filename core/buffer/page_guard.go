package buffer

import (
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// BasicPageGuard scopes a single pin on a buffer pool frame. Dropping the
// guard unpins the page exactly once; guards are linear — transfer
// ownership with MoveFrom, never by copying.
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	page    *page.Page
	isDirty bool
}

// NewBasicPageGuard wraps an already-pinned page in a guard.
func NewBasicPageGuard(bpm *BufferPoolManager, p *page.Page) BasicPageGuard {
	return BasicPageGuard{bpm: bpm, page: p}
}

// PageID returns the guarded page's id, or InvalidPageID after Drop.
func (g *BasicPageGuard) PageID() page.PageID {
	if g.page == nil {
		return page.InvalidPageID
	}
	return g.page.GetPageID()
}

// GetData returns the guarded page's bytes for reading.
func (g *BasicPageGuard) GetData() []byte {
	return g.page.GetData()
}

// GetDataMut returns the guarded page's bytes for writing and marks the
// pin dirty.
func (g *BasicPageGuard) GetDataMut() []byte {
	g.isDirty = true
	return g.page.GetData()
}

// Drop releases the pin. Dropping an already-dropped guard is a no-op.
func (g *BasicPageGuard) Drop() {
	if g.page == nil {
		return
	}
	g.bpm.UnpinPage(g.page.GetPageID(), g.isDirty)
	g.page = nil
	g.bpm = nil
	g.isDirty = false
}

// MoveFrom drops whatever this guard currently holds, then adopts the
// source guard's state, leaving the source empty. Moving a guard into
// itself is a no-op.
func (g *BasicPageGuard) MoveFrom(src *BasicPageGuard) {
	if g == src {
		return
	}
	g.Drop()
	g.bpm, g.page, g.isDirty = src.bpm, src.page, src.isDirty
	src.bpm, src.page, src.isDirty = nil, nil, false
}

// UpgradeRead converts the basic guard into a read guard, taking the
// page's shared latch. The basic guard is emptied.
func (g *BasicPageGuard) UpgradeRead() ReadPageGuard {
	g.page.RLatch()
	rg := ReadPageGuard{guard: *g}
	g.bpm, g.page, g.isDirty = nil, nil, false
	return rg
}

// UpgradeWrite converts the basic guard into a write guard, taking the
// page's exclusive latch. The basic guard is emptied.
func (g *BasicPageGuard) UpgradeWrite() WritePageGuard {
	g.page.WLatch()
	wg := WritePageGuard{guard: *g}
	g.bpm, g.page, g.isDirty = nil, nil, false
	return wg
}

// ReadPageGuard scopes a pin plus the frame's shared latch. The latch is
// released before the pin so that an evictor can never observe a frame
// that is unpinned but still latched.
type ReadPageGuard struct {
	guard BasicPageGuard
}

// PageID returns the guarded page's id.
func (g *ReadPageGuard) PageID() page.PageID { return g.guard.PageID() }

// GetData returns the guarded page's bytes.
func (g *ReadPageGuard) GetData() []byte { return g.guard.GetData() }

// Drop releases the shared latch, then the pin. Idempotent.
func (g *ReadPageGuard) Drop() {
	if g.guard.page == nil {
		return
	}
	g.guard.page.RUnlatch()
	g.guard.Drop()
}

// MoveFrom drops the current holding and adopts src's. Self-move is a
// no-op.
func (g *ReadPageGuard) MoveFrom(src *ReadPageGuard) {
	if g == src {
		return
	}
	g.Drop()
	g.guard = src.guard
	src.guard = BasicPageGuard{}
}

// WritePageGuard scopes a pin plus the frame's exclusive latch. Release
// order matches ReadPageGuard: latch first, pin second.
type WritePageGuard struct {
	guard BasicPageGuard
}

// PageID returns the guarded page's id.
func (g *WritePageGuard) PageID() page.PageID { return g.guard.PageID() }

// GetData returns the guarded page's bytes.
func (g *WritePageGuard) GetData() []byte { return g.guard.GetData() }

// GetDataMut returns the guarded page's bytes for writing, marking the
// pin dirty.
func (g *WritePageGuard) GetDataMut() []byte { return g.guard.GetDataMut() }

// Drop releases the exclusive latch, then the pin. Idempotent.
func (g *WritePageGuard) Drop() {
	if g.guard.page == nil {
		return
	}
	g.guard.page.WUnlatch()
	g.guard.Drop()
}

// MoveFrom drops the current holding and adopts src's. Self-move is a
// no-op.
func (g *WritePageGuard) MoveFrom(src *WritePageGuard) {
	if g == src {
		return
	}
	g.Drop()
	g.guard = src.guard
	src.guard = BasicPageGuard{}
}

// Guard factories on the buffer pool.

// NewPageGuarded allocates a new page and returns it wrapped in a basic
// guard.
func (bpm *BufferPoolManager) NewPageGuarded() (BasicPageGuard, error) {
	p, err := bpm.NewPage()
	if err != nil {
		return BasicPageGuard{}, err
	}
	return NewBasicPageGuard(bpm, p), nil
}

// FetchPageBasic fetches a page wrapped in a basic guard.
func (bpm *BufferPoolManager) FetchPageBasic(pageID page.PageID) (BasicPageGuard, error) {
	p, err := bpm.FetchPage(pageID)
	if err != nil {
		return BasicPageGuard{}, err
	}
	return NewBasicPageGuard(bpm, p), nil
}

// FetchPageRead fetches a page and takes its shared latch.
func (bpm *BufferPoolManager) FetchPageRead(pageID page.PageID) (ReadPageGuard, error) {
	p, err := bpm.FetchPage(pageID)
	if err != nil {
		return ReadPageGuard{}, err
	}
	p.RLatch()
	return ReadPageGuard{guard: NewBasicPageGuard(bpm, p)}, nil
}

// FetchPageWrite fetches a page and takes its exclusive latch.
func (bpm *BufferPoolManager) FetchPageWrite(pageID page.PageID) (WritePageGuard, error) {
	p, err := bpm.FetchPage(pageID)
	if err != nil {
		return WritePageGuard{}, err
	}
	p.WLatch()
	return WritePageGuard{guard: NewBasicPageGuard(bpm, p)}, nil
}
