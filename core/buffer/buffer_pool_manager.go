package buffer

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/storage/disk"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

var (
	ErrBufferPoolFull = errors.New("buffer pool is full and no pages can be evicted")
	ErrPageNotFound   = errors.New("page not found in buffer pool")
	ErrPagePinned     = errors.New("page is pinned and cannot be deleted")
)

// Metrics receives buffer pool events. The zero value is a valid no-op
// sink; the telemetry package provides an OpenTelemetry-backed one.
type Metrics interface {
	PoolHit()
	PoolMiss()
	PoolEviction()
}

type nopMetrics struct{}

func (nopMetrics) PoolHit()      {}
func (nopMetrics) PoolMiss()     {}
func (nopMetrics) PoolEviction() {}

// BufferPoolManager maps page ids onto a fixed set of in-memory frames.
// It fetches pages from the disk manager on demand, evicts victims chosen
// by the LRU-K replacer and writes dirty pages back before reuse. One
// mutex serialises all public operations; disk I/O happens while it is
// held, never under a page latch.
type BufferPoolManager struct {
	mu          sync.Mutex
	poolSize    int
	diskManager *disk.DiskManager
	pages       []*page.Page
	pageTable   map[page.PageID]page.FrameID
	freeList    []page.FrameID
	replacer    *LRUKReplacer
	logger      *zap.Logger
	metrics     Metrics
}

// NewBufferPoolManager creates a pool of poolSize frames over the disk
// manager, with an LRU-K replacer of history depth k.
func NewBufferPoolManager(poolSize int, k int, dm *disk.DiskManager, logger *zap.Logger, metrics Metrics) *BufferPoolManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	bpm := &BufferPoolManager{
		poolSize:    poolSize,
		diskManager: dm,
		pages:       make([]*page.Page, poolSize),
		pageTable:   make(map[page.PageID]page.FrameID, poolSize),
		freeList:    make([]page.FrameID, 0, poolSize),
		replacer:    NewLRUKReplacer(poolSize, k),
		logger:      logger,
		metrics:     metrics,
	}
	for i := 0; i < poolSize; i++ {
		bpm.pages[i] = page.NewPage(page.InvalidPageID, dm.PageSize())
		bpm.freeList = append(bpm.freeList, page.FrameID(i))
	}
	logger.Debug("buffer pool initialized",
		zap.Int("pool_size", poolSize),
		zap.Int("replacer_k", k),
		zap.Int("page_size", dm.PageSize()))
	return bpm
}

// getFrame acquires a frame: from the free list when one is available,
// otherwise by evicting a replacer victim, flushing it first if dirty.
// Must be called with bpm.mu held.
func (bpm *BufferPoolManager) getFrame() (page.FrameID, error) {
	if n := len(bpm.freeList); n > 0 {
		frameID := bpm.freeList[0]
		bpm.freeList = bpm.freeList[1:]
		return frameID, nil
	}
	frameID, ok := bpm.replacer.Evict()
	if !ok {
		return 0, ErrBufferPoolFull
	}
	bpm.metrics.PoolEviction()
	victim := bpm.pages[frameID]
	if victim.IsDirty() {
		if err := bpm.diskManager.WritePage(victim.GetPageID(), victim.GetData()); err != nil {
			return 0, fmt.Errorf("failed to flush dirty victim page %d: %w", victim.GetPageID(), err)
		}
	}
	delete(bpm.pageTable, victim.GetPageID())
	return frameID, nil
}

// NewPage allocates a fresh page id, binds it to a frame and pins it.
// Returns ErrBufferPoolFull when every frame is pinned.
func (bpm *BufferPoolManager) NewPage() (*page.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, err := bpm.getFrame()
	if err != nil {
		return nil, err
	}
	pageID, err := bpm.diskManager.AllocatePage()
	if err != nil {
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, fmt.Errorf("failed to allocate new page on disk: %w", err)
	}

	frame := bpm.pages[frameID]
	frame.Reset()
	frame.SetPageID(pageID)
	frame.SetPinCount(1)

	bpm.pageTable[pageID] = frameID
	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	return frame, nil
}

// FetchPage returns the frame holding pageID, pinning it. If the page is
// not resident it is read from disk into a freshly acquired frame.
func (bpm *BufferPoolManager) FetchPage(pageID page.PageID) (*page.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frameID, ok := bpm.pageTable[pageID]; ok {
		bpm.metrics.PoolHit()
		frame := bpm.pages[frameID]
		frame.Pin()
		bpm.replacer.RecordAccess(frameID)
		bpm.replacer.SetEvictable(frameID, false)
		return frame, nil
	}
	bpm.metrics.PoolMiss()

	frameID, err := bpm.getFrame()
	if err != nil {
		return nil, err
	}
	frame := bpm.pages[frameID]
	frame.Reset()
	if err := bpm.diskManager.ReadPage(pageID, frame.GetData()); err != nil {
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, fmt.Errorf("failed to read page %d from disk: %w", pageID, err)
	}
	frame.SetPageID(pageID)
	frame.SetPinCount(1)

	bpm.pageTable[pageID] = frameID
	bpm.replacer.RecordAccess(frameID)
	bpm.replacer.SetEvictable(frameID, false)
	return frame, nil
}

// UnpinPage drops one pin on pageID. isDirty latches the dirty flag on;
// unpinning never clears it. When the pin count reaches zero the frame
// becomes evictable. Returns false when the page is not resident or its
// pin count is already zero.
func (bpm *BufferPoolManager) UnpinPage(pageID page.PageID, isDirty bool) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return false
	}
	frame := bpm.pages[frameID]
	if frame.GetPinCount() == 0 {
		return false
	}
	frame.Unpin()
	if isDirty {
		frame.SetDirty(true)
	}
	if frame.GetPinCount() == 0 {
		bpm.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes the page's bytes to disk and clears the dirty flag,
// regardless of pin count.
func (bpm *BufferPoolManager) FlushPage(pageID page.PageID) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return fmt.Errorf("%w: page %d", ErrPageNotFound, pageID)
	}
	frame := bpm.pages[frameID]
	if err := bpm.diskManager.WritePage(pageID, frame.GetData()); err != nil {
		return err
	}
	frame.SetDirty(false)
	return nil
}

// FlushAllPages flushes every dirty resident page.
func (bpm *BufferPoolManager) FlushAllPages() error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	var firstErr error
	for _, frame := range bpm.pages {
		if frame.GetPageID() == page.InvalidPageID || !frame.IsDirty() {
			continue
		}
		if err := bpm.diskManager.WritePage(frame.GetPageID(), frame.GetData()); err != nil {
			bpm.logger.Error("failed to flush page",
				zap.Int64("page_id", int64(frame.GetPageID())), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		frame.SetDirty(false)
	}
	if err := bpm.diskManager.Sync(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// DeletePage removes a page from the pool and deallocates its id.
// Deleting a non-resident page succeeds; deleting a pinned page fails.
func (bpm *BufferPoolManager) DeletePage(pageID page.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		bpm.diskManager.DeallocatePage(pageID)
		return true
	}
	frame := bpm.pages[frameID]
	if frame.GetPinCount() > 0 {
		return false
	}
	delete(bpm.pageTable, pageID)
	bpm.replacer.Remove(frameID)
	frame.Reset()
	bpm.freeList = append(bpm.freeList, frameID)
	bpm.diskManager.DeallocatePage(pageID)
	return true
}

// PinCount reports the pin count of a resident page, or -1 when the page
// is not resident. Test and assertion helper.
func (bpm *BufferPoolManager) PinCount(pageID page.PageID) int {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return -1
	}
	return bpm.pages[frameID].GetPinCount()
}
