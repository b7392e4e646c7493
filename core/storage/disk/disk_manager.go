// Package disk implements the file-backed disk manager. It hands out
// page ids, reads and writes fixed-size pages at their file offsets and
// keeps a free list of deallocated ids for reuse.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sushant-115/sukunadb/core/storage/page"
)

var (
	ErrIO           = errors.New("i/o error")
	ErrFileNotOpen  = errors.New("database file not open")
	ErrInvalidPage  = errors.New("invalid page id")
	ErrBadPageSize  = errors.New("page buffer size does not match disk manager page size")
	ErrFileTooSmall = errors.New("database file is smaller than requested page")
)

// DiskManager performs page-granular I/O against a single database file.
// Reads are blocking and idempotent; writes are page-sized and atomic at
// the granularity the OS provides for a single WriteAt.
type DiskManager struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	pageSize int
	numPages int64
	freeList []page.PageID
	limiter  *rate.Limiter // optional write throttle
	logger   *zap.Logger
}

// Option configures a DiskManager.
type Option func(*DiskManager)

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(dm *DiskManager) {
		if l != nil {
			dm.logger = l
		}
	}
}

// WithWriteLimit throttles page writes to roughly bytesPerSec. Zero or
// negative disables throttling.
func WithWriteLimit(bytesPerSec int64, burst int) Option {
	return func(dm *DiskManager) {
		if bytesPerSec > 0 {
			if burst < dm.pageSize {
				burst = dm.pageSize
			}
			dm.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
		}
	}
}

// NewDiskManager opens (or creates) the database file at filePath.
func NewDiskManager(filePath string, pageSize int, opts ...Option) (*DiskManager, error) {
	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("%w: opening file %s: %v", ErrIO, filePath, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stating file %s: %v", ErrIO, filePath, err)
	}
	dm := &DiskManager{
		filePath: filePath,
		file:     file,
		pageSize: pageSize,
		numPages: fi.Size() / int64(pageSize),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(dm)
	}
	dm.logger.Debug("disk manager opened",
		zap.String("path", filePath),
		zap.Int("page_size", pageSize),
		zap.Int64("pages", dm.numPages))
	return dm, nil
}

// PageSize returns the configured page size.
func (dm *DiskManager) PageSize() int { return dm.pageSize }

// AllocatePage hands out a page id, reusing deallocated ids before
// extending the file. Allocation of fresh ids is monotonic.
func (dm *DiskManager) AllocatePage() (page.PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return page.InvalidPageID, ErrFileNotOpen
	}
	if n := len(dm.freeList); n > 0 {
		id := dm.freeList[n-1]
		dm.freeList = dm.freeList[:n-1]
		return id, nil
	}
	id := page.PageID(dm.numPages)
	// Extend the file so a later ReadPage of this id does not hit EOF.
	empty := make([]byte, dm.pageSize)
	if _, err := dm.file.WriteAt(empty, int64(id)*int64(dm.pageSize)); err != nil {
		return page.InvalidPageID, fmt.Errorf("%w: extending file for page %d: %v", ErrIO, id, err)
	}
	dm.numPages++
	return id, nil
}

// DeallocatePage returns a page id to the free list.
func (dm *DiskManager) DeallocatePage(id page.PageID) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if id == page.InvalidPageID {
		return
	}
	dm.freeList = append(dm.freeList, id)
}

// ReadPage reads the page's bytes into buf, which must be exactly one
// page long.
func (dm *DiskManager) ReadPage(id page.PageID, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrFileNotOpen
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, id)
	}
	if len(buf) != dm.pageSize {
		return fmt.Errorf("%w: got %d, want %d", ErrBadPageSize, len(buf), dm.pageSize)
	}
	offset := int64(id) * int64(dm.pageSize)
	n, err := dm.file.ReadAt(buf, offset)
	if err != nil {
		if err == io.EOF && n < dm.pageSize {
			return fmt.Errorf("%w: page %d", ErrFileTooSmall, id)
		}
		return fmt.Errorf("%w: reading page %d: %v", ErrIO, id, err)
	}
	return nil
}

// WritePage writes the page's bytes from buf, which must be exactly one
// page long. Durability is deferred to Sync.
func (dm *DiskManager) WritePage(id page.PageID, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrFileNotOpen
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPage, id)
	}
	if len(buf) != dm.pageSize {
		return fmt.Errorf("%w: got %d, want %d", ErrBadPageSize, len(buf), dm.pageSize)
	}
	if dm.limiter != nil {
		if err := dm.limiter.WaitN(context.Background(), dm.pageSize); err != nil {
			return fmt.Errorf("write limiter: %w", err)
		}
	}
	offset := int64(id) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: writing page %d: %v", ErrIO, id, err)
	}
	return nil
}

// Sync flushes file contents to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	return dm.file.Sync()
}

// ShutDown syncs and closes the database file. Further I/O fails with
// ErrFileNotOpen.
func (dm *DiskManager) ShutDown() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	if err := dm.file.Sync(); err != nil {
		dm.logger.Error("sync on shutdown failed", zap.Error(err))
	}
	err := dm.file.Close()
	dm.file = nil
	return err
}
