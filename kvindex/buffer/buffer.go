// Package buffer implements the buffer pool manager: a bounded set of
// frames, pin/unpin discipline, dirty tracking, and write-back.
//
// The BufferPoolManager is responsible for moving physical pages of data
// between disk and memory. It behaves as a cache, keeping frequently
// used pages in memory for faster access and evicting unused pages back
// out to storage, so callers can operate on a file larger than the
// resident working set.
//
// Eviction policy is deliberately "first fit over a static list, in
// insertion order" — not LRU. Tests and statistics depend on this exact,
// deterministic order (spec.md §4.3/§9).
package buffer

import (
	"log"

	"github.com/ngina/kvidx/kvindex/errs"
	"github.com/ngina/kvidx/kvindex/page"
)

// DiskManager is the paged file I/O collaborator the pool fetches pages
// through and writes dirty frames back to.
type DiskManager interface {
	ReadPage(id int, dst []byte) error
	WritePage(id int, src []byte) error
	NewPageID() (int, error)
	NumPages() int
}

// InvalidPageID marks a frame as free (holding no page).
const InvalidPageID = -1

// FrameMetadata stores metadata about a frame/page in memory.
type FrameMetadata struct {
	ID       int  // index of this frame in the buffer pool
	PageID   int  // page id currently resident, or InvalidPageID if free
	IsDirty  bool // whether the page has been modified since it was read/written
	pinCount int  // number of callers currently holding a pin on this page
}

// Frame is an in-memory container for one page: its metadata plus a
// heap-owned byte buffer of page size.
type Frame struct {
	FrameMetadata
	Data []byte
}

// IsPinned reports whether the frame's page is currently pinned. A
// pinned frame may never be evicted.
func (f *Frame) IsPinned() bool { return f.pinCount > 0 }

// PinCount reports the current pin count (observer, for tests).
func (f *Frame) PinCount() int { return f.pinCount }

func newFrame(i int) *Frame {
	return &Frame{
		FrameMetadata: FrameMetadata{ID: i, PageID: InvalidPageID},
		Data:          make([]byte, page.Size),
	}
}

func (f *Frame) zero() {
	for i := range f.Data {
		f.Data[i] = 0
	}
}

// Stats are side-channel counters exposed for diagnostics and
// benchmarking; they are not part of correctness.
type Stats struct {
	Fetches   int
	Hits      int
	Misses    int
	Evictions int
	Writes    int
}

// Pool is a fixed-size buffer pool of N frames.
type Pool struct {
	frames      []*Frame
	pageToFrame map[int]int // page id -> frame index
	disk        DiskManager
	logger      *log.Logger
	stats       Stats
}

// New constructs a pool with size frames backed by disk.
func New(disk DiskManager, size int, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	frames := make([]*Frame, size)
	for i := range frames {
		frames[i] = newFrame(i)
	}
	return &Pool{
		frames:      frames,
		pageToFrame: make(map[int]int),
		disk:        disk,
		logger:      logger,
	}
}

// Size is the fixed number of frames this pool manages.
func (p *Pool) Size() int { return len(p.frames) }

// NumPages forwards to the backing disk manager's page count, so callers
// can tell an empty file from one with an existing header page without
// reaching past the pool.
func (p *Pool) NumPages() int { return p.disk.NumPages() }

// Stats returns a snapshot of the pool's side-channel counters.
func (p *Pool) Stats() Stats { return p.stats }

// FetchPage pins and returns the frame holding pageID, reading it from
// disk (possibly evicting another frame first) if it is not already
// resident.
func (p *Pool) FetchPage(pageID int) (*Frame, error) {
	p.stats.Fetches++

	if idx, ok := p.pageToFrame[pageID]; ok {
		p.stats.Hits++
		f := p.frames[idx]
		f.pinCount++
		return f, nil
	}
	p.stats.Misses++

	idx, err := p.findFrameFor(pageID)
	if err != nil {
		return nil, err
	}
	f := p.frames[idx]
	if err := p.disk.ReadPage(pageID, f.Data); err != nil {
		return nil, err
	}
	f.PageID = pageID
	f.pinCount = 1
	f.IsDirty = false
	p.pageToFrame[pageID] = idx
	return f, nil
}

// findFrameFor locates a frame to hold a newly-fetched or newly-allocated
// page: the first free frame in insertion order, or — if none is free —
// the first unpinned frame in insertion order, flushed and evicted to
// make room.
func (p *Pool) findFrameFor(pageID int) (int, error) {
	for _, f := range p.frames {
		if f.PageID == InvalidPageID {
			return f.ID, nil
		}
	}
	for _, f := range p.frames {
		if f.IsPinned() {
			continue
		}
		if f.IsDirty {
			if err := p.flushFrame(f); err != nil {
				return 0, err
			}
			p.stats.Evictions++
		} else {
			p.stats.Evictions++
		}
		delete(p.pageToFrame, f.PageID)
		f.FrameMetadata = FrameMetadata{ID: f.ID, PageID: InvalidPageID}
		return f.ID, nil
	}
	p.logger.Printf("buffer pool exhausted: all %d frames pinned, cannot satisfy page %d", len(p.frames), pageID)
	return 0, errs.NewPoolExhaustedError(pageID)
}

// UnpinPage decrements the pin count of a resident page (never below
// zero) and ORs dirtyHint into its dirty flag. Unpinning a non-resident
// page id is a no-op.
func (p *Pool) UnpinPage(pageID int, dirtyHint bool) {
	idx, ok := p.pageToFrame[pageID]
	if !ok {
		return
	}
	f := p.frames[idx]
	if f.pinCount > 0 {
		f.pinCount--
	}
	f.IsDirty = f.IsDirty || dirtyHint
}

// NewPage allocates a new page id via the disk manager, pins it in a
// frame with zeroed bytes, and marks it dirty.
func (p *Pool) NewPage() (*Frame, int, error) {
	id, err := p.disk.NewPageID()
	if err != nil {
		return nil, 0, err
	}
	idx, err := p.findFrameFor(id)
	if err != nil {
		return nil, 0, err
	}
	f := p.frames[idx]
	f.PageID = id
	f.pinCount = 1
	f.IsDirty = true
	f.zero()
	p.pageToFrame[id] = idx
	return f, id, nil
}

func (p *Pool) flushFrame(f *Frame) error {
	if !f.IsDirty {
		return nil
	}
	if err := p.disk.WritePage(f.PageID, f.Data); err != nil {
		return err
	}
	p.stats.Writes++
	f.IsDirty = false
	return nil
}

// WritePage flushes a resident, dirty page back to disk immediately.
func (p *Pool) WritePage(pageID int) error {
	idx, ok := p.pageToFrame[pageID]
	if !ok {
		return nil
	}
	return p.flushFrame(p.frames[idx])
}

// FlushAll writes back every resident dirty frame.
func (p *Pool) FlushAll() error {
	for _, f := range p.frames {
		if f.PageID == InvalidPageID {
			continue
		}
		if err := p.flushFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes all pages. The pool holds no other releasable resources;
// the backing disk manager's lifecycle is owned by the caller.
func (p *Pool) Close() error {
	return p.FlushAll()
}
