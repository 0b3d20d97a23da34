// Package disk implements the paged file manager: fixed-size page I/O
// over a single backing file, page-id allocation, and zero-fill on
// extend.
//
// This generalizes wtfDB's io.DiskManager (whose reference
// implementation left WritePage/ReadPage as no-ops) into a real
// implementation backed by *os.File, following the same interface shape
// the teacher declared.
package disk

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ngina/kvidx/kvindex/errs"
	"github.com/ngina/kvidx/kvindex/page"
)

// Manager is a paged file manager over a single backing file. Page id 0
// is reserved for the tree header.
type Manager struct {
	file       *os.File
	nextPageID int
	locked     bool
}

// Open opens path for read/write, creating it if it does not exist, and
// takes an advisory exclusive lock on it — enforcing the single-writer
// model at the process level instead of leaving it an unstated
// assumption. nextPageID is derived from the current file size.
func Open(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errs.NewIOError("open", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errs.NewIOError("flock", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.NewIOError("stat", err)
	}
	return &Manager{
		file:       f,
		nextPageID: int(info.Size() / page.Size),
		locked:     true,
	}, nil
}

// ReadPage seeks to id*Size and reads Size bytes into dst. If the file
// ends before a full page is available, the remainder of dst is
// zero-padded.
func (m *Manager) ReadPage(id int, dst []byte) error {
	if len(dst) != page.Size {
		return errs.NewIOError("read", errNotAPageBuf)
	}
	n, err := m.file.ReadAt(dst, int64(id)*page.Size)
	if err != nil && err != io.EOF {
		return errs.NewIOError("read", err)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage seeks to id*Size, writes Size bytes from src, and syncs the
// file to stable storage.
func (m *Manager) WritePage(id int, src []byte) error {
	if len(src) != page.Size {
		return errs.NewIOError("write", errNotAPageBuf)
	}
	if _, err := m.file.WriteAt(src, int64(id)*page.Size); err != nil {
		return errs.NewIOError("write", err)
	}
	if err := m.file.Sync(); err != nil {
		return errs.NewIOError("sync", err)
	}
	return nil
}

// NewPageID returns the next page id, increments the counter, and
// zero-initializes the new page on disk.
func (m *Manager) NewPageID() (int, error) {
	id := m.nextPageID
	m.nextPageID++
	zero := make([]byte, page.Size)
	if err := m.WritePage(id, zero); err != nil {
		return 0, err
	}
	return id, nil
}

// NumPages reports the current number of allocated pages, including the
// header page.
func (m *Manager) NumPages() int { return m.nextPageID }

// Close releases the advisory lock and closes the backing file.
func (m *Manager) Close() error {
	if m.locked {
		unix.Flock(int(m.file.Fd()), unix.LOCK_UN)
		m.locked = false
	}
	if err := m.file.Close(); err != nil {
		return errs.NewIOError("close", err)
	}
	return nil
}

var errNotAPageBuf = errNotAPageBufT{}

type errNotAPageBufT struct{}

func (errNotAPageBufT) Error() string { return "buffer is not exactly one page in size" }
