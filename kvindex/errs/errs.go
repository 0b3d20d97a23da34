// Package errs defines the fatal error kinds the index surfaces to callers.
//
// Per the error handling design: I/O failure, pool exhaustion, and
// structural corruption are all fatal to the enclosing operation and are
// returned (never panicked) as one of the typed errors below, wrapped
// with github.com/pkg/errors so the underlying cause survives. Not-found
// and duplicate-key-on-insert are not errors; they are ordinary negative
// results returned by the caller-facing operations.
package errs

import "github.com/pkg/errors"

// IOError wraps a failure from the paged file manager (open, seek, read,
// write). It is fatal to the calling tree operation.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return "kvindex: i/o error during " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

func NewIOError(op string, cause error) *IOError {
	return &IOError{Op: op, Err: errors.WithStack(cause)}
}

// PoolExhaustedError indicates every frame in the buffer pool is pinned
// and none can be evicted to satisfy a fetch or allocation. This signals
// a bug in the tree code's pin discipline, not a data condition.
type PoolExhaustedError struct {
	PageID int
}

func (e *PoolExhaustedError) Error() string {
	return errors.Errorf("kvindex: buffer pool exhausted, all frames pinned (requested page %d)", e.PageID).Error()
}

func NewPoolExhaustedError(pageID int) *PoolExhaustedError {
	return &PoolExhaustedError{PageID: pageID}
}

// CorruptionError indicates structural corruption detected during
// traversal: an invalid child id where a valid one is required, a cycle
// in the leaf chain, or depth beyond a safety bound.
type CorruptionError struct {
	Reason string
}

func (e *CorruptionError) Error() string {
	return "kvindex: structural corruption detected: " + e.Reason
}

func NewCorruptionError(reason string) *CorruptionError {
	return &CorruptionError{Reason: reason}
}

// Wrap attaches a message to an existing error, preserving it for
// errors.Is/errors.As the way github.com/pkg/errors callers expect.
func Wrap(err error, message string) error {
	return errors.WithMessage(err, message)
}
