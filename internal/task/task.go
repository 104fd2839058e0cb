// Package task implements the generation, verification and comparison
// tasks plus the runner that executes them off the caller's goroutine.
package task

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Progress reports how far a task has come. Processed never decreases;
// Path is the file most recently picked up.
type Progress struct {
	Processed int64
	Total     int64
	Path      string
}

// ProgressFunc receives progress updates. It may be called from multiple
// worker goroutines and must be cheap.
type ProgressFunc func(Progress)

// ErrCancelled is returned when a task stops on caller request.
var ErrCancelled = errors.New("task cancelled")

// EntryError records a per-file failure that did not abort the task.
type EntryError struct {
	Path string
	Err  error
}

func (e EntryError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e EntryError) Unwrap() error { return e.Err }

// progressEmitter serializes notifications from concurrent workers and
// drops stale ones, so delivered counts never decrease.
type progressEmitter struct {
	mu   sync.Mutex
	high int64
	fn   ProgressFunc
}

func (e *progressEmitter) emit(p Progress) {
	if e.fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Processed < e.high {
		return
	}
	e.high = p.Processed
	e.fn(p)
}

func poolSize(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// cancelled wraps ErrCancelled with the context cause so callers can
// errors.Is against either.
func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
}
