// Package status provides the asynchronous completion handles through which
// go-beamline device operations report their outcome.
//
// A Status is created for one logical operation, resolved exactly once with
// success or failure by the device that owns the operation, and observed by
// a scheduler that polls it, waits on it, or registers completion callbacks.
// Resolution is idempotent: the first Finish wins and every later call is a
// no-op, so independent event streams may race to resolve the same handle.
package status

import (
	"context"
	"sync"
)

// CompletionFunc is invoked when a Status resolves. It receives the
// resolution error, nil on success.
//
// Note: callbacks run on the goroutine that resolves the Status, in a
// blocking mode. Take care with long-running implementations.
type CompletionFunc func(err error)

// Status is an asynchronous, resolve-once operation result.
type Status struct {
	mu        sync.Mutex
	done      chan struct{}
	err       error
	finished  bool
	callbacks []CompletionFunc
}

// New creates an unresolved Status.
func New() *Status {
	return &Status{done: make(chan struct{})}
}

// Finish resolves the Status; a nil err marks success. It returns true when
// this call performed the resolution and false when the Status was already
// resolved, in which case err is discarded.
func (st *Status) Finish(err error) bool {
	st.mu.Lock()
	if st.finished {
		st.mu.Unlock()
		return false
	}

	st.finished = true
	st.err = err
	callbacks := st.callbacks
	st.callbacks = nil
	close(st.done)
	st.mu.Unlock()

	for _, fn := range callbacks {
		fn(err)
	}

	return true
}

// Done reports whether the Status has been resolved.
func (st *Status) Done() bool {
	select {
	case <-st.done:
		return true
	default:
		return false
	}
}

// Err returns the resolution error. It is nil while the Status is pending
// and nil after a successful resolution; use Done to tell the two apart.
func (st *Status) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.err
}

// Succeeded reports whether the Status resolved successfully.
func (st *Status) Succeeded() bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.finished && st.err == nil
}

// Wait blocks until the Status resolves or ctx is done. It returns the
// resolution error (nil on success), or the context error when ctx ends the
// wait first.
func (st *Status) Wait(ctx context.Context) error {
	select {
	case <-st.done:
		return st.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnComplete registers fn to run when the Status resolves. When the Status
// is already resolved, fn runs synchronously before OnComplete returns.
func (st *Status) OnComplete(fn CompletionFunc) {
	st.mu.Lock()
	if !st.finished {
		st.callbacks = append(st.callbacks, fn)
		st.mu.Unlock()
		return
	}
	err := st.err
	st.mu.Unlock()

	fn(err)
}
