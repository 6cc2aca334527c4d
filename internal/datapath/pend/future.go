// Package pend implements the cancellable waits behind the "pend event" and
// "pend packet" control commands.
//
// A Future is registered by a queue on behalf of a session, completed by
// whoever publishes the next entry (Fulfill) or by session teardown
// (Cancel), and awaited by the control entry point after it has released
// the session's exclusive-use flag.
package pend

import (
	"context"
	"errors"
	"sync"
)

// ErrCanceled is returned by Wait when the owning session was torn down
// while the wait was outstanding.
var ErrCanceled = errors.New("pend: wait canceled")

type outcome uint8

const (
	outcomePending outcome = iota
	outcomeFulfilled
	outcomeCanceled
)

// Future is a one-shot completion. The zero value is not usable; use New.
type Future struct {
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	outcome outcome
}

// New returns a pending Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Fulfilled returns a Future that has already completed successfully.
func Fulfilled() *Future {
	f := New()
	f.Fulfill()
	return f
}

// Fulfill completes the future successfully. It reports whether this call
// completed it; later calls and calls after Cancel are no-ops.
func (f *Future) Fulfill() bool {
	return f.complete(outcomeFulfilled)
}

// Cancel completes the future with ErrCanceled. It reports whether this
// call completed it.
func (f *Future) Cancel() bool {
	return f.complete(outcomeCanceled)
}

func (f *Future) complete(o outcome) bool {
	won := false
	f.once.Do(func() {
		f.mu.Lock()
		f.outcome = o
		f.mu.Unlock()
		close(f.done)
		won = true
	})
	return won
}

// Done returns a channel closed once the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Completed reports whether the future has been fulfilled or canceled.
func (f *Future) Completed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future completes or ctx is done. It returns nil
// when fulfilled, ErrCanceled when canceled, and ctx.Err() when the
// context ends first.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		// Completion and context expiry can race; completion wins.
		select {
		case <-f.done:
			return f.result()
		default:
			return ctx.Err()
		}
	}
}

func (f *Future) result() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcome == outcomeCanceled {
		return ErrCanceled
	}
	return nil
}
