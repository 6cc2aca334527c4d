// Package spinlock provides a non-blocking mutual-exclusion primitive for
// short critical sections over shared control metadata.
//
// Code holding a Lock must never block, sleep, or acquire another lock
// that could block: waiters spin (yielding the processor between attempts)
// rather than parking, so a long critical section stalls every caller.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// Lock is a test-and-set spin lock. The zero value is unlocked.
type Lock struct {
	state atomic.Uint32
}

// Lock acquires the lock, spinning until it is available.
func (l *Lock) Lock() {
	for !l.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *Lock) TryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked Lock panics.
func (l *Lock) Unlock() {
	if !l.state.CompareAndSwap(1, 0) {
		panic("spinlock: unlock of unlocked lock")
	}
}

// Do runs fn with the lock held.
func (l *Lock) Do(fn func()) {
	l.Lock()
	defer l.Unlock()
	fn()
}
