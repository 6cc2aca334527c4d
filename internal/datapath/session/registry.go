package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/ovsdp/internal/logger"
	"github.com/marmos91/ovsdp/internal/spinlock"
)

// DefaultCapacity is the number of session slots.
const DefaultCapacity = 512

var (
	// ErrRegistryFull is returned by Open when every slot is taken.
	ErrRegistryFull = errors.New("session: registry full")

	// ErrHandleInUse is returned by Open when the handle already has a session.
	ErrHandleInUse = errors.New("session: handle already has a session")

	// ErrSessionNotFound is returned when no open session matches.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrInvariant is returned by Close when the session still holds a dump
	// cursor or a queue reference. It indicates a teardown ordering bug.
	ErrInvariant = errors.New("session: close with live state")
)

// Registry is the fixed-capacity table of open sessions.
//
// Membership is guarded by the control lock, which is shared with other
// control metadata. Nothing under that lock may block.
type Registry struct {
	lock  *spinlock.Lock
	slots []*Session
	count int

	nextPID atomic.Uint32
}

// NewRegistry returns a registry with capacity slots guarded by lock. A
// capacity of zero selects DefaultCapacity.
func NewRegistry(lock *spinlock.Lock, capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		lock:  lock,
		slots: make([]*Session, capacity),
	}
}

// Open creates a session for handle in the lowest free slot and assigns it
// a fresh session id.
//
// Ids come from a 32-bit counter. When the counter wraps, 0 and any id
// still held by an open session are skipped, so ids stay unique among open
// sessions.
func (r *Registry) Open(handle uuid.UUID) (*Session, error) {
	s := &Session{handle: handle, openedAt: time.Now()}

	r.lock.Lock()
	defer r.lock.Unlock()

	if r.count == len(r.slots) {
		return nil, fmt.Errorf("%w: %d sessions open", ErrRegistryFull, r.count)
	}
	if r.findLocked(handle) != nil {
		return nil, fmt.Errorf("%w: %s", ErrHandleInUse, handle)
	}

	cookie := -1
	for i, slot := range r.slots {
		if slot == nil {
			cookie = i
			break
		}
	}

	s.cookie = cookie
	s.pid = r.allocatePIDLocked()
	r.slots[cookie] = s
	r.count++
	return s, nil
}

func (r *Registry) allocatePIDLocked() uint32 {
	for {
		pid := r.nextPID.Add(1)
		if pid == 0 || r.pidInUseLocked(pid) {
			continue
		}
		return pid
	}
}

func (r *Registry) pidInUseLocked(pid uint32) bool {
	for _, s := range r.slots {
		if s != nil && s.pid == pid {
			return true
		}
	}
	return false
}

func (r *Registry) findLocked(handle uuid.UUID) *Session {
	seen := 0
	for _, s := range r.slots {
		if seen == r.count {
			break
		}
		if s == nil {
			continue
		}
		seen++
		if s.handle == handle {
			return s
		}
	}
	return nil
}

// Close removes s from the registry. The dump cursor and both queue
// references must already have been released; otherwise Close returns
// ErrInvariant and leaves the registry unchanged.
func (r *Registry) Close(s *Session) error {
	if s.Dump() != nil || s.EventQueue() != nil || s.PacketQueue() != nil {
		logger.Error("Session closed with live state",
			logger.PID(s.pid),
			logger.KeyCookie, s.cookie,
			"dumping", s.Dump() != nil,
			"event_queue", s.EventQueue() != nil,
			"packet_queue", s.PacketQueue() != nil)
		return fmt.Errorf("%w: pid %d", ErrInvariant, s.pid)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if s.cookie < 0 || s.cookie >= len(r.slots) || r.slots[s.cookie] != s {
		return fmt.Errorf("%w: pid %d", ErrSessionNotFound, s.pid)
	}
	r.slots[s.cookie] = nil
	r.count--
	return nil
}

// Lookup returns the session bound to handle.
func (r *Registry) Lookup(handle uuid.UUID) (*Session, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if s := r.findLocked(handle); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: handle %s", ErrSessionNotFound, handle)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.count
}

// Capacity returns the number of slots.
func (r *Registry) Capacity() int {
	return len(r.slots)
}

// Sessions returns a snapshot of the open sessions in slot order.
func (r *Registry) Sessions() []*Session {
	r.lock.Lock()
	out := make([]*Session, 0, r.count)
	for _, s := range r.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	r.lock.Unlock()
	return out
}
