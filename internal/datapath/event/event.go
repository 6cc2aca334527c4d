// Package event implements the per-session port event queues behind the
// control family's subscribe, pend and read-event commands.
//
// A Bus fans published port events out to every subscribed session whose
// mask matches. Publishing never blocks: when a session's queue is full
// its oldest entry is dropped.
package event

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/ovsdp/internal/datapath/pend"
	"github.com/marmos91/ovsdp/internal/datapath/ring"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// Status is the kind of port event. Values are bit flags so subscriptions
// can select a subset.
type Status uint32

const (
	StatusConnect Status = 1 << iota
	StatusDisconnect
	StatusLinkUp
	StatusLinkDown

	MaskAll = StatusConnect | StatusDisconnect | StatusLinkUp | StatusLinkDown
)

func (s Status) String() string {
	var parts []string
	for _, f := range []struct {
		bit  Status
		name string
	}{
		{StatusConnect, "connect"},
		{StatusDisconnect, "disconnect"},
		{StatusLinkUp, "link-up"},
		{StatusLinkDown, "link-down"},
	} {
		if s&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Removed reports whether the event announces that the port went away.
func (s Status) Removed() bool {
	return s&(StatusDisconnect|StatusLinkDown) != 0
}

// Entry is one queued port event. It carries the port's identity so the
// event can be rendered after the port itself is gone.
type Entry struct {
	PortNo uint32
	Name   string
	Type   ovs.PortType
	Status Status
}

// DefaultDepth is the per-session queue depth used when none is configured.
const DefaultDepth = 64

var (
	// ErrNotSubscribed is returned when the session has no event queue.
	ErrNotSubscribed = errors.New("event: session not subscribed")

	// ErrWaitPending is returned by Wait when a wait is already outstanding.
	ErrWaitPending = errors.New("event: wait already pending")
)

// Queue is one session's subscription.
type Queue struct {
	mu      sync.Mutex
	dpNo    int32
	mask    Status
	entries *ring.Ring[Entry]
	pending *pend.Future
	dropped uint64
}

// Depth returns the number of queued events.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// Waiting reports whether a caller is parked on the queue.
func (q *Queue) Waiting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending != nil && !q.pending.Completed()
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Option configures a Bus.
type Option func(*Bus)

// WithDepth sets the per-session queue depth.
func WithDepth(depth int) Option {
	return func(b *Bus) {
		if depth > 0 {
			b.depth = depth
		}
	}
}

// WithDropCounter counts events dropped on overflow.
func WithDropCounter(c prometheus.Counter) Option {
	return func(b *Bus) { b.drops = c }
}

// Bus owns every session's event queue.
type Bus struct {
	mu     sync.RWMutex
	queues map[uint32]*Queue // by session pid

	depth int
	drops prometheus.Counter
}

// NewBus returns an empty Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		queues: make(map[uint32]*Queue),
		depth:  DefaultDepth,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe creates the session's event queue for datapath dpNo, or
// updates the mask of an existing one.
func (b *Bus) Subscribe(s *session.Session, dpNo int32, mask Status) error {
	if mask&MaskAll == 0 {
		return fmt.Errorf("event: empty subscription mask %#x", uint32(mask))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.queues[s.PID()]; ok {
		q.mu.Lock()
		q.mask = mask & MaskAll
		q.dpNo = dpNo
		q.mu.Unlock()
		return nil
	}

	q := &Queue{
		dpNo:    dpNo,
		mask:    mask & MaskAll,
		entries: ring.New[Entry](b.depth),
	}
	if !s.AttachEventQueue(q) {
		return fmt.Errorf("event: session %d already holds an event queue", s.PID())
	}
	b.queues[s.PID()] = q
	return nil
}

// Unsubscribe removes the session's event queue. Queued events are
// discarded and an outstanding wait is canceled.
func (b *Bus) Unsubscribe(s *session.Session) error {
	if !b.remove(s) {
		return ErrNotSubscribed
	}
	return nil
}

// Cleanup releases everything the bus holds for s. It is safe to call for
// sessions that never subscribed.
func (b *Bus) Cleanup(s *session.Session) {
	b.remove(s)
}

func (b *Bus) remove(s *session.Session) bool {
	b.mu.Lock()
	q, ok := b.queues[s.PID()]
	delete(b.queues, s.PID())
	b.mu.Unlock()

	s.DetachEventQueue()
	if !ok {
		return false
	}

	q.mu.Lock()
	if q.pending != nil {
		q.pending.Cancel()
		q.pending = nil
	}
	q.entries.Reset()
	q.mu.Unlock()
	return true
}

func (b *Bus) queue(s *session.Session) (*Queue, error) {
	b.mu.RLock()
	q, ok := b.queues[s.PID()]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", ErrNotSubscribed, s.PID())
	}
	return q, nil
}

// Wait returns a future fulfilled when an event is available. If events
// are already queued the future is fulfilled immediately.
func (b *Bus) Wait(s *session.Session) (*pend.Future, error) {
	q, err := b.queue(s)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.entries.Len() > 0 {
		return pend.Fulfilled(), nil
	}
	if q.pending != nil && !q.pending.Completed() {
		return nil, ErrWaitPending
	}
	q.pending = pend.New()
	return q.pending, nil
}

// Pop removes the oldest queued event for s.
func (b *Bus) Pop(s *session.Session) (Entry, bool) {
	q, err := b.queue(s)
	if err != nil {
		return Entry{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Pop()
}

// Peek returns the oldest queued event for s without removing it.
func (b *Bus) Peek(s *session.Session) (Entry, bool) {
	q, err := b.queue(s)
	if err != nil {
		return Entry{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Peek()
}

// Publish delivers e to every subscriber whose mask matches.
func (b *Bus) Publish(e Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, q := range b.queues {
		q.mu.Lock()
		if q.mask&e.Status != 0 {
			if q.entries.Push(e) {
				q.dropped++
				if b.drops != nil {
					b.drops.Inc()
				}
			}
			if q.pending != nil {
				q.pending.Fulfill()
				q.pending = nil
			}
		}
		q.mu.Unlock()
	}
}

// Waiting reports whether s has an outstanding event wait.
func (b *Bus) Waiting(s *session.Session) bool {
	q, err := b.queue(s)
	return err == nil && q.Waiting()
}

// Subscribers returns the number of subscribed sessions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.queues)
}
