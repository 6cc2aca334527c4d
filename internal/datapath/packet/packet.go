// Package packet implements the per-session missed-packet queues: packets
// the forwarding engine could not match are queued for the session that
// subscribed with the matching upcall pid and read back as ovs_packet MISS
// messages.
package packet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/ovsdp/internal/datapath/pend"
	"github.com/marmos91/ovsdp/internal/datapath/ring"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/internal/protocol/ovs"
)

// DefaultDepth is the per-session queue depth used when none is configured.
const DefaultDepth = 256

var (
	// ErrNotSubscribed is returned when the session has no packet queue.
	ErrNotSubscribed = errors.New("packet: session not subscribed")

	// ErrPIDMismatch is returned by Subscribe when the requested pid is not
	// the calling session's.
	ErrPIDMismatch = errors.New("packet: pid does not belong to session")

	// ErrNoSubscriber is returned by Enqueue when no session listens on pid.
	ErrNoSubscriber = errors.New("packet: no subscriber for pid")

	// ErrBufferTooSmall is returned by Read when the next upcall does not
	// fit. The upcall is dropped and counted as lost, as a truncated
	// netlink message would be, so later reads see the rest of the queue.
	ErrBufferTooSmall = errors.New("packet: buffer too small for upcall")

	// ErrWaitPending is returned by Wait when a wait is already outstanding.
	ErrWaitPending = errors.New("packet: wait already pending")
)

// Upcall is a packet handed to user space.
type Upcall struct {
	Cmd       uint8 // ovs.PacketCmdMiss or ovs.PacketCmdAction
	DpIfIndex int32
	Packet    []byte
	Key       []byte
	Userdata  []byte
}

// Queue is one session's missed-packet queue.
type Queue struct {
	mu      sync.Mutex
	pid     uint32
	entries *ring.Ring[Upcall]
	pending *pend.Future
}

// Depth returns the number of queued upcalls.
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

// Option configures a Table.
type Option func(*Table)

// WithDepth sets the per-session queue depth.
func WithDepth(depth int) Option {
	return func(t *Table) {
		if depth > 0 {
			t.depth = depth
		}
	}
}

// WithDropCounter counts upcalls dropped on overflow.
func WithDropCounter(c prometheus.Counter) Option {
	return func(t *Table) { t.drops = c }
}

// WithLossHook registers fn to be called for every upcall that is lost,
// whether dropped on overflow or undeliverable.
func WithLossHook(fn func()) Option {
	return func(t *Table) { t.onLost = fn }
}

// Table owns every session's packet queue, keyed by upcall pid.
type Table struct {
	mu     sync.RWMutex
	queues map[uint32]*Queue

	depth  int
	drops  prometheus.Counter
	onLost func()
}

// NewTable returns an empty Table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		queues: make(map[uint32]*Queue),
		depth:  DefaultDepth,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Subscribe joins (join=true) or leaves the missed-packet stream for pid,
// which must be the session's own id.
func (t *Table) Subscribe(s *session.Session, pid uint32, join bool) error {
	if pid != s.PID() {
		return fmt.Errorf("%w: pid %d, session %d", ErrPIDMismatch, pid, s.PID())
	}
	if !join {
		t.remove(s)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.queues[pid]; ok {
		return nil
	}
	q := &Queue{pid: pid, entries: ring.New[Upcall](t.depth)}
	if !s.AttachPacketQueue(q) {
		return fmt.Errorf("packet: session %d already holds a packet queue", pid)
	}
	t.queues[pid] = q
	return nil
}

// Cleanup releases the session's queue and cancels an outstanding wait.
func (t *Table) Cleanup(s *session.Session) {
	t.remove(s)
}

func (t *Table) remove(s *session.Session) {
	t.mu.Lock()
	q, ok := t.queues[s.PID()]
	delete(t.queues, s.PID())
	t.mu.Unlock()

	s.DetachPacketQueue()
	if !ok {
		return
	}
	q.mu.Lock()
	if q.pending != nil {
		q.pending.Cancel()
		q.pending = nil
	}
	q.entries.Reset()
	q.mu.Unlock()
}

func (t *Table) queue(pid uint32) (*Queue, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	q, ok := t.queues[pid]
	return q, ok
}

// Wait returns a future fulfilled when an upcall is queued for s.
func (t *Table) Wait(s *session.Session) (*pend.Future, error) {
	q, ok := t.queue(s.PID())
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", ErrNotSubscribed, s.PID())
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

// Waiting reports whether s has an outstanding packet wait.
func (t *Table) Waiting(s *session.Session) bool {
	q, ok := t.queue(s.PID())
	return ok && q.Waiting()
}

// Read encodes the oldest queued upcall for s into buf as an ovs_packet
// message and returns its length. It returns 0 when nothing is queued.
// Either way the upcall leaves the queue.
func (t *Table) Read(s *session.Session, buf []byte) (int, error) {
	q, ok := t.queue(s.PID())
	if !ok {
		return 0, fmt.Errorf("%w: pid %d", ErrNotSubscribed, s.PID())
	}

	q.mu.Lock()
	up, ok := q.entries.Pop()
	q.mu.Unlock()
	if !ok {
		return 0, nil
	}

	msg, err := encodeUpcall(s.PID(), up, len(buf))
	if err != nil {
		if t.drops != nil {
			t.drops.Inc()
		}
		t.lost()
		return 0, fmt.Errorf("%w: %v", ErrBufferTooSmall, err)
	}
	return copy(buf, msg), nil
}

func encodeUpcall(pid uint32, up Upcall, limit int) ([]byte, error) {
	cmd := up.Cmd
	if cmd == 0 {
		cmd = ovs.PacketCmdMiss
	}
	hdr := netlink.Message{
		Header: netlink.Header{
			Len:  netlink.MessageLen,
			Type: ovs.FamilyPacket,
			PID:  pid,
		},
		Genl:      netlink.GenlHeader{Cmd: cmd, Version: ovs.PacketVersion},
		DpIfIndex: up.DpIfIndex,
	}
	b := netlink.NewMessageBuilder(limit, hdr)
	b.PutBytes(ovs.PacketAttrPacket, up.Packet)
	b.PutBytes(ovs.PacketAttrKey, up.Key)
	if len(up.Userdata) > 0 {
		b.PutBytes(ovs.PacketAttrUserdata, up.Userdata)
	}
	return b.Finish()
}

// Enqueue queues up for the session subscribed on pid and wakes its
// waiter. Upcalls for pids nobody subscribed to are lost.
func (t *Table) Enqueue(pid uint32, up Upcall) error {
	q, ok := t.queue(pid)
	if !ok {
		t.lost()
		return fmt.Errorf("%w: %d", ErrNoSubscriber, pid)
	}

	q.mu.Lock()
	dropped := q.entries.Push(up)
	if q.pending != nil {
		q.pending.Fulfill()
		q.pending = nil
	}
	q.mu.Unlock()

	if dropped {
		if t.drops != nil {
			t.drops.Inc()
		}
		t.lost()
	}
	return nil
}

func (t *Table) lost() {
	if t.onLost != nil {
		t.onLost()
	}
}
