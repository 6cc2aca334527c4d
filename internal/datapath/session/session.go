// Package session tracks the sessions open on the control device: their
// identity, exclusive-use flag, dump cursor and queue references.
package session

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// QueueRef is a session's reference to a queue owned by an external
// collaborator (the event queue or the packet queue).
type QueueRef interface {
	// Depth returns the number of entries waiting to be read.
	Depth() int
}

type queueBox struct {
	ref QueueRef
}

// Session is the state of one open control channel.
//
// The dump cursor is only touched by the holder of the exclusive-use flag
// (or by teardown once the channel is gone); queue references are attached
// and detached by the queue collaborators, possibly from other goroutines.
type Session struct {
	pid      uint32
	cookie   int
	handle   uuid.UUID
	openedAt time.Time

	inUse atomic.Bool
	dump  atomic.Pointer[DumpState]

	eventQueue  atomic.Pointer[queueBox]
	packetQueue atomic.Pointer[queueBox]
}

// PID returns the session id.
func (s *Session) PID() uint32 { return s.pid }

// Cookie returns the session's slot in the registry.
func (s *Session) Cookie() int { return s.cookie }

// Handle returns the channel handle the session is bound to.
func (s *Session) Handle() uuid.UUID { return s.handle }

// OpenedAt returns when the session was opened.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// TryAcquire atomically sets the exclusive-use flag. It reports false when
// another operation is already in flight on the session.
func (s *Session) TryAcquire() bool {
	return s.inUse.CompareAndSwap(false, true)
}

// Release clears the exclusive-use flag.
func (s *Session) Release() {
	s.inUse.Store(false)
}

// InUse reports whether an operation is in flight.
func (s *Session) InUse() bool {
	return s.inUse.Load()
}

// AttachEventQueue records the session's event queue. It reports false if
// one is already attached.
func (s *Session) AttachEventQueue(q QueueRef) bool {
	return s.eventQueue.CompareAndSwap(nil, &queueBox{ref: q})
}

// EventQueue returns the attached event queue, or nil.
func (s *Session) EventQueue() QueueRef {
	if b := s.eventQueue.Load(); b != nil {
		return b.ref
	}
	return nil
}

// DetachEventQueue removes and returns the event queue reference.
func (s *Session) DetachEventQueue() QueueRef {
	if b := s.eventQueue.Swap(nil); b != nil {
		return b.ref
	}
	return nil
}

// AttachPacketQueue records the session's missed-packet queue. It reports
// false if one is already attached.
func (s *Session) AttachPacketQueue(q QueueRef) bool {
	return s.packetQueue.CompareAndSwap(nil, &queueBox{ref: q})
}

// PacketQueue returns the attached packet queue, or nil.
func (s *Session) PacketQueue() QueueRef {
	if b := s.packetQueue.Load(); b != nil {
		return b.ref
	}
	return nil
}

// DetachPacketQueue removes and returns the packet queue reference.
func (s *Session) DetachPacketQueue() QueueRef {
	if b := s.packetQueue.Swap(nil); b != nil {
		return b.ref
	}
	return nil
}

// Info is a point-in-time description of a session.
type Info struct {
	PID         uint32    `json:"pid"`
	Cookie      int       `json:"cookie"`
	Handle      string    `json:"handle"`
	OpenedAt    time.Time `json:"opened_at"`
	InUse       bool      `json:"in_use"`
	Dumping     bool      `json:"dumping"`
	EventDepth  int       `json:"event_depth"`
	PacketDepth int       `json:"packet_depth"`
	Subscribed  []string  `json:"subscribed,omitempty"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	info := Info{
		PID:      s.pid,
		Cookie:   s.cookie,
		Handle:   s.handle.String(),
		OpenedAt: s.openedAt,
		InUse:    s.InUse(),
		Dumping:  s.dump.Load() != nil,
	}
	if q := s.EventQueue(); q != nil {
		info.EventDepth = q.Depth()
		info.Subscribed = append(info.Subscribed, "events")
	}
	if q := s.PacketQueue(); q != nil {
		info.PacketDepth = q.Depth()
		info.Subscribed = append(info.Subscribed, "packets")
	}
	return info
}
