package session

import (
	"errors"

	"github.com/marmos91/ovsdp/internal/protocol/netlink"
)

// ErrNotDumpRequest is returned by StartDump when the request does not
// carry the dump flag.
var ErrNotDumpRequest = errors.New("session: request does not ask for a dump")

// Cursor is the progress marker of an enumeration. Each enumeration kind
// has its own cursor type; the handler that started the dump is the only
// one that interprets it.
type Cursor interface {
	cursor()
}

// BucketCursor walks a hashed collection: the current bucket and the
// position within it. Positions are resumption hints, not snapshot
// indices: entries added or removed between reads may be skipped or
// repeated.
type BucketCursor struct {
	Bucket uint32
	Index  uint32
}

// SingletonCursor tracks a dump that has exactly one record.
type SingletonCursor struct {
	Done bool
}

// IndexCursor walks an ordered collection by position.
type IndexCursor struct {
	Next int
}

func (BucketCursor) cursor()    {}
func (SingletonCursor) cursor() {}
func (IndexCursor) cursor()     {}

// DumpState is the per-session state of an active enumeration: the request
// that started it and the handler's progress marker.
type DumpState struct {
	Request netlink.Message
	Raw     []byte
	Cursor  Cursor
}

// Phase is the state of a session's dump state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseActive
)

func (p Phase) String() string {
	if p == PhaseActive {
		return "active"
	}
	return "idle"
}

// StartDump moves the session to the active phase for req, discarding any
// enumeration already in progress. raw is the request as received; it is
// copied so handlers can re-read its attributes on later reads.
func (s *Session) StartDump(req netlink.Message, raw []byte, initial Cursor) (*DumpState, error) {
	if !req.Flags.Has(netlink.FlagDump) {
		return nil, ErrNotDumpRequest
	}
	s.FreeDump()

	end := min(int(req.Len), len(raw))
	state := &DumpState{
		Request: req,
		Raw:     append([]byte(nil), raw[:end]...),
		Cursor:  initial,
	}
	s.dump.Store(state)
	return state, nil
}

// Dump returns the active enumeration, or nil when idle.
func (s *Session) Dump() *DumpState {
	return s.dump.Load()
}

// Phase reports whether an enumeration is in progress.
func (s *Session) Phase() Phase {
	if s.dump.Load() != nil {
		return PhaseActive
	}
	return PhaseIdle
}

// FreeDump returns the session to idle. It reports whether a cursor was
// freed; freeing an idle session is a no-op.
func (s *Session) FreeDump() bool {
	return s.dump.Swap(nil) != nil
}
