package control

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/marmos91/ovsdp/internal/datapath/pend"
	"github.com/marmos91/ovsdp/internal/datapath/session"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
)

// ============================================================================
// Device operations
// ============================================================================

// DevOp is the shape of a control call. It decides which buffers must be
// present and how the request is framed. Values are bit flags so a command
// can list the operations it accepts.
type DevOp uint8

const (
	DevOpTransact DevOp = 1 << iota
	DevOpWrite
	DevOpRead
	DevOpReadEvent
	DevOpReadPacket
)

// readOps are the operations whose request is built from session state
// rather than caller bytes.
const readOps = DevOpRead | DevOpReadEvent | DevOpReadPacket

func (d DevOp) String() string {
	var parts []string
	for _, op := range []struct {
		bit  DevOp
		name string
	}{
		{DevOpTransact, "transact"},
		{DevOpWrite, "write"},
		{DevOpRead, "read"},
		{DevOpReadEvent, "read_event"},
		{DevOpReadPacket, "read_packet"},
	} {
		if d&op.bit != 0 {
			parts = append(parts, op.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Code is a raw control code as issued on the device.
type Code uint32

// Control codes are laid out like Windows CTL_CODE values:
// device type << 16 | access << 14 | function << 2 | method.
const (
	deviceType      = 45000
	functionBase    = 0x100
	methodInDirect  = 1
	methodOutDirect = 2
	accessRead      = 1
	accessWrite     = 2
)

const (
	CodeRead       Code = deviceType<<16 | accessRead<<14 | (functionBase+0)<<2 | methodOutDirect
	CodeReadEvent  Code = deviceType<<16 | accessRead<<14 | (functionBase+1)<<2 | methodOutDirect
	CodeReadPacket Code = deviceType<<16 | accessRead<<14 | (functionBase+2)<<2 | methodOutDirect
	CodeWrite      Code = deviceType<<16 | accessRead<<14 | (functionBase+3)<<2 | methodInDirect
	CodeTransact   Code = deviceType<<16 | (accessRead|accessWrite)<<14 | (functionBase+4)<<2 | methodOutDirect
)

// DevOp classifies the code.
func (c Code) DevOp() (DevOp, bool) {
	switch c {
	case CodeTransact:
		return DevOpTransact, true
	case CodeWrite:
		return DevOpWrite, true
	case CodeRead:
		return DevOpRead, true
	case CodeReadEvent:
		return DevOpReadEvent, true
	case CodeReadPacket:
		return DevOpReadPacket, true
	}
	return 0, false
}

// CodeFor returns the control code that issues op.
func CodeFor(op DevOp) Code {
	switch op {
	case DevOpTransact:
		return CodeTransact
	case DevOpWrite:
		return CodeWrite
	case DevOpRead:
		return CodeRead
	case DevOpReadEvent:
		return CodeReadEvent
	case DevOpReadPacket:
		return CodeReadPacket
	}
	return 0
}

func (c Code) String() string {
	if op, ok := c.DevOp(); ok {
		return op.String()
	}
	return fmt.Sprintf("code(%#x)", uint32(c))
}

// ============================================================================
// Requests and handlers
// ============================================================================

// Request is one validated control call as seen by a handler.
type Request struct {
	DevOp   DevOp
	Session *session.Session
	Msg     netlink.Message

	// Input is the caller's request bytes. It is nil for read operations,
	// whose handlers work from session state.
	Input []byte

	// Output is the caller's reply buffer, sized to its capacity.
	Output []byte

	Family  *Family
	Command *Command
}

// Result is what a handler produced.
type Result struct {
	// ReplyLen is the number of bytes written to Output.
	ReplyLen int

	// ErrorCode is set when the reply is a protocol error message.
	ErrorCode netlink.ErrorCode

	// Pend, when set, parks the caller until the future completes. The
	// handler must return StatusPending alongside it.
	Pend *pend.Future
}

// Handler runs one command. A non-nil error carries the transport status;
// protocol failures are written into the reply and reported via
// Result.ErrorCode with a nil error.
type Handler func(c *Controller, ctx context.Context, req *Request) (Result, error)

// Command is one operation of a family.
type Command struct {
	Code    uint8
	Name    string
	Handler Handler

	// DevOps lists the operations the command may run under.
	DevOps DevOp

	// ValidateDp requires the request's datapath index to match the
	// active datapath.
	ValidateDp bool
}

// Family is a named, versioned group of commands sharing an attribute
// namespace.
type Family struct {
	Name     string
	ID       uint16
	Version  uint8
	MaxAttr  uint16
	Commands []Command
}

// Command returns the command with the given code.
func (f *Family) Command(code uint8) (*Command, bool) {
	for i := range f.Commands {
		if f.Commands[i].Code == code {
			return &f.Commands[i], true
		}
	}
	return nil, false
}

// ============================================================================
// Registry
// ============================================================================

var (
	ErrUnknownFamily  = errors.New("control: unknown family")
	ErrUnknownCommand = errors.New("control: unknown command")
)

// Registry resolves family ids. It is immutable once built.
type Registry struct {
	byID     map[uint16]*Family
	families []*Family
}

// NewRegistry indexes families by id. Duplicate family ids or command codes
// are rejected.
func NewRegistry(families ...*Family) (*Registry, error) {
	r := &Registry{byID: make(map[uint16]*Family, len(families))}
	for _, f := range families {
		if _, dup := r.byID[f.ID]; dup {
			return nil, fmt.Errorf("control: family id %#x registered twice", f.ID)
		}
		seen := make(map[uint8]bool, len(f.Commands))
		for _, cmd := range f.Commands {
			if seen[cmd.Code] {
				return nil, fmt.Errorf("control: %s command %d registered twice", f.Name, cmd.Code)
			}
			if cmd.Handler == nil || cmd.DevOps == 0 {
				return nil, fmt.Errorf("control: %s command %s has no handler or operations", f.Name, cmd.Name)
			}
			seen[cmd.Code] = true
		}
		r.byID[f.ID] = f
		r.families = append(r.families, f)
	}
	slices.SortFunc(r.families, func(a, b *Family) int { return int(a.ID) - int(b.ID) })
	return r, nil
}

// Family returns the family with the given id.
func (r *Registry) Family(id uint16) (*Family, error) {
	f, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownFamily, id)
	}
	return f, nil
}

// Lookup resolves a (family, command) pair.
func (r *Registry) Lookup(id uint16, code uint8) (*Family, *Command, error) {
	f, err := r.Family(id)
	if err != nil {
		return nil, nil, err
	}
	cmd, ok := f.Command(code)
	if !ok {
		return f, nil, fmt.Errorf("%w: %s %d", ErrUnknownCommand, f.Name, code)
	}
	return f, cmd, nil
}

// Families returns the registered families ordered by id.
func (r *Registry) Families() []*Family {
	return slices.Clone(r.families)
}
