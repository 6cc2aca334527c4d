package netlink

import (
	"errors"
	"fmt"

	"github.com/marmos91/ovsdp/internal/protocol/netlink/nlenc"
)

// Wire sizes.
const (
	HeaderLen       = 16
	GenlHeaderLen   = 4
	OvsHeaderLen    = 4
	MessageLen      = HeaderLen + GenlHeaderLen + OvsHeaderLen
	ErrorMessageLen = MessageLen + 4 + HeaderLen
)

// Message types below TypeMinFamily are reserved for netlink control
// messages; family ids start at TypeMinFamily.
const (
	TypeNoop      uint16 = 0x1
	TypeError     uint16 = 0x2
	TypeDone      uint16 = 0x3
	TypeMinFamily uint16 = 0x10
)

// Flags is the 16-bit netlink flags field.
type Flags uint16

const (
	FlagRequest Flags = 0x1
	FlagMulti   Flags = 0x2
	FlagAck     Flags = 0x4
	FlagEcho    Flags = 0x8

	// Modifiers for GET requests.
	FlagRoot  Flags = 0x100
	FlagMatch Flags = 0x200
	FlagDump  Flags = FlagRoot | FlagMatch

	// Modifiers for NEW requests.
	FlagExcl   Flags = 0x200
	FlagCreate Flags = 0x400
)

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

var (
	// ErrMessageTooShort is returned when the buffer cannot hold a header.
	ErrMessageTooShort = errors.New("netlink: message too short")

	// ErrBadLength is returned when the declared length is inconsistent
	// with the buffer.
	ErrBadLength = errors.New("netlink: bad message length")
)

// Header is the fixed netlink message header.
type Header struct {
	Len   uint32
	Type  uint16
	Flags Flags
	Seq   uint32
	PID   uint32
}

// GenlHeader is the generic netlink command sub-header.
type GenlHeader struct {
	Cmd      uint8
	Version  uint8
	Reserved uint16
}

// Message is the shared prefix of every datapath request and reply.
type Message struct {
	Header
	Genl      GenlHeader
	DpIfIndex int32
}

// ErrorMessage is a Message of type TypeError carrying a protocol error code
// and a copy of the originating request header.
type ErrorMessage struct {
	Message
	Error ErrorCode
	Orig  Header
}

func decodeHeader(r *nlenc.Reader) Header {
	return Header{
		Len:   r.ReadUint32(),
		Type:  r.ReadUint16(),
		Flags: Flags(r.ReadUint16()),
		Seq:   r.ReadUint32(),
		PID:   r.ReadUint32(),
	}
}

// Encode appends the header to w.
func (h Header) Encode(w *nlenc.Writer) {
	w.WriteUint32(h.Len)
	w.WriteUint16(h.Type)
	w.WriteUint16(uint16(h.Flags))
	w.WriteUint32(h.Seq)
	w.WriteUint32(h.PID)
}

// ParseHeader decodes the netlink header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrMessageTooShort, len(data))
	}
	r := nlenc.NewReader(data)
	h := decodeHeader(r)
	return h, r.Err()
}

// ParseMessage decodes the full request header at the start of data. The
// declared length must cover at least the header itself; it may be smaller
// than len(data) when the caller's buffer is larger than the message.
func ParseMessage(data []byte) (Message, error) {
	if len(data) < MessageLen {
		return Message{}, fmt.Errorf("%w: %d bytes, need %d", ErrMessageTooShort, len(data), MessageLen)
	}
	r := nlenc.NewReader(data)
	m := Message{Header: decodeHeader(r)}
	m.Genl = GenlHeader{
		Cmd:      r.ReadUint8(),
		Version:  r.ReadUint8(),
		Reserved: r.ReadUint16(),
	}
	m.DpIfIndex = r.ReadInt32()
	if err := r.Err(); err != nil {
		return Message{}, err
	}
	if m.Len < MessageLen || int(m.Len) > len(data) {
		return Message{}, fmt.Errorf("%w: declared %d, buffer %d", ErrBadLength, m.Len, len(data))
	}
	return m, nil
}

// Encode appends the message header to w.
func (m Message) Encode(w *nlenc.Writer) {
	m.Header.Encode(w)
	w.WriteUint8(m.Genl.Cmd)
	w.WriteUint8(m.Genl.Version)
	w.WriteUint16(m.Genl.Reserved)
	w.WriteInt32(m.DpIfIndex)
}

// Bytes returns the encoded header.
func (m Message) Bytes() []byte {
	w := nlenc.NewWriter(MessageLen)
	m.Encode(w)
	return w.Bytes()
}

// Payload returns the attribute bytes following the header in data, bounded
// by the declared message length.
func (m Message) Payload(data []byte) []byte {
	end := min(int(m.Len), len(data))
	if end <= MessageLen {
		return nil
	}
	return data[MessageLen:end]
}

// ParseErrorMessage decodes an error reply.
func ParseErrorMessage(data []byte) (ErrorMessage, error) {
	m, err := ParseMessage(data)
	if err != nil {
		return ErrorMessage{}, err
	}
	if m.Type != TypeError {
		return ErrorMessage{}, fmt.Errorf("netlink: not an error message (type %#x)", m.Type)
	}
	r := nlenc.NewReader(data[MessageLen:])
	em := ErrorMessage{Message: m}
	em.Error = ErrorCode(r.ReadInt32())
	em.Orig = decodeHeader(r)
	if err := r.Err(); err != nil {
		return ErrorMessage{}, fmt.Errorf("netlink: truncated error message: %w", err)
	}
	return em, nil
}

// Encode appends the error reply to w.
func (e ErrorMessage) Encode(w *nlenc.Writer) {
	e.Message.Encode(w)
	w.WriteInt32(int32(e.Error))
	e.Orig.Encode(w)
}
