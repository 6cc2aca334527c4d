package netlink

import (
	"encoding/binary"

	"github.com/marmos91/ovsdp/internal/protocol/netlink/nlenc"
)

// buildMsgOut copies the identifying fields of in into a new header.
func buildMsgOut(in Message, msgType uint16, length uint32, flags Flags) Message {
	return Message{
		Header: Header{
			Len:   length,
			Type:  msgType,
			Flags: flags,
			Seq:   in.Seq,
			PID:   in.PID,
		},
		Genl: GenlHeader{
			Cmd:     in.Genl.Cmd,
			Version: in.Genl.Version,
		},
	}
}

// BuildReply returns a reply header that echoes the type, sequence number,
// pid, command and version of in, with the given flags. The length covers
// the header only; MessageBuilder.Finish extends it for attributes.
func BuildReply(in Message, flags Flags) Message {
	return buildMsgOut(in, in.Type, MessageLen, flags)
}

// BuildError returns an error reply for in carrying code.
func BuildError(in Message, code ErrorCode) ErrorMessage {
	return ErrorMessage{
		Message: buildMsgOut(in, TypeError, ErrorMessageLen, 0),
		Error:   code,
		Orig:    in.Header,
	}
}

// WriteError encodes the error reply for in into out and returns its length.
// It fails with nlenc.ErrBufferFull when out cannot hold the reply.
func WriteError(out []byte, in Message, code ErrorCode) (int, error) {
	w := nlenc.NewWriter(len(out))
	BuildError(in, code).Encode(w)
	if err := w.Err(); err != nil {
		return 0, err
	}
	return copy(out, w.Bytes()), nil
}

// MessageBuilder assembles a message header followed by attributes, bounded
// by the output capacity.
type MessageBuilder struct {
	w *nlenc.Writer
}

// NewMessageBuilder starts a message with hdr. limit is the output buffer
// size; pass nlenc.Unbounded for no limit.
func NewMessageBuilder(limit int, hdr Message) *MessageBuilder {
	b := &MessageBuilder{w: nlenc.NewWriter(limit)}
	hdr.Encode(b.w)
	return b
}

func (b *MessageBuilder) PutU8(t uint16, v uint8) {
	PutAttr(b.w, t, []byte{v})
}

func (b *MessageBuilder) PutU16(t uint16, v uint16) {
	PutAttr(b.w, t, binary.LittleEndian.AppendUint16(nil, v))
}

func (b *MessageBuilder) PutU32(t uint16, v uint32) {
	PutAttr(b.w, t, binary.LittleEndian.AppendUint32(nil, v))
}

func (b *MessageBuilder) PutU64(t uint16, v uint64) {
	PutAttr(b.w, t, binary.LittleEndian.AppendUint64(nil, v))
}

// PutString writes s as a NUL-terminated string attribute.
func (b *MessageBuilder) PutString(t uint16, s string) {
	payload := make([]byte, len(s)+1)
	copy(payload, s)
	PutAttr(b.w, t, payload)
}

func (b *MessageBuilder) PutBytes(t uint16, v []byte) {
	PutAttr(b.w, t, v)
}

// PutFlag writes a zero-length attribute.
func (b *MessageBuilder) PutFlag(t uint16) {
	PutAttr(b.w, t, nil)
}

// Len returns the number of bytes written so far.
func (b *MessageBuilder) Len() int {
	return b.w.Len()
}

// Finish back-patches the total length and returns the encoded message.
func (b *MessageBuilder) Finish() ([]byte, error) {
	b.w.PutUint32At(0, uint32(b.w.Len()))
	if err := b.w.Err(); err != nil {
		return nil, err
	}
	return b.w.Bytes(), nil
}
