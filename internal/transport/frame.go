package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/ovsdp/internal/bytesize"
	"github.com/marmos91/ovsdp/internal/protocol/netlink"
	"github.com/marmos91/ovsdp/pkg/bufpool"
)

// Frame layout, little-endian:
//
//	request:  tag u32 | code u32 | out_cap u32 | in_len u32 | in[in_len]
//	response: tag u32 | status u32 | reply_len u32 | reply[reply_len]
//
// The tag is chosen by the client and echoed in the response so that
// frames served concurrently on one connection can be matched up.
const (
	RequestHeaderLen  = 16
	ResponseHeaderLen = 12
)

// MaxFrameSize bounds both the input of a request and the output capacity
// it asks for.
const MaxFrameSize = bufpool.DefaultLargeSize

// ReplyRange is the output capacity a call expecting a reply may ask for:
// room for one message header up to MaxFrameSize. Writes ask for none.
var ReplyRange = bytesize.Range{Min: netlink.MessageLen, Max: MaxFrameSize}

var frameRange = bytesize.Range{Max: MaxFrameSize}

// ErrFrameTooLarge is returned when a request header declares more than
// MaxFrameSize bytes of input or output.
var ErrFrameTooLarge = errors.New("transport: frame too large")

// Request is one control call as it travels on the socket.
type Request struct {
	Tag    uint32
	Code   uint32
	OutCap uint32
	In     []byte
}

// Response answers the Request with the same tag.
type Response struct {
	Tag    uint32
	Status uint32
	Reply  []byte
}

// ReadRequest reads one request frame. In is taken from the buffer pool;
// the caller returns it with bufpool.Put. EOF before the first header byte
// is returned unwrapped so callers can tell a clean disconnect apart.
func ReadRequest(r io.Reader) (Request, error) {
	var hdr [RequestHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Request{}, err
	}

	req := Request{
		Tag:    binary.LittleEndian.Uint32(hdr[0:]),
		Code:   binary.LittleEndian.Uint32(hdr[4:]),
		OutCap: binary.LittleEndian.Uint32(hdr[8:]),
	}
	inLen := binary.LittleEndian.Uint32(hdr[12:])
	if err := validateSize(inLen, req.OutCap); err != nil {
		return Request{}, err
	}

	if inLen > 0 {
		req.In = bufpool.GetUint32(inLen)
		if _, err := io.ReadFull(r, req.In); err != nil {
			bufpool.Put(req.In)
			return Request{}, fmt.Errorf("read request body: %w", err)
		}
	}
	return req, nil
}

func validateSize(inLen, outCap uint32) error {
	in, out := bytesize.ByteSize(inLen), bytesize.ByteSize(outCap)
	if !frameRange.Contains(in) || !frameRange.Contains(out) {
		return fmt.Errorf("%w: in %s, out %s, max %s", ErrFrameTooLarge, in, out, frameRange.Max)
	}
	return nil
}

// WriteRequest writes one request frame in a single Write.
func WriteRequest(w io.Writer, req Request) error {
	if err := validateSize(uint32(len(req.In)), req.OutCap); err != nil {
		return err
	}
	buf := make([]byte, RequestHeaderLen, RequestHeaderLen+len(req.In))
	binary.LittleEndian.PutUint32(buf[0:], req.Tag)
	binary.LittleEndian.PutUint32(buf[4:], req.Code)
	binary.LittleEndian.PutUint32(buf[8:], req.OutCap)
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(req.In)))
	buf = append(buf, req.In...)
	_, err := w.Write(buf)
	return err
}

// ReadResponse reads one response frame. The reply is freshly allocated.
func ReadResponse(r io.Reader) (Response, error) {
	var hdr [ResponseHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Response{}, err
	}

	resp := Response{
		Tag:    binary.LittleEndian.Uint32(hdr[0:]),
		Status: binary.LittleEndian.Uint32(hdr[4:]),
	}
	n := binary.LittleEndian.Uint32(hdr[8:])
	if !frameRange.Contains(bytesize.ByteSize(n)) {
		return Response{}, fmt.Errorf("%w: reply %s", ErrFrameTooLarge, bytesize.ByteSize(n))
	}
	if n > 0 {
		resp.Reply = make([]byte, n)
		if _, err := io.ReadFull(r, resp.Reply); err != nil {
			return Response{}, fmt.Errorf("read response body: %w", err)
		}
	}
	return resp, nil
}

// WriteResponse writes one response frame in a single Write.
func WriteResponse(w io.Writer, resp Response) error {
	buf := bufpool.Get(ResponseHeaderLen + len(resp.Reply))
	defer bufpool.Put(buf)

	binary.LittleEndian.PutUint32(buf[0:], resp.Tag)
	binary.LittleEndian.PutUint32(buf[4:], resp.Status)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(resp.Reply)))
	copy(buf[ResponseHeaderLen:], resp.Reply)
	_, err := w.Write(buf)
	return err
}
