package nlenc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBufferFull is recorded when a write would exceed the writer's limit.
var ErrBufferFull = errors.New("nlenc: buffer full")

// Unbounded can be passed to NewWriter when no output limit applies.
const Unbounded = -1

// Writer provides sequential writing of little-endian netlink data into a
// buffer bounded by the caller's output capacity.
type Writer struct {
	buf   []byte
	limit int
	err   error
}

// NewWriter creates a Writer that accepts at most limit bytes. A negative
// limit disables the bound.
func NewWriter(limit int) *Writer {
	capacity := limit
	if capacity < 0 || capacity > 4096 {
		capacity = 256
	}
	return &Writer{
		buf:   make([]byte, 0, capacity),
		limit: limit,
	}
}

func (w *Writer) reserve(n int) bool {
	if w.err != nil {
		return false
	}
	if w.limit >= 0 && len(w.buf)+n > w.limit {
		w.err = fmt.Errorf("%w: need %d bytes at offset %d, limit %d", ErrBufferFull, n, len(w.buf), w.limit)
		return false
	}
	return true
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	if !w.reserve(1) {
		return
	}
	w.buf = append(w.buf, v)
}

// WriteUint16 appends a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	if !w.reserve(2) {
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	if !w.reserve(4) {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteInt32 appends a little-endian two's complement int32.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteUint64 appends a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	if !w.reserve(8) {
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(data []byte) {
	if !w.reserve(len(data)) {
		return
	}
	w.buf = append(w.buf, data...)
}

// WriteString appends s followed by a NUL terminator.
func (w *Writer) WriteString(s string) {
	if !w.reserve(len(s) + 1) {
		return
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// WriteZeros appends n zero bytes.
func (w *Writer) WriteZeros(n int) {
	if !w.reserve(n) {
		return
	}
	w.buf = append(w.buf, make([]byte, n)...)
}

// Pad appends zero bytes up to the next multiple of alignment.
func (w *Writer) Pad(alignment int) {
	if w.err != nil || alignment <= 0 {
		return
	}
	if rem := len(w.buf) % alignment; rem != 0 {
		w.WriteZeros(alignment - rem)
	}
}

// PutUint16At overwrites a little-endian uint16 at offset. Used to
// back-patch attribute lengths once the payload is known.
func (w *Writer) PutUint16At(offset int, v uint16) {
	if w.err != nil {
		return
	}
	if offset < 0 || offset+2 > len(w.buf) {
		w.err = fmt.Errorf("nlenc: PutUint16At out of bounds: offset %d + 2 > %d", offset, len(w.buf))
		return
	}
	binary.LittleEndian.PutUint16(w.buf[offset:], v)
}

// PutUint32At overwrites a little-endian uint32 at offset. Used to
// back-patch the message length once all attributes are written.
func (w *Writer) PutUint32At(offset int, v uint32) {
	if w.err != nil {
		return
	}
	if offset < 0 || offset+4 > len(w.buf) {
		w.err = fmt.Errorf("nlenc: PutUint32At out of bounds: offset %d + 4 > %d", offset, len(w.buf))
		return
	}
	binary.LittleEndian.PutUint32(w.buf[offset:], v)
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first error encountered, or nil.
func (w *Writer) Err() error {
	return w.err
}
