// Package nlenc provides binary encoding and decoding utilities for netlink
// messages exchanged over the datapath control device.
//
// The package uses an error-accumulation pattern: callers perform several
// read or write operations and check for an error once at the end.
//
// Reader wraps a byte slice with a position cursor and keeps the first error.
// Once an error occurs, every later read is a no-op returning a zero value:
//
//	r := nlenc.NewReader(data)
//	length := r.ReadUint32()
//	msgType := r.ReadUint16()
//	if r.Err() != nil {
//	    return r.Err()
//	}
//
// Writer appends to a buffer that is bounded by the caller's output capacity.
// Writes that would exceed the bound record ErrBufferFull instead of growing
// the buffer, which is how reply construction detects an undersized output
// buffer:
//
//	w := nlenc.NewWriter(outputLen)
//	w.WriteUint16(attrLen)
//	w.WriteUint16(attrType)
//	w.WriteString(name)
//	w.Pad(4)
//	if w.Err() != nil {
//	    return w.Err()
//	}
//
// All integers are encoded in little-endian (host) byte order.
package nlenc
