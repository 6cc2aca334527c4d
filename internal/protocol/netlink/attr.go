package netlink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/marmos91/ovsdp/internal/protocol/netlink/nlenc"
)

// AttrHeaderLen is the size of an attribute's length+type prefix.
const AttrHeaderLen = 4

// AttrAlign is the alignment of every attribute.
const AttrAlign = 4

// AttrKind describes the expected payload shape of an attribute.
type AttrKind uint8

const (
	KindUnspec AttrKind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindString
	KindFlag
	KindNested
)

// fixedSize returns the exact payload size for fixed-width kinds, or -1.
func (k AttrKind) fixedSize() int {
	switch k {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	case KindFlag:
		return 0
	default:
		return -1
	}
}

// AttrPolicy constrains one attribute type. MinLen and MaxLen bound the
// payload (for strings MaxLen includes the terminating NUL); zero disables
// the bound.
type AttrPolicy struct {
	Kind     AttrKind
	MinLen   int
	MaxLen   int
	Optional bool
}

// Policy maps attribute types to their constraints. Attribute types absent
// from the policy are accepted and ignored.
type Policy map[uint16]AttrPolicy

var (
	// ErrAttrMalformed is returned for truncated or overlong attribute headers.
	ErrAttrMalformed = errors.New("netlink: malformed attribute")

	// ErrAttrInvalid is returned when an attribute violates its policy.
	ErrAttrInvalid = errors.New("netlink: attribute violates policy")

	// ErrAttrMissing is returned when a required attribute is absent.
	ErrAttrMissing = errors.New("netlink: required attribute missing")
)

// Attrs holds validated attribute payloads keyed by type.
type Attrs map[uint16][]byte

// ParseAttrs walks the TLVs in data, validating each against policy.
// Attribute types greater than maxAttr are skipped. Duplicate attributes
// are rejected.
func ParseAttrs(data []byte, policy Policy, maxAttr uint16) (Attrs, error) {
	attrs := make(Attrs)
	r := nlenc.NewReader(data)

	for r.Remaining() > 0 {
		start := r.Position()
		length := int(r.ReadUint16())
		attrType := r.ReadUint16()
		if r.Err() != nil {
			return nil, fmt.Errorf("%w at offset %d: %v", ErrAttrMalformed, start, r.Err())
		}
		if length < AttrHeaderLen {
			return nil, fmt.Errorf("%w at offset %d: length %d", ErrAttrMalformed, start, length)
		}
		payload := r.ReadBytes(length - AttrHeaderLen)
		if r.Err() != nil {
			return nil, fmt.Errorf("%w at offset %d: length %d exceeds buffer", ErrAttrMalformed, start, length)
		}
		r.Align(AttrAlign)

		if attrType > maxAttr {
			continue
		}
		p, ok := policy[attrType]
		if !ok {
			continue
		}
		if err := validateAttr(attrType, payload, p); err != nil {
			return nil, err
		}
		if _, dup := attrs[attrType]; dup {
			return nil, fmt.Errorf("%w: duplicate attribute %d", ErrAttrInvalid, attrType)
		}
		attrs[attrType] = payload
	}

	for attrType, p := range policy {
		if p.Optional || attrType > maxAttr {
			continue
		}
		if _, ok := attrs[attrType]; !ok {
			return nil, fmt.Errorf("%w: type %d", ErrAttrMissing, attrType)
		}
	}
	return attrs, nil
}

func validateAttr(attrType uint16, payload []byte, p AttrPolicy) error {
	n := len(payload)
	if size := p.Kind.fixedSize(); size >= 0 && n != size {
		return fmt.Errorf("%w: type %d has %d bytes, want %d", ErrAttrInvalid, attrType, n, size)
	}
	if p.MinLen > 0 && n < p.MinLen {
		return fmt.Errorf("%w: type %d has %d bytes, min %d", ErrAttrInvalid, attrType, n, p.MinLen)
	}
	if p.MaxLen > 0 && n > p.MaxLen {
		return fmt.Errorf("%w: type %d has %d bytes, max %d", ErrAttrInvalid, attrType, n, p.MaxLen)
	}
	if p.Kind == KindString {
		if n == 0 || payload[n-1] != 0 {
			return fmt.Errorf("%w: type %d is not a NUL-terminated string", ErrAttrInvalid, attrType)
		}
	}
	return nil
}

// Has reports whether the attribute is present.
func (a Attrs) Has(t uint16) bool {
	_, ok := a[t]
	return ok
}

// Bytes returns the raw payload, or nil.
func (a Attrs) Bytes(t uint16) []byte {
	return a[t]
}

// U8 returns a u8 attribute, or 0 when absent.
func (a Attrs) U8(t uint16) uint8 {
	if b := a[t]; len(b) >= 1 {
		return b[0]
	}
	return 0
}

// U16 returns a u16 attribute, or 0 when absent.
func (a Attrs) U16(t uint16) uint16 {
	if b := a[t]; len(b) >= 2 {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// U32 returns a u32 attribute, or 0 when absent.
func (a Attrs) U32(t uint16) uint32 {
	if b := a[t]; len(b) >= 4 {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// U64 returns a u64 attribute, or 0 when absent.
func (a Attrs) U64(t uint16) uint64 {
	if b := a[t]; len(b) >= 8 {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// String returns a string attribute without its NUL terminator.
func (a Attrs) String(t uint16) string {
	b := a[t]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// PutAttr appends one attribute to w and pads it to AttrAlign.
func PutAttr(w *nlenc.Writer, attrType uint16, payload []byte) {
	w.WriteUint16(uint16(AttrHeaderLen + len(payload)))
	w.WriteUint16(attrType)
	w.WriteBytes(payload)
	w.Pad(AttrAlign)
}
