package nlenc

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterBounded(t *testing.T) {
	w := NewWriter(6)
	w.WriteUint32(1)
	w.WriteUint32(2)
	if !errors.Is(w.Err(), ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull, got %v", w.Err())
	}
	if w.Len() != 4 {
		t.Errorf("failed write must not append, len=%d", w.Len())
	}
	w.WriteUint8(1)
	if w.Len() != 4 {
		t.Errorf("writes after error must be no-ops, len=%d", w.Len())
	}
}

func TestWriterUnbounded(t *testing.T) {
	w := NewWriter(Unbounded)
	for range 2000 {
		w.WriteUint32(0xdeadbeef)
	}
	if w.Err() != nil {
		t.Fatalf("unexpected error: %v", w.Err())
	}
	if w.Len() != 8000 {
		t.Errorf("expected 8000 bytes, got %d", w.Len())
	}
}

func TestWriterStringAndPad(t *testing.T) {
	w := NewWriter(Unbounded)
	w.WriteString("eth0")
	w.Pad(4)
	want := []byte{'e', 't', 'h', '0', 0, 0, 0, 0}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %v, want %v", w.Bytes(), want)
	}
}

func TestWriterBackpatch(t *testing.T) {
	w := NewWriter(Unbounded)
	w.WriteUint32(0)
	w.WriteUint16(0)
	w.PutUint32At(0, 0x01020304)
	w.PutUint16At(4, 0x0506)
	want := []byte{0x04, 0x03, 0x02, 0x01, 0x06, 0x05}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %v, want %v", w.Bytes(), want)
	}

	w.PutUint32At(4, 1)
	if w.Err() == nil {
		t.Error("expected out-of-bounds error")
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter(Unbounded)
	w.WriteUint8(0xab)
	w.WriteUint16(0xbeef)
	w.WriteInt32(-22)
	w.WriteUint64(1 << 40)

	r := NewReader(w.Bytes())
	if r.ReadUint8() != 0xab || r.ReadUint16() != 0xbeef || r.ReadInt32() != -22 || r.ReadUint64() != 1<<40 {
		t.Error("round trip mismatch")
	}
	if r.Err() != nil {
		t.Errorf("unexpected error: %v", r.Err())
	}
}
