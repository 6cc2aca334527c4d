package nlenc

import (
	"errors"
	"testing"
)

func TestReaderSequence(t *testing.T) {
	data := []byte{
		0x18, 0x00, 0x00, 0x00, // len
		0x12, 0x00, // type
		0x01, 0x03, // flags
		0x07, 0x00, 0x00, 0x00, // seq
		0x2a, 0x00, 0x00, 0x00, // pid
	}
	r := NewReader(data)
	length := r.ReadUint32()
	msgType := r.ReadUint16()
	flags := r.ReadUint16()
	seq := r.ReadUint32()
	pid := r.ReadUint32()
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if length != 24 || msgType != 0x12 || flags != 0x0301 || seq != 7 || pid != 42 {
		t.Errorf("decoded wrong header: len=%d type=%#x flags=%#x seq=%d pid=%d", length, msgType, flags, seq, pid)
	}
	if r.Remaining() != 0 {
		t.Errorf("expected remaining 0, got %d", r.Remaining())
	}
}

func TestReaderInt32Negative(t *testing.T) {
	r := NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	if v := r.ReadInt32(); v != -1 {
		t.Errorf("expected -1, got %d", v)
	}
}

func TestReaderShortReadSticks(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	_ = r.ReadUint32()
	if !errors.Is(r.Err(), ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", r.Err())
	}
	if v := r.ReadUint8(); v != 0 {
		t.Errorf("read after error should return 0, got %d", v)
	}
	if r.Position() != 0 {
		t.Errorf("position should not move after error, got %d", r.Position())
	}
}

func TestReaderAlign(t *testing.T) {
	r := NewReader(make([]byte, 8))
	r.Skip(5)
	r.Align(4)
	if r.Position() != 8 {
		t.Errorf("expected position 8, got %d", r.Position())
	}

	// Padding past the end is tolerated.
	r = NewReader(make([]byte, 6))
	r.Skip(6)
	r.Align(4)
	if r.Err() != nil {
		t.Errorf("unexpected error: %v", r.Err())
	}
	if r.Position() != 6 {
		t.Errorf("expected position 6, got %d", r.Position())
	}
}

func TestReaderReadBytesCopies(t *testing.T) {
	data := []byte{1, 2, 3}
	r := NewReader(data)
	b := r.ReadBytes(3)
	data[0] = 9
	if b[0] != 1 {
		t.Errorf("ReadBytes must copy, got %v", b)
	}
}
