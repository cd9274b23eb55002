package binary

import (
	"bytes"
	"errors"
	"testing"
)

func newTestReader(data []byte) *Reader {
	return NewReader(bytes.NewReader(data), DefaultConfig())
}

func TestReaderFixedWidths(t *testing.T) {
	data := []byte{
		0x42,                   // uint8
		0x02, 0x01,             // uint16 0x0102
		0x78, 0x56, 0x34, 0x12, // uint32 0x12345678
		0xF0, 0xDE, 0xBC, 0x9A, 0x78, 0x56, 0x34, 0x12, // uint64
	}
	r := newTestReader(data)

	v8, err := r.ReadUint8()
	if err != nil || v8 != 0x42 {
		t.Fatalf("ReadUint8 = %#x, %v", v8, err)
	}
	v16, err := r.ReadUint16()
	if err != nil || v16 != 0x0102 {
		t.Fatalf("ReadUint16 = %#x, %v", v16, err)
	}
	v32, err := r.ReadUint32()
	if err != nil || v32 != 0x12345678 {
		t.Fatalf("ReadUint32 = %#x, %v", v32, err)
	}
	v64, err := r.ReadUint64()
	if err != nil || v64 != 0x123456789ABCDEF0 {
		t.Fatalf("ReadUint64 = %#x, %v", v64, err)
	}
	if r.Pos() != int64(len(data)) {
		t.Errorf("Pos = %d, want %d", r.Pos(), len(data))
	}
}

func TestReaderVariableWidths(t *testing.T) {
	// One offset followed by one length, at each width the format allows.
	tests := []struct {
		width      int
		data       []byte
		wantOffset uint64
		wantLength uint64
	}{
		{2, []byte{0x34, 0x12, 0xCD, 0xAB}, 0x1234, 0xABCD},
		{4, []byte{0x78, 0x56, 0x34, 0x12, 0x0D, 0x0C, 0x0B, 0x0A}, 0x12345678, 0x0A0B0C0D},
		{8, []byte{
			0xF0, 0xDE, 0xBC, 0x9A, 0x78, 0x56, 0x34, 0x12,
			0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		}, 0x123456789ABCDEF0, 1},
	}

	for _, tt := range tests {
		r := newTestReader(tt.data).WithSizes(tt.width, tt.width)

		off, err := r.ReadOffset()
		if err != nil || off != tt.wantOffset {
			t.Errorf("width %d: ReadOffset = %#x, %v; want %#x", tt.width, off, err, tt.wantOffset)
		}
		length, err := r.ReadLength()
		if err != nil || length != tt.wantLength {
			t.Errorf("width %d: ReadLength = %#x, %v; want %#x", tt.width, length, err, tt.wantLength)
		}
	}
}

func TestReaderOddWidth(t *testing.T) {
	// Chunk dimension encodings use widths outside {1,2,4,8}.
	r := newTestReader([]byte{0x01, 0x02, 0x03, 0xFF})
	v, err := r.ReadUintN(3)
	if err != nil {
		t.Fatalf("ReadUintN(3): %v", err)
	}
	if v != 0x030201 {
		t.Errorf("ReadUintN(3) = %#x, want 0x030201", v)
	}
}

func TestReaderUndefinedSentinels(t *testing.T) {
	tests := []struct {
		width int
		value uint64
		want  bool
	}{
		{2, 0xFFFF, true},
		{2, 0xFFFE, false},
		{4, 0xFFFFFFFF, true},
		{4, 0xFFFFFFFFFFFFFFFF, false},
		{8, 0xFFFFFFFFFFFFFFFF, true},
		{8, 0, false},
	}

	for _, tt := range tests {
		r := newTestReader(nil).WithSizes(tt.width, tt.width)
		if got := r.IsUndefinedOffset(tt.value); got != tt.want {
			t.Errorf("width %d: IsUndefinedOffset(%#x) = %v", tt.width, tt.value, got)
		}
		if got := r.IsUndefinedLength(tt.value); got != tt.want {
			t.Errorf("width %d: IsUndefinedLength(%#x) = %v", tt.width, tt.value, got)
		}
	}
}

func TestReaderPositioning(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	r := newTestReader(data)

	r.Skip(3)
	if v, _ := r.ReadUint8(); v != 3 {
		t.Errorf("after Skip(3): read %d, want 3", v)
	}

	r.Align(8)
	if r.Pos() != 8 {
		t.Errorf("after Align(8): Pos = %d, want 8", r.Pos())
	}
	r.Align(8) // already aligned, no movement
	if r.Pos() != 8 {
		t.Errorf("second Align(8) moved Pos to %d", r.Pos())
	}

	// At derives an independent cursor.
	other := r.At(1)
	if v, _ := other.ReadUint8(); v != 1 {
		t.Errorf("At(1) read %d, want 1", v)
	}
	if r.Pos() != 8 {
		t.Errorf("At leaked position: %d", r.Pos())
	}
}

func TestReaderPeek(t *testing.T) {
	r := newTestReader([]byte{0xAA, 0xBB})

	peeked, err := r.Peek(2)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if !bytes.Equal(peeked, []byte{0xAA, 0xBB}) {
		t.Errorf("Peek = %x", peeked)
	}
	if r.Pos() != 0 {
		t.Errorf("Peek advanced position to %d", r.Pos())
	}

	if _, err := r.Peek(3); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Peek past end: %v, want ErrOutOfBounds", err)
	}
}

func TestReaderOutOfBounds(t *testing.T) {
	r := newTestReader([]byte{1, 2, 3})

	// Truncated multi-byte read: nothing consumed, position unchanged.
	r.Skip(2)
	if _, err := r.ReadUint32(); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("truncated read: %v, want ErrOutOfBounds", err)
	}
	if r.Pos() != 2 {
		t.Errorf("failed read moved position to %d", r.Pos())
	}

	var oob *OutOfBoundsError
	_, err := r.ReadBytes(10)
	if !errors.As(err, &oob) {
		t.Fatalf("expected *OutOfBoundsError, got %T", err)
	}
	if oob.Offset != 2 || oob.Size != 10 {
		t.Errorf("OutOfBoundsError = offset %d size %d, want 2 and 10", oob.Offset, oob.Size)
	}

	// Negative positions are corrupt offsets, not panics.
	if _, err := r.At(-4).ReadBytes(1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("negative offset: %v, want ErrOutOfBounds", err)
	}

	// Zero-size reads succeed anywhere, even past the end.
	if _, err := r.At(100).ReadBytes(0); err != nil {
		t.Errorf("zero-size read: %v", err)
	}
}

func TestReaderConfigAccessors(t *testing.T) {
	r := newTestReader(nil).WithSizes(4, 2)
	if r.OffsetSize() != 4 || r.LengthSize() != 2 {
		t.Errorf("sizes = %d/%d, want 4/2", r.OffsetSize(), r.LengthSize())
	}
	if r.ByteOrder() == nil {
		t.Error("ByteOrder is nil")
	}
}
