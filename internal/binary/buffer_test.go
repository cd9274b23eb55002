package binary

import (
	"bytes"
	"testing"
)

func TestBufferGrowsOnWrite(t *testing.T) {
	var b Buffer

	if _, err := b.WriteAt([]byte{1, 2, 3}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := b.WriteAt([]byte{9}, 6); err != nil {
		t.Fatal(err)
	}

	want := []byte{1, 2, 3, 0, 0, 0, 9}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes = %v, want %v", b.Bytes(), want)
	}
	if b.Len() != len(want) {
		t.Errorf("Len = %d, want %d", b.Len(), len(want))
	}

	// Overwrites inside the existing range must not grow.
	if _, err := b.WriteAt([]byte{8, 8}, 1); err != nil {
		t.Fatal(err)
	}
	if b.Len() != len(want) {
		t.Errorf("Len after overwrite = %d, want %d", b.Len(), len(want))
	}
	if got := b.Bytes()[1]; got != 8 {
		t.Errorf("overwritten byte = %d, want 8", got)
	}
}

func TestNewBuffered(t *testing.T) {
	w, buf := NewBuffered(DefaultConfig())

	if err := w.WriteUint32(0x11223344); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteOffset(0xAB); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x44, 0x33, 0x22, 0x11, 0xAB, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("Bytes = %x, want %x", buf.Bytes(), want)
	}
	if w.Pos() != int64(buf.Len()) {
		t.Errorf("Pos = %d, Len = %d; want equal", w.Pos(), buf.Len())
	}
}
