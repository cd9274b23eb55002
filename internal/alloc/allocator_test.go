package alloc

import "testing"

func TestAllocatorAppendsFromBase(t *testing.T) {
	a := New(96)

	if got := a.Alloc(100); got != 96 {
		t.Errorf("first reservation at %#x, want 0x60", got)
	}
	if got := a.Alloc(4); got != 196 {
		t.Errorf("second reservation at %d, want 196", got)
	}
	if a.EOFAddr() != 200 {
		t.Errorf("EOFAddr = %d, want 200", a.EOFAddr())
	}
	if a.Base() != 96 {
		t.Errorf("Base = %d, want 96", a.Base())
	}
}

func TestAllocatorZeroSize(t *testing.T) {
	a := New(48)

	if got := a.Alloc(0); got != 48 {
		t.Errorf("zero-size reservation at %d, want 48", got)
	}
	if a.EOFAddr() != 48 {
		t.Errorf("zero-size reservation moved EOF to %d", a.EOFAddr())
	}
}

func TestAllocatorAlignment(t *testing.T) {
	a := New(96)
	a.Alloc(13) // watermark now 109

	addr := a.AllocAligned(50, 8)
	if addr != 112 {
		t.Errorf("aligned reservation at %d, want 112", addr)
	}
	if a.EOFAddr() != 162 {
		t.Errorf("EOFAddr = %d, want 162", a.EOFAddr())
	}

	// Already aligned: no gap.
	a2 := New(64)
	if got := a2.AllocAligned(8, 8); got != 64 {
		t.Errorf("aligned reservation at %d, want 64", got)
	}

	// Alignment of 0 or 1 never skips.
	a3 := New(3)
	if got := a3.AllocAligned(5, 1); got != 3 {
		t.Errorf("alignment 1 reservation at %d, want 3", got)
	}
	if got := a3.AllocAligned(5, 0); got != 8 {
		t.Errorf("alignment 0 reservation at %d, want 8", got)
	}
}

func TestAllocFunc(t *testing.T) {
	a := New(0)
	fn := a.AllocFunc()

	if got := fn(10); got != 0 {
		t.Errorf("fn(10) = %d, want 0", got)
	}
	if got := fn(5); got != 10 {
		t.Errorf("fn(5) = %d, want 10", got)
	}
	if a.EOFAddr() != 15 {
		t.Errorf("EOFAddr = %d, want 15", a.EOFAddr())
	}

	defer func() {
		if recover() == nil {
			t.Error("negative size did not panic")
		}
	}()
	fn(-1)
}
