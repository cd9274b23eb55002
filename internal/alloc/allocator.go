package alloc

// Allocator reserves address ranges in a file being written. Each
// request extends the end-of-file watermark; space is never returned.
// Not safe for concurrent use: the write path allocates from a single
// goroutine.
type Allocator struct {
	base uint64
	eof  uint64
}

// New returns an allocator whose first reservation lands at base,
// normally the first byte after the superblock.
func New(base uint64) *Allocator {
	return &Allocator{base: base, eof: base}
}

// Alloc reserves size bytes and returns their address. A zero-size
// request reserves nothing and returns the current watermark.
func (a *Allocator) Alloc(size uint64) uint64 {
	addr := a.eof
	a.eof += size
	return addr
}

// AllocAligned reserves size bytes starting at the next multiple of
// alignment, skipping the gap.
func (a *Allocator) AllocAligned(size, alignment uint64) uint64 {
	if alignment > 1 {
		if rem := a.eof % alignment; rem != 0 {
			a.eof += alignment - rem
		}
	}
	return a.Alloc(size)
}

// AllocFunc adapts the allocator to the func(size) uint64 form the
// chunk, B-tree, and heap writers take.
func (a *Allocator) AllocFunc() func(size int64) uint64 {
	return func(size int64) uint64 {
		if size < 0 {
			panic("alloc: negative size")
		}
		return a.Alloc(uint64(size))
	}
}

// EOFAddr returns the current end-of-file watermark; after the last
// reservation this is the value the superblock records.
func (a *Allocator) EOFAddr() uint64 {
	return a.eof
}

// Base returns the start of allocatable space.
func (a *Allocator) Base() uint64 {
	return a.base
}
