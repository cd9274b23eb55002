package heap

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// Offset 1 in the free list field means the heap has no free blocks.
const freeListNone = 1

// LocalHeapWriter accumulates null-terminated names for a group's local
// heap. The data segment always starts with eight zero bytes so that no
// real name ever lives at offset 0; readers treat offset 0 as "no name"
// and would silently drop any entry stored there.
type LocalHeapWriter struct {
	offsets map[string]uint64
	data    []byte
}

// NewLocalHeapWriter creates an empty local heap writer.
func NewLocalHeapWriter() *LocalHeapWriter {
	return &LocalHeapWriter{
		offsets: make(map[string]uint64),
		data:    make([]byte, 8),
	}
}

// Add stores a string in the heap and returns its offset. Adding the
// same string twice returns the original offset.
func (h *LocalHeapWriter) Add(name string) uint64 {
	if off, ok := h.offsets[name]; ok {
		return off
	}

	off := uint64(len(h.data))
	padded := (len(name) + 1 + 7) &^ 7
	buf := make([]byte, padded)
	copy(buf, name)
	h.data = append(h.data, buf...)
	h.offsets[name] = off
	return off
}

// Offset returns the heap offset of a previously added string.
func (h *LocalHeapWriter) Offset(name string) (uint64, bool) {
	off, ok := h.offsets[name]
	return off, ok
}

// DataSize returns the current size of the data segment.
func (h *LocalHeapWriter) DataSize() uint64 {
	return uint64(len(h.data))
}

// Write allocates space for the heap header and data segment and writes
// both. The data segment is exactly sized, so the free list is empty.
// Returns the address of the heap header.
func (h *LocalHeapWriter) Write(w *binary.Writer, alloc func(int64) uint64) (uint64, error) {
	headerSize := 8 + 2*w.LengthSize() + w.OffsetSize()
	headerAddr := alloc(int64(headerSize))
	dataAddr := alloc(int64(len(h.data)))

	hw := w.At(int64(headerAddr))
	if err := hw.WriteBytes(localHeapSignature); err != nil {
		return 0, err
	}
	if err := hw.WriteUint8(0); err != nil {
		return 0, err
	}
	if err := hw.WriteZeros(3); err != nil {
		return 0, err
	}
	if err := hw.WriteLength(uint64(len(h.data))); err != nil {
		return 0, err
	}
	if err := hw.WriteLength(freeListNone); err != nil {
		return 0, err
	}
	if err := hw.WriteOffset(dataAddr); err != nil {
		return 0, err
	}

	dw := w.At(int64(dataAddr))
	if err := dw.WriteBytes(h.data); err != nil {
		return 0, err
	}

	return headerAddr, nil
}
