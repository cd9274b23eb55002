package heap

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// minCollectionSize is the smallest global heap collection the format
// allows. The reference library rejects collections below 4096 bytes,
// so the writer always pads up to it.
const minCollectionSize = 4096

// GlobalHeapWriter batches variable-length payloads and writes them out
// as a single global heap collection.
type GlobalHeapWriter struct {
	w     *binary.Writer
	alloc func(size int64) uint64
	objs  [][]byte
}

// NewGlobalHeapWriter creates an empty writer. alloc reserves file
// space and returns the address of the reserved block.
func NewGlobalHeapWriter(w *binary.Writer, alloc func(size int64) uint64) *GlobalHeapWriter {
	return &GlobalHeapWriter{w: w, alloc: alloc}
}

// AddObject stages data as the next heap object and returns its index.
// Indices start at 1; index 0 marks the collection's free space.
func (g *GlobalHeapWriter) AddObject(data []byte) uint16 {
	g.objs = append(g.objs, data)
	return uint16(len(g.objs))
}

// AddString stages the raw bytes of s. No terminator is stored; a
// variable-length string element carries its length in the reference.
func (g *GlobalHeapWriter) AddString(s string) uint16 {
	return g.AddObject([]byte(s))
}

// Write lays out the collection and writes it: header, each object
// padded to 8 bytes, then a free-space object covering the tail. The
// collection is padded to at least the format's minimum size. Returns
// the collection address and the heap ID for each staged object.
// Writing an empty collection is a no-op returning address 0.
func (g *GlobalHeapWriter) Write() (uint64, map[uint16]GlobalHeapID, error) {
	if len(g.objs) == 0 {
		return 0, nil, nil
	}

	headerSize := 4 + 1 + 3 + g.w.LengthSize()
	prefix := 2 + 2 + 4 + g.w.LengthSize()

	used := headerSize
	for _, obj := range g.objs {
		used += prefix + padTo8(len(obj))
	}

	// Room for the free-space object header, rounded to 8, with the
	// format minimum as a floor. Both keep free >= prefix below.
	size := (used + prefix + 7) &^ 7
	if size < minCollectionSize {
		size = minCollectionSize
	}

	addr := g.alloc(int64(size))
	w := g.w.At(int64(addr))

	if err := w.WriteBytes(globalHeapSignature); err != nil {
		return 0, nil, err
	}
	if err := w.WriteUint8(1); err != nil {
		return 0, nil, err
	}
	if err := w.WriteZeros(3); err != nil {
		return 0, nil, err
	}
	if err := w.WriteLength(uint64(size)); err != nil {
		return 0, nil, err
	}

	ids := make(map[uint16]GlobalHeapID, len(g.objs))
	for i, obj := range g.objs {
		index := uint16(i + 1)
		if err := w.WriteUint16(index); err != nil {
			return 0, nil, err
		}
		if err := w.WriteUint16(1); err != nil { // reference count
			return 0, nil, err
		}
		if err := w.WriteUint32(0); err != nil {
			return 0, nil, err
		}
		if err := w.WriteLength(uint64(len(obj))); err != nil {
			return 0, nil, err
		}
		if err := w.WriteBytes(obj); err != nil {
			return 0, nil, err
		}
		if err := w.WriteZeros(padTo8(len(obj)) - len(obj)); err != nil {
			return 0, nil, err
		}
		ids[index] = GlobalHeapID{CollectionAddress: addr, ObjectIndex: uint32(index)}
	}

	// Free-space object: index 0, with the object size field counting
	// everything from its own header to the end of the collection.
	free := size - used
	if err := w.WriteUint16(0); err != nil {
		return 0, nil, err
	}
	if err := w.WriteUint16(0); err != nil {
		return 0, nil, err
	}
	if err := w.WriteUint32(0); err != nil {
		return 0, nil, err
	}
	if err := w.WriteLength(uint64(free)); err != nil {
		return 0, nil, err
	}
	if err := w.WriteZeros(free - prefix); err != nil {
		return 0, nil, err
	}

	return addr, ids, nil
}

func padTo8(n int) int { return (n + 7) &^ 7 }

// WriteGlobalHeapID encodes a variable-length element's reference: the
// collection address at the configured offset width, then the 4-byte
// object index.
func WriteGlobalHeapID(w *binary.Writer, id GlobalHeapID) error {
	if err := w.WriteOffset(id.CollectionAddress); err != nil {
		return err
	}
	return w.WriteUint32(id.ObjectIndex)
}

// GlobalHeapIDSize returns the encoded size of a global heap ID.
func GlobalHeapIDSize(offsetSize int) int {
	return offsetSize + 4
}
