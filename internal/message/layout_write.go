package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Serialize writes the DataLayout to the writer using the version 3
// encoding, which every HDF5 implementation understands. Chunked layouts
// always reference a v1 B-tree index in this encoding.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(3); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.Class)); err != nil {
		return err
	}

	switch m.Class {
	case LayoutCompact:
		if err := w.WriteUint16(uint16(len(m.CompactData))); err != nil {
			return err
		}
		return w.WriteBytes(m.CompactData)

	case LayoutContiguous:
		if err := w.WriteOffset(m.Address); err != nil {
			return err
		}
		return w.WriteLength(m.Size)

	case LayoutChunked:
		// Dimensionality, B-tree address, then 4-byte dimension sizes. The
		// ChunkDims slice already carries the element size as its final
		// entry, so its length is the dataspace rank plus one.
		if err := w.WriteUint8(uint8(len(m.ChunkDims))); err != nil {
			return err
		}
		if err := w.WriteOffset(m.ChunkIndexAddr); err != nil {
			return err
		}
		for _, dim := range m.ChunkDims {
			if err := w.WriteUint32(dim); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("cannot serialize layout class %d", m.Class)
	}
}

// SerializedSize returns the size in bytes when serialized.
func (m *DataLayout) SerializedSize(w *binary.Writer) int {
	size := 2 // version + class

	switch m.Class {
	case LayoutCompact:
		size += 2 + len(m.CompactData)
	case LayoutContiguous:
		size += w.OffsetSize() + w.LengthSize()
	case LayoutChunked:
		size += 1 + w.OffsetSize() + len(m.ChunkDims)*4
	}

	return size
}

// NewCompactLayout creates a new compact layout message.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{
		Version:     3,
		Class:       LayoutCompact,
		CompactData: data,
	}
}

// NewContiguousLayout creates a new contiguous layout message.
// Address and Size will be set later when data is written.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{
		Version: 3,
		Class:   LayoutContiguous,
		Address: address,
		Size:    size,
	}
}

// NewChunkedLayout creates a new chunked layout message indexed by a v1
// B-tree. chunkDims is the user-facing chunk shape; the element size is
// appended as the extra dimension the on-disk encoding requires.
// ChunkIndexAddr is set once the B-tree is written.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32) *DataLayout {
	allDims := make([]uint32, len(chunkDims)+1)
	copy(allDims, chunkDims)
	allDims[len(chunkDims)] = elementSize

	return &DataLayout{
		Version:            3,
		Class:              LayoutChunked,
		ChunkDims:          allDims,
		ChunkIndexType:     ChunkIndexBTreeV1,
		DimensionSizeBytes: 4,
	}
}
