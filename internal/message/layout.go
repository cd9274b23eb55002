package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// LayoutClass selects how dataset elements are stored.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0 // raw data inside the object header
	LayoutContiguous LayoutClass = 1 // one flat block
	LayoutChunked    LayoutClass = 2 // indexed chunks
	LayoutVirtual    LayoutClass = 3 // v4 only, unsupported
)

// ChunkIndexType is the chunk index structure of a v4 layout. Version
// 3 layouts always index chunks with a v1 B-tree and carry no
// index-type field.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0 // implied by v3 layouts
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// DataLayout is a data layout message. Class selects which fields are
// meaningful.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Compact
	CompactData []byte

	// Contiguous
	Address uint64
	Size    uint64

	// Chunked. For v3 layouts ChunkDims has one entry more than the
	// dataspace rank, with the element size last.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// Filtered single-chunk info (v4).
	FilteredChunkSize uint32
	FilteredChunkMask uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// IsCompact reports whether data is stored in the object header.
func (m *DataLayout) IsCompact() bool { return m.Class == LayoutCompact }

// IsContiguous reports whether data is stored in one flat block.
func (m *DataLayout) IsContiguous() bool { return m.Class == LayoutContiguous }

// IsChunked reports whether data is stored in chunks.
func (m *DataLayout) IsChunked() bool { return m.Class == LayoutChunked }

func parseDataLayout(data []byte, r *binary.Reader) (*DataLayout, error) {
	c := cursor{buf: data}
	layout := &DataLayout{Version: c.u8()}
	if c.bad {
		return nil, fmt.Errorf("data layout message too short")
	}

	var err error
	switch layout.Version {
	case 1, 2:
		err = layout.decodeV1(&c, r)
	case 3:
		err = layout.decodeV3(&c, r)
	case 4:
		err = layout.decodeV4(&c, r)
	default:
		return nil, fmt.Errorf("unsupported data layout version: %d", layout.Version)
	}
	if err != nil {
		return nil, err
	}
	if c.bad {
		return nil, fmt.Errorf("data layout v%d truncated", layout.Version)
	}
	return layout, nil
}

// decodeV1 handles the deprecated v1/v2 encoding: dimensionality is
// the dataspace rank plus one, and dimension sizes follow the address
// for every class.
func (m *DataLayout) decodeV1(c *cursor, r *binary.Reader) error {
	ndims := int(c.u8())
	m.Class = LayoutClass(c.u8())
	c.skip(5) // reserved

	switch m.Class {
	case LayoutContiguous:
		m.Address = c.uintN(r.OffsetSize())
	case LayoutChunked:
		m.ChunkIndexAddr = c.uintN(r.OffsetSize())
		m.ChunkIndexType = ChunkIndexBTreeV1
		m.DimensionSizeBytes = 4
	}

	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = c.u32()
	}

	switch m.Class {
	case LayoutCompact:
		size := c.u32()
		m.CompactData = append([]byte(nil), c.take(int(size))...)
	case LayoutContiguous:
		// No explicit size field; the dimension sizes carry the
		// element size as the last entry, so their product is the
		// total byte count.
		m.Size = 1
		for _, d := range dims {
			m.Size *= uint64(d)
		}
	case LayoutChunked:
		m.ChunkDims = dims
	}
	return nil
}

func (m *DataLayout) decodeCompact(c *cursor) {
	size := c.u16()
	m.CompactData = append([]byte(nil), c.take(int(size))...)
}

func (m *DataLayout) decodeContiguous(c *cursor, r *binary.Reader) {
	m.Address = c.uintN(r.OffsetSize())
	m.Size = c.uintN(r.LengthSize())
}

func (m *DataLayout) decodeV3(c *cursor, r *binary.Reader) error {
	m.Class = LayoutClass(c.u8())

	switch m.Class {
	case LayoutCompact:
		m.decodeCompact(c)

	case LayoutContiguous:
		m.decodeContiguous(c, r)

	case LayoutChunked:
		// Dimensionality is the dataspace rank plus one; the last
		// chunk dimension is the element size in bytes.
		ndims := int(c.u8())
		m.ChunkIndexAddr = c.uintN(r.OffsetSize())
		m.ChunkIndexType = ChunkIndexBTreeV1
		m.DimensionSizeBytes = 4
		m.ChunkDims = make([]uint32, ndims)
		for i := range m.ChunkDims {
			m.ChunkDims[i] = c.u32()
		}

	default:
		return fmt.Errorf("unsupported data layout class %d", m.Class)
	}
	return nil
}

func (m *DataLayout) decodeV4(c *cursor, r *binary.Reader) error {
	m.Class = LayoutClass(c.u8())

	switch m.Class {
	case LayoutCompact:
		// Same property encoding as v3.
		m.decodeCompact(c)
		return nil

	case LayoutContiguous:
		m.decodeContiguous(c, r)
		return nil

	case LayoutChunked:
		m.ChunkFlags = c.u8()
		ndims := int(c.u8())
		m.DimensionSizeBytes = c.u8()
		if c.bad {
			return fmt.Errorf("chunked layout v4 truncated")
		}
		width := int(m.DimensionSizeBytes)
		if width < 1 || width > 8 {
			return fmt.Errorf("chunked layout v4: bad dimension encoding size %d", width)
		}
		m.ChunkDims = make([]uint32, ndims)
		for i := range m.ChunkDims {
			m.ChunkDims[i] = uint32(c.uintN(width))
		}

		m.ChunkIndexType = ChunkIndexType(c.u8())
		switch m.ChunkIndexType {
		case ChunkIndexSingleChunk:
			// Filtered single chunks record their size and filter
			// mask in the message itself.
			if m.ChunkFlags&0x02 != 0 {
				m.FilteredChunkSize = uint32(c.uintN(r.LengthSize()))
				m.FilteredChunkMask = c.u32()
			}
		case ChunkIndexImplicit:
			// No index-specific fields.
		case ChunkIndexFixedArray:
			c.skip(1) // page bits
		case ChunkIndexExtensibleArray:
			c.skip(5) // max bits, index elements, min pointers, min elements, page bits
		case ChunkIndexBTreeV2:
			c.skip(6) // node size, split percent, merge percent
		default:
			return fmt.Errorf("chunked layout v4: unknown index type %d", m.ChunkIndexType)
		}
		m.ChunkIndexAddr = c.uintN(r.OffsetSize())
		return nil

	default:
		return fmt.Errorf("unsupported data layout class %d", m.Class)
	}
}
