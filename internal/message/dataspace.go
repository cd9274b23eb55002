package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// DataspaceType distinguishes the three dataspace shapes.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0 // exactly one element, no dimensions
	DataspaceSimple DataspaceType = 1 // regular N-dimensional array
	DataspaceNull   DataspaceType = 2 // no elements at all
)

// Dataspace describes the shape of a dataset or attribute.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64 // nil when not stored, meaning same as Dimensions
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements returns the element count: the product of the dimensions
// for a simple space, 1 for scalar, 0 for null.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	default:
		return 0
	}
}

// IsScalar reports whether the space holds exactly one element.
func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }

// IsNull reports whether the space holds no elements.
func (m *Dataspace) IsNull() bool { return m.SpaceType == DataspaceNull }

func parseDataspace(data []byte, r *binary.Reader) (*Dataspace, error) {
	c := cursor{buf: data}
	ds := &Dataspace{
		Version: c.u8(),
		Rank:    int(c.u8()),
	}
	flags := c.u8()

	switch {
	case ds.Version >= 2:
		// v2 stores the space type explicitly.
		ds.SpaceType = DataspaceType(c.u8())
	case ds.Rank == 0:
		// v1 has no type field: rank 0 means scalar.
		c.skip(5) // reserved
		ds.SpaceType = DataspaceScalar
	default:
		c.skip(5)
		ds.SpaceType = DataspaceSimple
	}
	if c.bad {
		return nil, fmt.Errorf("dataspace message too short")
	}
	if ds.SpaceType != DataspaceSimple || ds.Rank == 0 {
		return ds, nil
	}

	// Dimension sizes use the file's length width.
	lengthSize := r.LengthSize()
	if lengthSize == 0 {
		lengthSize = 8
	}
	ds.Dimensions = make([]uint64, ds.Rank)
	for i := range ds.Dimensions {
		ds.Dimensions[i] = c.uintN(lengthSize)
	}
	if c.bad {
		return nil, fmt.Errorf("dataspace message truncated reading dimensions")
	}

	if flags&0x01 != 0 {
		ds.MaxDims = make([]uint64, ds.Rank)
		for i := range ds.MaxDims {
			ds.MaxDims[i] = c.uintN(lengthSize)
		}
		if c.bad {
			return nil, fmt.Errorf("dataspace message truncated reading max dimensions")
		}
	}
	return ds, nil
}
