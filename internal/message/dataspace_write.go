package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Serialize writes the Dataspace to the writer in its Version's format.
// Version 1 is what classic (v1 object header) files carry; version 2 is
// the compact form used by newer files.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	switch m.Version {
	case 1:
		return m.serializeV1(w)
	case 2:
		return m.serializeV2(w)
	default:
		return fmt.Errorf("cannot serialize dataspace version %d", m.Version)
	}
}

func (m *Dataspace) serializeV1(w *binary.Writer) error {
	// Version 1 layout:
	// Byte 0: Version (1)
	// Byte 1: Dimensionality (rank)
	// Byte 2: Flags (bit 0 = max dims present)
	// Bytes 3-7: Reserved
	// Followed by: dimensions, then max dimensions if present
	if m.SpaceType == DataspaceNull {
		return fmt.Errorf("null dataspace requires version 2")
	}
	if err := w.WriteUint8(1); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.Rank)); err != nil {
		return err
	}
	flags := uint8(0)
	if len(m.MaxDims) > 0 {
		flags |= 0x01
	}
	if err := w.WriteUint8(flags); err != nil {
		return err
	}
	if err := w.WriteZeros(5); err != nil {
		return err
	}
	return m.writeDims(w)
}

func (m *Dataspace) serializeV2(w *binary.Writer) error {
	// Version 2 layout:
	// Byte 0: Version (2)
	// Byte 1: Dimensionality (rank)
	// Byte 2: Flags (bit 0 = max dims present)
	// Byte 3: Type (0=scalar, 1=simple, 2=null)
	// Followed by: dimensions, then max dimensions if present
	if err := w.WriteUint8(2); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.Rank)); err != nil {
		return err
	}
	flags := uint8(0)
	if len(m.MaxDims) > 0 {
		flags |= 0x01
	}
	if err := w.WriteUint8(flags); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.SpaceType)); err != nil {
		return err
	}
	return m.writeDims(w)
}

func (m *Dataspace) writeDims(w *binary.Writer) error {
	for _, dim := range m.Dimensions {
		if err := w.WriteLength(dim); err != nil {
			return err
		}
	}
	for _, maxDim := range m.MaxDims {
		if err := w.WriteLength(maxDim); err != nil {
			return err
		}
	}
	return nil
}

// SerializedSize returns the size in bytes when serialized.
func (m *Dataspace) SerializedSize(w *binary.Writer) int {
	size := 4
	if m.Version == 1 {
		size = 8
	}
	size += m.Rank * w.LengthSize()
	if len(m.MaxDims) > 0 {
		size += m.Rank * w.LengthSize()
	}
	return size
}

// NewDataspace creates a simple Dataspace message. Version 1 is used because
// it is valid inside both v1 and v2 object headers.
func NewDataspace(dims []uint64, maxDims []uint64) *Dataspace {
	return &Dataspace{
		Version:    1,
		Rank:       len(dims),
		SpaceType:  DataspaceSimple,
		Dimensions: dims,
		MaxDims:    maxDims,
	}
}

// NewScalarDataspace creates a scalar Dataspace message.
func NewScalarDataspace() *Dataspace {
	return &Dataspace{
		Version:   1,
		Rank:      0,
		SpaceType: DataspaceScalar,
	}
}

// NewNullDataspace creates a null Dataspace message. Null dataspaces only
// exist in the version 2 encoding.
func NewNullDataspace() *Dataspace {
	return &Dataspace{
		Version:   2,
		Rank:      0,
		SpaceType: DataspaceNull,
	}
}
