package message

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// UndefinedAddress is the HDF5 undefined address value.
const UndefinedAddress = ^uint64(0)

// Serialize writes the LinkInfo to the writer. The fractal heap and name
// index addresses are always present, undefined when the group has no
// dense link storage.
func (m *LinkInfo) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(m.Version); err != nil {
		return err
	}
	if err := w.WriteUint8(m.Flags); err != nil {
		return err
	}

	if m.Flags&0x01 != 0 {
		if err := w.WriteUint64(m.MaxCreationIndex); err != nil {
			return err
		}
	}

	if err := w.WriteOffset(m.FractalHeapAddr); err != nil {
		return err
	}
	if err := w.WriteOffset(m.NameIndexBTreeAddr); err != nil {
		return err
	}

	if m.Flags&0x02 != 0 {
		if err := w.WriteOffset(m.CreationOrderBTreeAddr); err != nil {
			return err
		}
	}

	return nil
}

// SerializedSize returns the size in bytes when serialized.
func (m *LinkInfo) SerializedSize(w *binary.Writer) int {
	size := 2 + 2*w.OffsetSize()
	if m.Flags&0x01 != 0 {
		size += 8
	}
	if m.Flags&0x02 != 0 {
		size += w.OffsetSize()
	}
	return size
}

// NewLinkInfo creates a minimal LinkInfo message with no dense storage.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{
		Version:            0,
		Flags:              0,
		FractalHeapAddr:    UndefinedAddress,
		NameIndexBTreeAddr: UndefinedAddress,
	}
}
