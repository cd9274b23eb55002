package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Space allocation time values for fill value messages.
const (
	AllocTimeEarly       uint8 = 1
	AllocTimeLate        uint8 = 2
	AllocTimeIncremental uint8 = 3
)

// Fill write time values for fill value messages.
const (
	FillWriteAtAlloc uint8 = 0
	FillWriteNever   uint8 = 1
	FillWriteIfSet   uint8 = 2
)

// NewFillValue creates a version 2 fill value message with no explicit
// fill value. Contiguous datasets use late allocation, chunked use
// incremental.
func NewFillValue(allocTime uint8) *FillValue {
	return &FillValue{
		Version:        2,
		SpaceAllocTime: allocTime,
		FillWriteTime:  FillWriteIfSet,
		IsDefined:      false,
	}
}

// NewDefinedFillValue creates a version 2 fill value message carrying an
// explicit fill value in raw datatype bytes.
func NewDefinedFillValue(allocTime uint8, value []byte) *FillValue {
	return &FillValue{
		Version:        2,
		SpaceAllocTime: allocTime,
		FillWriteTime:  FillWriteIfSet,
		IsDefined:      true,
		Size:           uint32(len(value)),
		Value:          value,
	}
}

// Serialize writes the fill value message. Only version 2 is emitted;
// the size and value fields appear only when a fill value is defined.
func (m *FillValue) Serialize(w *binary.Writer) error {
	if m.Version != 2 {
		return fmt.Errorf("cannot serialize fill value version %d", m.Version)
	}

	defined := uint8(0)
	if m.IsDefined {
		defined = 1
	}
	if err := w.WriteBytes([]byte{m.Version, m.SpaceAllocTime, m.FillWriteTime, defined}); err != nil {
		return err
	}

	if !m.IsDefined {
		return nil
	}
	if err := w.WriteUint32(uint32(len(m.Value))); err != nil {
		return err
	}
	return w.WriteBytes(m.Value)
}

// SerializedSize returns the encoded size of the fill value message.
func (m *FillValue) SerializedSize(w *binary.Writer) int {
	size := 4
	if m.IsDefined {
		size += 4 + len(m.Value)
	}
	return size
}
