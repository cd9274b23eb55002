package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// FillValueStatus describes whether a fill value was recorded.
type FillValueStatus uint8

const (
	FillUndefined   FillValueStatus = 0
	FillDefault     FillValueStatus = 1
	FillUserDefined FillValueStatus = 2
)

// FillValue carries the byte pattern used for unwritten dataset
// elements, plus the allocation and write-time policy fields.
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	IsDefined      bool
	Size           uint32
	Value          []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func parseFillValue(data []byte, r *binary.Reader) (*FillValue, error) {
	c := cursor{buf: data}
	fv := &FillValue{Version: c.u8()}
	if c.bad {
		return nil, fmt.Errorf("fill value message too short")
	}

	switch fv.Version {
	case 1, 2:
		// Explicit one-byte fields, then an optional sized value.
		fv.SpaceAllocTime = c.u8()
		fv.FillWriteTime = c.u8()
		fv.IsDefined = c.u8() != 0
		if c.bad {
			return nil, fmt.Errorf("fill value message too short")
		}
		if fv.IsDefined && c.remaining() >= 4 {
			fv.Size = c.u32()
			if int(fv.Size) <= c.remaining() {
				fv.Value = append([]byte(nil), c.take(int(fv.Size))...)
			}
		}

	case 3:
		// The policy fields collapse into one flags byte.
		flags := c.u8()
		if c.bad {
			return nil, fmt.Errorf("fill value message too short")
		}
		fv.SpaceAllocTime = flags & 0x03
		fv.FillWriteTime = (flags >> 2) & 0x03
		fv.IsDefined = flags&0x10 == 0
		if fv.IsDefined && flags&0x20 != 0 {
			fv.Size = c.u32()
			fv.Value = append([]byte(nil), c.take(int(fv.Size))...)
			if c.bad {
				return nil, fmt.Errorf("fill value data truncated")
			}
		}

	default:
		return nil, fmt.Errorf("unsupported fill value version: %d", fv.Version)
	}
	return fv, nil
}
