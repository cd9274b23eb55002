package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// LinkInfo is a link info message. New-style groups carry one to say
// where their links live: on the header as Link messages, or in a
// fractal heap once the compact form overflows.
type LinkInfo struct {
	Version                uint8
	Flags                  uint8
	MaxCreationIndex       uint64 // present if flag bit 0 set
	FractalHeapAddr        uint64
	NameIndexBTreeAddr     uint64
	CreationOrderBTreeAddr uint64 // present if flag bit 1 set
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// UsesFractalHeap reports whether the group's links live in a fractal
// heap rather than in Link messages on the header itself.
func (m *LinkInfo) UsesFractalHeap() bool {
	return m.FractalHeapAddr != UndefinedAddress && m.FractalHeapAddr != 0
}

func parseLinkInfo(data []byte, r *binary.Reader) (*LinkInfo, error) {
	c := cursor{buf: data}
	m := &LinkInfo{
		Version: c.u8(),
		Flags:   c.u8(),
	}
	if c.bad {
		return nil, fmt.Errorf("link info message too short: %d bytes", len(data))
	}
	if m.Version != 0 {
		return nil, fmt.Errorf("unsupported link info version: %d", m.Version)
	}

	if m.Flags&0x01 != 0 {
		m.MaxCreationIndex = c.u64()
	}
	offsetSize := r.OffsetSize()
	m.FractalHeapAddr = c.uintN(offsetSize)
	m.NameIndexBTreeAddr = c.uintN(offsetSize)
	if m.Flags&0x02 != 0 {
		m.CreationOrderBTreeAddr = c.uintN(offsetSize)
	}
	if c.bad {
		return nil, fmt.Errorf("link info message truncated")
	}
	return m, nil
}
