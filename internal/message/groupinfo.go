package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// GroupInfo is a group info message. It tunes when a new-style group
// converts between compact links on the header and dense fractal-heap
// storage; all fields are advisory for reading.
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16 // present if flags bit 0 set
	MinDenseLinks   uint16 // present if flags bit 0 set
	EstNumEntries   uint16 // present if flags bit 1 set
	EstLinkNameLen  uint16 // present if flags bit 1 set
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func parseGroupInfo(data []byte, r *binary.Reader) (*GroupInfo, error) {
	c := cursor{buf: data}
	m := &GroupInfo{
		Version: c.u8(),
		Flags:   c.u8(),
	}
	if c.bad {
		return nil, fmt.Errorf("group info message too short: %d bytes", len(data))
	}
	if m.Version != 0 {
		return nil, fmt.Errorf("unsupported group info version: %d", m.Version)
	}

	if m.Flags&0x01 != 0 {
		m.MaxCompactLinks = c.u16()
		m.MinDenseLinks = c.u16()
	}
	if m.Flags&0x02 != 0 {
		m.EstNumEntries = c.u16()
		m.EstLinkNameLen = c.u16()
	}
	if c.bad {
		return nil, fmt.Errorf("group info message truncated")
	}
	return m, nil
}
