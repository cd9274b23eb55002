package message

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// NewGroupInfo returns a group info message with library defaults,
// which omit both optional field pairs.
func NewGroupInfo() *GroupInfo {
	return &GroupInfo{Version: 0, Flags: 0}
}

// Serialize writes the group info message.
func (m *GroupInfo) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(m.Version); err != nil {
		return err
	}
	if err := w.WriteUint8(m.Flags); err != nil {
		return err
	}
	if m.Flags&0x01 != 0 {
		if err := w.WriteUint16(m.MaxCompactLinks); err != nil {
			return err
		}
		if err := w.WriteUint16(m.MinDenseLinks); err != nil {
			return err
		}
	}
	if m.Flags&0x02 != 0 {
		if err := w.WriteUint16(m.EstNumEntries); err != nil {
			return err
		}
		if err := w.WriteUint16(m.EstLinkNameLen); err != nil {
			return err
		}
	}
	return nil
}

// SerializedSize returns the encoded size of the group info message.
func (m *GroupInfo) SerializedSize(w *binary.Writer) int {
	size := 2
	if m.Flags&0x01 != 0 {
		size += 4
	}
	if m.Flags&0x02 != 0 {
		size += 4
	}
	return size
}
