package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// ObjectRefCount is an object reference count message. Version 2
// headers have no hard link count field of their own, so objects with
// more than one hard link carry one of these.
type ObjectRefCount struct {
	RefCount uint32
}

func (m *ObjectRefCount) Type() Type { return TypeObjectRefCount }

func parseRefCount(data []byte, r *binary.Reader) (*ObjectRefCount, error) {
	c := cursor{buf: data}
	version := c.u8()
	count := c.u32()
	if c.bad {
		return nil, fmt.Errorf("reference count message too short: %d bytes", len(data))
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported reference count version: %d", version)
	}
	return &ObjectRefCount{RefCount: count}, nil
}

// NewObjectRefCount returns a reference count message.
func NewObjectRefCount(count uint32) *ObjectRefCount {
	return &ObjectRefCount{RefCount: count}
}

// Serialize writes the reference count message.
func (m *ObjectRefCount) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(0); err != nil {
		return err
	}
	return w.WriteUint32(m.RefCount)
}

// SerializedSize returns the encoded size of the message.
func (m *ObjectRefCount) SerializedSize(w *binary.Writer) int {
	return 5
}
