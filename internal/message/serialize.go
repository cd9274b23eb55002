package message

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// Serializable is implemented by messages this package can write back
// out. SerializedSize must agree exactly with what Serialize emits;
// object header layout is computed from it before anything is written.
type Serializable interface {
	Message
	Serialize(w *binary.Writer) error
	SerializedSize(w *binary.Writer) int
}

// Serialize writes msg if it is Serializable and is a no-op otherwise.
func Serialize(msg Message, w *binary.Writer) error {
	if s, ok := msg.(Serializable); ok {
		return s.Serialize(w)
	}
	return nil
}

// SerializedSize returns msg's encoded size, or 0 for messages that
// cannot be written.
func SerializedSize(msg Message, w *binary.Writer) int {
	if s, ok := msg.(Serializable); ok {
		return s.SerializedSize(w)
	}
	return 0
}
