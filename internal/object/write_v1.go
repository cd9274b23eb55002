package object

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

// WriteHeaderV1 writes a version 1 object header at the current writer
// position, which must be 8-byte aligned: readers locate the message
// region by rounding the 12-byte prefix up to the next 8-byte boundary.
// Message sizes are stored padded to 8 bytes as the format requires.
// Returns the total bytes written.
func WriteHeaderV1(w *binary.Writer, messages []message.Message, refCount uint32) (int64, error) {
	startPos := w.Pos()
	if startPos%8 != 0 {
		return 0, fmt.Errorf("version 1 object header at unaligned address 0x%x", startPos)
	}

	serializable := serializableMessages(messages)

	var messagesSize int
	for _, s := range serializable {
		dataSize := s.SerializedSize(w)
		if dataSize > 0xFFF8 {
			return 0, fmt.Errorf("message type %d too large for version 1 header: %d bytes", s.Type(), dataSize)
		}
		messagesSize += 8 + alignV1(dataSize)
	}

	if err := w.WriteUint8(1); err != nil {
		return 0, err
	}
	if err := w.WriteUint8(0); err != nil { // reserved
		return 0, err
	}
	if err := w.WriteUint16(uint16(len(serializable))); err != nil {
		return 0, err
	}
	if err := w.WriteUint32(refCount); err != nil {
		return 0, err
	}
	if err := w.WriteUint32(uint32(messagesSize)); err != nil {
		return 0, err
	}
	if err := w.WriteZeros(4); err != nil { // pad prefix to 16 bytes
		return 0, err
	}

	for _, s := range serializable {
		dataSize := s.SerializedSize(w)
		padded := alignV1(dataSize)

		if err := w.WriteUint16(uint16(s.Type())); err != nil {
			return 0, err
		}
		if err := w.WriteUint16(uint16(padded)); err != nil {
			return 0, err
		}
		if err := w.WriteUint8(0); err != nil { // flags
			return 0, err
		}
		if err := w.WriteZeros(3); err != nil { // reserved
			return 0, err
		}
		if err := s.Serialize(w); err != nil {
			return 0, fmt.Errorf("serializing message type %d: %w", s.Type(), err)
		}
		if err := w.WriteZeros(padded - dataSize); err != nil {
			return 0, err
		}
	}

	return w.Pos() - startPos, nil
}

// HeaderSizeV1 returns the total byte size of a version 1 object header
// with the given messages, prefix and padding included.
func HeaderSizeV1(w *binary.Writer, messages []message.Message) int {
	size := 16
	for _, s := range serializableMessages(messages) {
		size += 8 + alignV1(s.SerializedSize(w))
	}
	return size
}

func serializableMessages(messages []message.Message) []message.Serializable {
	out := make([]message.Serializable, 0, len(messages))
	for _, msg := range messages {
		if s, ok := msg.(message.Serializable); ok {
			out = append(out, s)
		}
	}
	return out
}

func alignV1(n int) int {
	return (n + 7) &^ 7
}
