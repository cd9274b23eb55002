package object

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

// MinGroupChunkSize pads a group's message region up to the size h5py
// reserves for a fresh group, leaving room for links to grow in place.
const MinGroupChunkSize = 120

// v2MessageHeaderSize is the message header this writer emits: type,
// 16-bit size, flags. Creation order tracking is never enabled.
const v2MessageHeaderSize = 4

// maxV2MessageSize caps one message body at what the 16-bit size field
// can record.
const maxV2MessageSize = 0xFFFF

// v2Layout fixes the geometry of a version 2 header before anything is
// written.
type v2Layout struct {
	messages  int // serialized messages with their headers
	padding   int // NIL message bytes appended to reach the block size
	blockSize int // stored size of the message region
	sizeWidth int // bytes of the block size field
}

func resolveV2Layout(w *binary.Writer, msgs []message.Serializable, minBlock int) v2Layout {
	var l v2Layout
	for _, s := range msgs {
		l.messages += v2MessageHeaderSize + s.SerializedSize(w)
	}
	l.blockSize = l.messages
	if l.blockSize < minBlock {
		l.blockSize = minBlock
	}
	l.padding = l.blockSize - l.messages
	if l.padding > 0 && l.padding < v2MessageHeaderSize {
		// Too small for a NIL message; pad with a bare header instead.
		l.padding = v2MessageHeaderSize
		l.blockSize = l.messages + l.padding
	}
	l.sizeWidth = blockSizeFieldBytes(l.blockSize)
	return l
}

// size returns the full header size: prefix, messages, padding, and
// checksum.
func (l v2Layout) size() int {
	return 6 + l.sizeWidth + l.blockSize + 4
}

// WriteHeader writes a version 2 object header at the current writer
// position and returns the bytes written.
func WriteHeader(w *binary.Writer, messages []message.Message) (int64, error) {
	return WriteHeaderWithMinChunk(w, messages, 0)
}

// WriteHeaderWithMinChunk writes a version 2 object header, padding the
// message region with a NIL message up to at least minBlock bytes. The
// stored block size counts messages and padding only; the checksum sits
// after them. The header is assembled in memory first so the checksum
// can cover it.
func WriteHeaderWithMinChunk(w *binary.Writer, messages []message.Message, minBlock int) (int64, error) {
	serializable := serializableMessages(messages)
	for _, s := range serializable {
		if size := s.SerializedSize(w); size > maxV2MessageSize {
			return 0, fmt.Errorf("message type %d too large for a version 2 header: %d bytes", s.Type(), size)
		}
	}
	l := resolveV2Layout(w, serializable, minBlock)

	bw, buf := binary.NewBuffered(w.Config())

	if err := bw.WriteBytes(SignatureV2); err != nil {
		return 0, err
	}
	if err := bw.WriteUint8(2); err != nil {
		return 0, err
	}
	if err := bw.WriteUint8(sizeWidthFlags(l.sizeWidth)); err != nil {
		return 0, err
	}
	if err := bw.WriteUintN(uint64(l.blockSize), l.sizeWidth); err != nil {
		return 0, err
	}

	for _, s := range serializable {
		if err := writeV2Message(bw, s); err != nil {
			return 0, fmt.Errorf("serializing message type %d: %w", s.Type(), err)
		}
	}

	if l.padding > 0 {
		if err := bw.WriteUint8(0); err != nil { // NIL message
			return 0, err
		}
		if err := bw.WriteUint16(uint16(l.padding - v2MessageHeaderSize)); err != nil {
			return 0, err
		}
		if err := bw.WriteUint8(0); err != nil {
			return 0, err
		}
		if err := bw.WriteZeros(l.padding - v2MessageHeaderSize); err != nil {
			return 0, err
		}
	}

	if err := bw.WriteUint32(binary.Lookup3(buf.Bytes())); err != nil {
		return 0, err
	}

	if err := w.WriteBytes(buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(l.size()), nil
}

func writeV2Message(w *binary.Writer, s message.Serializable) error {
	if err := w.WriteUint8(uint8(s.Type())); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(s.SerializedSize(w))); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil { // flags
		return err
	}
	return s.Serialize(w)
}

// sizeWidthFlags encodes the block size field width into prefix flag
// bits 0-1.
func sizeWidthFlags(width int) uint8 {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	}
	return 3
}

// blockSizeFieldBytes returns the narrowest standard width that holds
// size.
func blockSizeFieldBytes(size int) int {
	switch {
	case size <= 0xFF:
		return 1
	case size <= 0xFFFF:
		return 2
	case size <= 0xFFFFFFFF:
		return 4
	}
	return 8
}

// HeaderSize returns the byte size of the header WriteHeader would
// produce for these messages.
func HeaderSize(w *binary.Writer, messages []message.Message) int {
	return HeaderSizeWithMinChunk(w, messages, 0)
}

// HeaderSizeWithMinChunk returns the byte size of the header
// WriteHeaderWithMinChunk would produce.
func HeaderSizeWithMinChunk(w *binary.Writer, messages []message.Message, minBlock int) int {
	return resolveV2Layout(w, serializableMessages(messages), minBlock).size()
}

// NewGroupHeader returns the messages of a new-style group holding the
// given links compactly in its header: link info and group info with
// library defaults, then one link message per child.
func NewGroupHeader(links []*message.Link) []message.Message {
	msgs := make([]message.Message, 0, len(links)+2)
	msgs = append(msgs, message.NewLinkInfo(), message.NewGroupInfo())
	for _, link := range links {
		msgs = append(msgs, link)
	}
	return msgs
}
