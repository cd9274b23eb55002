package object

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

// readV1 parses a version 1 header: a 12-byte prefix padded out to 16,
// then 8-byte aligned messages. The stored header size counts the
// message bytes of the first block only; continuation blocks carry
// their own lengths.
func readV1(r *binary.Reader, address uint64) (*Header, error) {
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}
	r.Skip(1) // reserved

	numMessages, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	refCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	headerSize, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}

	hdr := &Header{
		Version:  1,
		Address:  address,
		RefCount: refCount,
		Messages: make([]message.Message, 0, numMessages),
	}

	// The message region starts on the next 8-byte boundary, 4 bytes
	// past the prefix.
	r.Align(8)
	if err := hdr.scanV1(r, r.Pos()+int64(headerSize), 0); err != nil {
		return nil, err
	}
	return hdr, nil
}

// scanV1 decodes version 1 messages until end, following continuation
// messages into their blocks. depth counts continuation hops so a
// corrupt chain cannot loop.
func (h *Header) scanV1(r *binary.Reader, end int64, depth int) error {
	if depth > maxContinuationDepth {
		return fmt.Errorf("%w: more than %d continuation blocks", ErrInvalidHeader, maxContinuationDepth)
	}

	for r.Pos() < end {
		msgType, err := r.ReadUint16()
		if err != nil {
			return err
		}
		dataSize, err := r.ReadUint16()
		if err != nil {
			return err
		}
		flags, err := r.ReadUint8()
		if err != nil {
			return err
		}
		r.Skip(3) // reserved

		data, err := r.ReadBytes(int(dataSize))
		if err != nil {
			return err
		}
		r.Align(8)
		if r.Pos() > end {
			return fmt.Errorf("%w: message runs past the header block", ErrInvalidHeader)
		}

		if message.Type(msgType) == message.TypeObjectHeaderContinuation {
			cont, err := message.ParseContinuation(data, r)
			if err != nil {
				return err
			}
			cr := r.At(int64(cont.Offset))
			if err := h.scanV1(cr, int64(cont.Offset+cont.Length), depth+1); err != nil {
				return err
			}
			continue
		}
		if msgType == 0 {
			continue
		}

		msg, err := message.Parse(message.Type(msgType), data, flags, r)
		if err != nil {
			// Bodies this build cannot decode are skipped; the rest of
			// the header still loads.
			continue
		}
		h.Messages = append(h.Messages, msg)
	}
	return nil
}
