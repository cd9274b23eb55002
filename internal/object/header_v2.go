package object

import (
	"bytes"
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

// signatureOCHK marks a version 2 continuation block.
var signatureOCHK = []byte("OCHK")

// Version 2 prefix flag bits.
const (
	flagSizeWidth   = 0x03 // width of the block size field is 1 << value
	flagTrackOrder  = 0x04 // messages carry a creation order field
	flagPhaseChange = 0x10 // attribute storage phase change values stored
	flagTimes       = 0x20 // four object times stored
)

// readV2 parses a version 2 header: the "OHDR" prefix with its optional
// fields, then messages up to the stored block size. The stored size
// counts the messages alone; a checksum over prefix and messages
// follows them, verified before anything is decoded.
func readV2(r *binary.Reader, address uint64) (*Header, error) {
	start := r.Pos()
	r.Skip(4) // signature, matched by Read

	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 2 {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	hdr := &Header{Version: 2, Address: address, Flags: flags, RefCount: 1}

	if flags&flagTimes != 0 {
		times, err := r.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		bo := r.ByteOrder()
		hdr.AccessTime = bo.Uint32(times[0:4])
		hdr.ModTime = bo.Uint32(times[4:8])
		hdr.ChangeTime = bo.Uint32(times[8:12])
		hdr.BirthTime = bo.Uint32(times[12:16])
	}
	if flags&flagPhaseChange != 0 {
		r.Skip(4) // max compact and min dense attribute counts
	}

	blockSize, err := r.ReadUintN(1 << (flags & flagSizeWidth))
	if err != nil {
		return nil, err
	}

	end := r.Pos() + int64(blockSize)
	if err := verifyChecksum(r, start, end); err != nil {
		return nil, err
	}
	if err := hdr.scanV2(r, end, flags&flagTrackOrder != 0, 0); err != nil {
		return nil, err
	}

	// The prefix has no link count field; objects with more than one
	// hard link carry a reference count message instead.
	if rc, ok := hdr.GetMessage(message.TypeObjectRefCount).(*message.ObjectRefCount); ok {
		hdr.RefCount = rc.RefCount
	}
	return hdr, nil
}

// scanV2 decodes version 2 messages until fewer bytes remain than one
// message header needs; writers may leave such a gap in place of a NIL
// message. Continuation messages are followed into their blocks.
func (h *Header) scanV2(r *binary.Reader, end int64, tracked bool, depth int) error {
	if depth > maxContinuationDepth {
		return fmt.Errorf("%w: more than %d continuation blocks", ErrInvalidHeader, maxContinuationDepth)
	}

	headerSize := int64(4)
	if tracked {
		headerSize += 2
	}

	for r.Pos()+headerSize <= end {
		msgType, err := r.ReadUint8()
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
		if tracked {
			r.Skip(2) // creation order
		}

		data, err := r.ReadBytes(int(dataSize))
		if err != nil {
			return err
		}
		if r.Pos() > end {
			return fmt.Errorf("%w: message runs past the header block", ErrInvalidHeader)
		}

		if message.Type(msgType) == message.TypeObjectHeaderContinuation {
			cont, err := message.ParseContinuation(data, r)
			if err != nil {
				return err
			}
			if err := h.readContinuationV2(r, cont, tracked, depth+1); err != nil {
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

// readContinuationV2 reads one continuation block: an "OCHK" signature,
// messages, and a trailing checksum, all three counted by the stored
// length.
func (h *Header) readContinuationV2(r *binary.Reader, cont *message.Continuation, tracked bool, depth int) error {
	if cont.Length < 8 {
		return fmt.Errorf("%w: %d byte continuation block", ErrInvalidHeader, cont.Length)
	}

	cr := r.At(int64(cont.Offset))
	sig, err := cr.ReadBytes(4)
	if err != nil {
		return err
	}
	if !bytes.Equal(sig, signatureOCHK) {
		return fmt.Errorf("%w: bad continuation signature %q at 0x%x", ErrInvalidHeader, sig, cont.Offset)
	}

	end := int64(cont.Offset) + int64(cont.Length) - 4
	if err := verifyChecksum(r, int64(cont.Offset), end); err != nil {
		return err
	}
	return h.scanV2(cr, end, tracked, depth)
}

// verifyChecksum compares the stored checksum at end against the bytes
// from start up to it.
func verifyChecksum(r *binary.Reader, start, end int64) error {
	raw, err := r.At(start).ReadBytes(int(end - start))
	if err != nil {
		return err
	}
	stored, err := r.At(end).ReadUint32()
	if err != nil {
		return err
	}
	if computed := binary.Lookup3(raw); computed != stored {
		return fmt.Errorf("%w at 0x%x: computed 0x%08x, stored 0x%08x",
			ErrChecksumMismatch, start, computed, stored)
	}
	return nil
}
