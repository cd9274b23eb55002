package object

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

// SignatureV2 marks a version 2 object header. Version 1 headers have
// no signature; their first byte is the version number.
var SignatureV2 = []byte("OHDR")

var (
	ErrInvalidHeader      = errors.New("invalid object header")
	ErrUnsupportedVersion = errors.New("unsupported object header version")
	ErrChecksumMismatch   = errors.New("object header checksum mismatch")
)

// maxContinuationDepth bounds how many continuation blocks one header
// may chain through. Real headers use a handful; anything past this is
// a cycle in a corrupt file.
const maxContinuationDepth = 64

// Header is a decoded object header: the prefix fields plus the
// messages collected from the first block and every continuation.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8 // version 2 prefix flags
	RefCount uint32
	Messages []message.Message

	// Object times, stored only by version 2 headers that track them.
	AccessTime uint32
	ModTime    uint32
	ChangeTime uint32
	BirthTime  uint32
}

// Read parses the object header at address, following continuation
// blocks. Version 2 headers are recognized by the "OHDR" signature,
// version 1 headers by their leading version byte.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	hr := r.At(int64(address))

	peek, err := hr.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("object header at 0x%x: %w", address, err)
	}
	if bytes.Equal(peek, SignatureV2) {
		return readV2(hr, address)
	}
	if peek[0] == 1 {
		return readV1(hr, address)
	}
	return nil, fmt.Errorf("%w: no recognizable header at 0x%x", ErrInvalidHeader, address)
}

// GetMessage returns the first message of the given type, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			return msg
		}
	}
	return nil
}

// GetMessages returns every message of the given type in header order.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var out []message.Message
	for _, msg := range h.Messages {
		if msg.Type() == typ {
			out = append(out, msg)
		}
	}
	return out
}

// Dataspace returns the dataspace message, or nil if the object has
// none.
func (h *Header) Dataspace() *message.Dataspace {
	if msg, ok := h.GetMessage(message.TypeDataspace).(*message.Dataspace); ok {
		return msg
	}
	return nil
}

// Datatype returns the datatype message, or nil if the object has none.
func (h *Header) Datatype() *message.Datatype {
	if msg, ok := h.GetMessage(message.TypeDatatype).(*message.Datatype); ok {
		return msg
	}
	return nil
}

// DataLayout returns the data layout message, or nil if the object has
// none.
func (h *Header) DataLayout() *message.DataLayout {
	if msg, ok := h.GetMessage(message.TypeDataLayout).(*message.DataLayout); ok {
		return msg
	}
	return nil
}

// FilterPipeline returns the filter pipeline message, or nil for
// unfiltered objects.
func (h *Header) FilterPipeline() *message.FilterPipeline {
	if msg, ok := h.GetMessage(message.TypeFilterPipeline).(*message.FilterPipeline); ok {
		return msg
	}
	return nil
}
