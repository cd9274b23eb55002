package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Type identifies a header message type.
type Type uint16

const (
	TypeNIL                      Type = 0x0000
	TypeDataspace                Type = 0x0001
	TypeLinkInfo                 Type = 0x0002
	TypeDatatype                 Type = 0x0003
	TypeFillValueOld             Type = 0x0004
	TypeFillValue                Type = 0x0005
	TypeLink                     Type = 0x0006
	TypeExternalDataFiles        Type = 0x0007
	TypeDataLayout               Type = 0x0008
	TypeBogus                    Type = 0x0009
	TypeGroupInfo                Type = 0x000A
	TypeFilterPipeline           Type = 0x000B
	TypeAttribute                Type = 0x000C
	TypeObjectComment            Type = 0x000D
	TypeObjectModTime            Type = 0x000E
	TypeSharedMessageTable       Type = 0x000F
	TypeObjectHeaderContinuation Type = 0x0010
	TypeSymbolTable              Type = 0x0011
	TypeObjectModTimeOld         Type = 0x0012
	TypeBTreeKValues             Type = 0x0013
	TypeDriverInfo               Type = 0x0014
	TypeAttributeInfo            Type = 0x0015
	TypeObjectRefCount           Type = 0x0016
)

// Message is implemented by every decoded header message.
type Message interface {
	Type() Type
}

// Parse decodes one header message body. Types this package does not
// model are wrapped in Unknown rather than rejected, so headers with
// newer message types still load.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	switch typ {
	case TypeDataspace:
		return parseDataspace(data, r)
	case TypeDatatype:
		return parseDatatype(data, r)
	case TypeDataLayout:
		return parseDataLayout(data, r)
	case TypeFilterPipeline:
		return parseFilterPipeline(data, r)
	case TypeFillValue:
		return parseFillValue(data, r)
	case TypeAttribute:
		return parseAttribute(data, r)
	case TypeLink:
		return parseLink(data, r)
	case TypeLinkInfo:
		return parseLinkInfo(data, r)
	case TypeGroupInfo:
		return parseGroupInfo(data, r)
	case TypeSymbolTable:
		return parseSymbolTable(data, r)
	case TypeObjectHeaderContinuation:
		return ParseContinuation(data, r)
	case TypeObjectRefCount:
		return parseRefCount(data, r)
	default:
		return &Unknown{typ: typ, data: data}, nil
	}
}

// Unknown wraps a message type this package does not decode.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at the next block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

// ParseContinuation decodes a continuation message: the address and
// length of the next header block.
func ParseContinuation(data []byte, r *binary.Reader) (*Continuation, error) {
	c := cursor{buf: data}
	cont := &Continuation{
		Offset: c.uintN(r.OffsetSize()),
		Length: c.uintN(r.LengthSize()),
	}
	if c.bad {
		return nil, fmt.Errorf("continuation message too short")
	}
	return cont, nil
}

// cursor steps through a message body. A read past the end sets a
// sticky flag and yields zero values, so parsers can decode a whole
// fixed layout and check for truncation once at the end.
type cursor struct {
	buf []byte
	pos int
	bad bool
}

// take consumes the next n bytes, or flags the cursor when they are
// not there.
func (c *cursor) take(n int) []byte {
	if c.bad || n < 0 || n > len(c.buf)-c.pos {
		c.bad = true
		return nil
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 { return uint16(c.uintN(2)) }
func (c *cursor) u32() uint32 { return uint32(c.uintN(4)) }
func (c *cursor) u64() uint64 { return c.uintN(8) }

// uintN consumes an n-byte little-endian unsigned integer.
func (c *cursor) uintN(n int) uint64 {
	b := c.take(n)
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c *cursor) skip(n int) { c.take(n) }

// pad8 skips forward to the next multiple of 8 bytes from the start of
// the buffer, clamped to the end: several v1-era encodings pad
// embedded fields this way, and writers may drop padding after the
// final field.
func (c *cursor) pad8() {
	if rem := c.pos % 8; rem != 0 {
		n := 8 - rem
		if left := len(c.buf) - c.pos; !c.bad && n > left {
			n = left
		}
		c.skip(n)
	}
}

func (c *cursor) remaining() int {
	if c.bad {
		return 0
	}
	return len(c.buf) - c.pos
}

// rest consumes and returns everything left.
func (c *cursor) rest() []byte { return c.take(c.remaining()) }

// stringIn consumes exactly n bytes and returns the string up to the
// first null byte.
func (c *cursor) stringIn(n int) string {
	b := c.take(n)
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// cstring consumes a null-terminated string, including the terminator.
func (c *cursor) cstring() string {
	start := c.pos
	for !c.bad {
		b := c.take(1)
		if b == nil {
			return ""
		}
		if b[0] == 0 {
			return string(c.buf[start : c.pos-1])
		}
	}
	return ""
}
