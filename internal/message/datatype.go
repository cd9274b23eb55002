package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// DatatypeClass is the top-level class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

// ByteOrder is the storage order of numeric values.
type ByteOrder uint8

const (
	OrderLE   ByteOrder = 0
	OrderBE   ByteOrder = 1
	OrderVAX  ByteOrder = 2
	OrderNone ByteOrder = 3
)

// StringPadding is the padding convention of fixed-length strings.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet is the character encoding of string data.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype is a datatype message. Class selects which of the
// class-specific fields are meaningful.
type Datatype struct {
	Class     DatatypeClass
	ClassBits uint32 // the 24-bit class bit field, as stored
	Size      uint32 // size of one element in bytes

	ByteOrder ByteOrder

	// Fixed-point
	BitOffset    uint16
	BitPrecision uint16
	Signed       bool

	// String
	StringPadding StringPadding
	CharSet       CharacterSet

	// Compound
	Members []CompoundMember

	// Array and enum both carry a base type; arrays add dimensions.
	ArrayDims []uint32
	BaseType  *Datatype

	// Enum
	EnumNames  []string
	EnumValues []int64

	// Variable-length
	VarLenType     *Datatype
	IsVarLenString bool

	// Raw class properties where we keep them: the 12 float property
	// bytes, or an opaque type's tag.
	Properties []byte
}

// CompoundMember is one field of a compound datatype.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsInteger reports whether values are fixed-point integers.
func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }

// IsFloat reports whether values are floating-point.
func (m *Datatype) IsFloat() bool { return m.Class == ClassFloatPoint }

// IsString reports whether values are strings, fixed or
// variable-length.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

// IsCompound reports whether values are structures.
func (m *Datatype) IsCompound() bool { return m.Class == ClassCompound }

// IsArray reports whether values are fixed-size arrays.
func (m *Datatype) IsArray() bool { return m.Class == ClassArray }

// IsVarLen reports whether values are variable-length sequences.
func (m *Datatype) IsVarLen() bool { return m.Class == ClassVarLen }

func parseDatatype(data []byte, r *binary.Reader) (*Datatype, error) {
	dt, _, err := parseDatatypeWithSize(data, r)
	return dt, err
}

// parseDatatypeWithSize decodes one datatype and reports exactly how
// many bytes it occupied, so nested types (compound members, array and
// vlen bases) can be decoded in sequence.
func parseDatatypeWithSize(data []byte, r *binary.Reader) (*Datatype, int, error) {
	c := cursor{buf: data}
	head := c.u8()
	bits := uint32(c.uintN(3))
	size := c.u32()
	if c.bad {
		return nil, 0, fmt.Errorf("datatype message too short")
	}

	dt := &Datatype{
		Class:     DatatypeClass(head & 0x0F),
		ClassBits: bits,
		Size:      size,
	}
	version := int(head >> 4)

	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Signed = bits&0x08 != 0
		dt.BitOffset = c.u16()
		dt.BitPrecision = c.u16()

	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		dt.Properties = append([]byte(nil), c.take(12)...)

	case ClassTime:
		dt.ByteOrder = ByteOrder(bits & 0x01)
		c.skip(2) // bit precision

	case ClassString:
		dt.StringPadding = StringPadding(bits & 0x0F)
		dt.CharSet = CharacterSet((bits >> 4) & 0x0F)

	case ClassOpaque:
		// The tag length lives in the bit field.
		dt.Properties = append([]byte(nil), c.take(int(bits&0xFF))...)

	case ClassCompound:
		n := int(bits & 0xFFFF)
		dt.Members = make([]CompoundMember, 0, n)
		for i := 0; i < n; i++ {
			member, err := parseCompoundMember(&c, r, version, size)
			if err != nil {
				return nil, 0, fmt.Errorf("compound member %d: %w", i, err)
			}
			dt.Members = append(dt.Members, member)
		}

	case ClassReference:
		// No properties.

	case ClassEnum:
		if err := parseEnumProperties(&c, r, dt, version); err != nil {
			return nil, 0, err
		}

	case ClassVarLen:
		dt.IsVarLenString = bits&0x0F == 1
		dt.StringPadding = StringPadding((bits >> 4) & 0x0F)
		dt.CharSet = CharacterSet((bits >> 8) & 0x0F)
		base, n, err := parseDatatypeWithSize(c.buf[c.pos:], r)
		if err != nil {
			return nil, 0, fmt.Errorf("vlen base type: %w", err)
		}
		dt.VarLenType = base
		c.skip(n)

	case ClassArray:
		ndims := int(c.u8())
		if version < 3 {
			c.skip(3) // reserved
		}
		dt.ArrayDims = make([]uint32, ndims)
		for i := range dt.ArrayDims {
			dt.ArrayDims[i] = c.u32()
		}
		if version < 3 {
			c.skip(4 * ndims) // permutation indices, never implemented
		}
		if c.bad {
			return nil, 0, fmt.Errorf("array datatype truncated")
		}
		base, n, err := parseDatatypeWithSize(c.buf[c.pos:], r)
		if err != nil {
			return nil, 0, fmt.Errorf("array base type: %w", err)
		}
		dt.BaseType = base
		c.skip(n)

	default:
		return nil, 0, fmt.Errorf("unknown datatype class %d", dt.Class)
	}

	if c.bad {
		return nil, 0, fmt.Errorf("datatype class %d truncated", dt.Class)
	}
	return dt, c.pos, nil
}

// parseCompoundMember decodes one member in place. The layout changed
// twice: v1 pads the name and carries a 28-byte dimension block that
// later versions express as an array member type, v2 drops the block,
// and v3 drops the padding and shrinks the offset field.
func parseCompoundMember(c *cursor, r *binary.Reader, version int, compoundSize uint32) (CompoundMember, error) {
	var member CompoundMember
	member.Name = c.cstring()
	if version < 3 {
		c.skip(namePadding(len(member.Name)))
	}

	var dims []uint32
	switch {
	case version >= 3:
		member.ByteOffset = uint32(c.uintN(memberOffsetSize(compoundSize)))
	case version == 2:
		member.ByteOffset = c.u32()
	default:
		member.ByteOffset = c.u32()
		ndims := int(c.u8())
		c.skip(3) // reserved
		c.skip(8) // dimension permutation plus reserved
		if ndims > 4 {
			return member, fmt.Errorf("member %q has %d dimensions", member.Name, ndims)
		}
		all := [4]uint32{c.u32(), c.u32(), c.u32(), c.u32()}
		dims = all[:ndims]
	}
	if c.bad {
		return member, fmt.Errorf("member %q truncated", member.Name)
	}

	mt, n, err := parseDatatypeWithSize(c.buf[c.pos:], r)
	if err != nil {
		return member, fmt.Errorf("member %q type: %w", member.Name, err)
	}
	c.skip(n)

	// Old-style per-member dimensions become an array type, which is
	// how the format expresses them since v2.
	if len(dims) > 0 {
		total := mt.Size
		for _, d := range dims {
			total *= d
		}
		mt = &Datatype{
			Class:     ClassArray,
			Size:      total,
			ArrayDims: dims,
			BaseType:  mt,
		}
	}
	member.Type = mt
	return member, nil
}

// parseEnumProperties decodes the base type, names, and values of an
// enum. Values are widened to int64 using the base type's order and
// signedness.
func parseEnumProperties(c *cursor, r *binary.Reader, dt *Datatype, version int) error {
	n := int(dt.ClassBits & 0xFFFF)
	base, consumed, err := parseDatatypeWithSize(c.buf[c.pos:], r)
	if err != nil {
		return fmt.Errorf("enum base type: %w", err)
	}
	dt.BaseType = base
	c.skip(consumed)

	dt.EnumNames = make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := c.cstring()
		if version < 3 {
			c.skip(namePadding(len(name)))
		}
		dt.EnumNames = append(dt.EnumNames, name)
	}

	dt.EnumValues = make([]int64, 0, n)
	for i := 0; i < n; i++ {
		raw := c.take(int(base.Size))
		if c.bad {
			return fmt.Errorf("enum values truncated")
		}
		dt.EnumValues = append(dt.EnumValues, decodeEnumValue(raw, base))
	}
	return nil
}

func decodeEnumValue(raw []byte, base *Datatype) int64 {
	var v uint64
	if base.ByteOrder == OrderBE {
		for _, b := range raw {
			v = v<<8 | uint64(b)
		}
	} else {
		for i := len(raw) - 1; i >= 0; i-- {
			v = v<<8 | uint64(raw[i])
		}
	}
	if base.Signed && len(raw) > 0 && len(raw) < 8 {
		// Sign-extend from the base type's width.
		shift := 64 - 8*len(raw)
		return int64(v<<shift) >> shift
	}
	return int64(v)
}

// namePadding returns the bytes of padding after a null-terminated
// name of the given length, which pre-v3 encodings round up to a
// multiple of 8.
func namePadding(nameLen int) int {
	return (8 - (nameLen+1)%8) % 8
}
