package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Serialization writes each class at the earliest version that can
// express it, which is what libhdf5 emits by default: version 1 for
// scalar classes, version 2 for arrays, and version 3 for compounds
// with their compact member encoding.

const (
	datatypeVersion1 = 1
	datatypeVersion2 = 2
	datatypeVersion3 = 3
)

// Serialize writes the datatype message.
func (m *Datatype) Serialize(w *binary.Writer) error {
	switch m.Class {
	case ClassFixedPoint:
		return m.serializeFixedPoint(w)
	case ClassFloatPoint:
		return m.serializeFloat(w)
	case ClassString:
		return m.serializeString(w)
	case ClassCompound:
		return m.serializeCompound(w)
	case ClassVarLen:
		return m.serializeVarLen(w)
	case ClassArray:
		return m.serializeArray(w)
	default:
		return fmt.Errorf("cannot serialize datatype class %d", m.Class)
	}
}

func (m *Datatype) writeHeader(w *binary.Writer, version int) error {
	if err := w.WriteUint8(uint8(version)<<4 | uint8(m.Class)); err != nil {
		return err
	}
	if err := w.WriteUintN(uint64(m.ClassBits), 3); err != nil {
		return err
	}
	return w.WriteUint32(m.Size)
}

func (m *Datatype) serializeFixedPoint(w *binary.Writer) error {
	if err := m.writeHeader(w, datatypeVersion1); err != nil {
		return err
	}
	if err := w.WriteUint16(m.BitOffset); err != nil {
		return err
	}
	return w.WriteUint16(m.BitPrecision)
}

func (m *Datatype) serializeFloat(w *binary.Writer) error {
	if err := m.writeHeader(w, datatypeVersion1); err != nil {
		return err
	}
	if len(m.Properties) != 12 {
		return fmt.Errorf("float datatype has %d property bytes, expected 12", len(m.Properties))
	}
	return w.WriteBytes(m.Properties)
}

func (m *Datatype) serializeString(w *binary.Writer) error {
	// Fixed-length strings have no properties beyond the bit field.
	return m.writeHeader(w, datatypeVersion1)
}

func (m *Datatype) serializeCompound(w *binary.Writer) error {
	if err := m.writeHeader(w, datatypeVersion3); err != nil {
		return err
	}
	offsetSize := memberOffsetSize(m.Size)
	for _, member := range m.Members {
		name := append([]byte(member.Name), 0)
		if err := w.WriteBytes(name); err != nil {
			return err
		}
		if err := w.WriteUintN(uint64(member.ByteOffset), offsetSize); err != nil {
			return err
		}
		if err := member.Type.Serialize(w); err != nil {
			return fmt.Errorf("member %q: %w", member.Name, err)
		}
	}
	return nil
}

func (m *Datatype) serializeVarLen(w *binary.Writer) error {
	if err := m.writeHeader(w, datatypeVersion1); err != nil {
		return err
	}
	if m.VarLenType == nil {
		return fmt.Errorf("vlen datatype has no base type")
	}
	return m.VarLenType.Serialize(w)
}

func (m *Datatype) serializeArray(w *binary.Writer) error {
	if err := m.writeHeader(w, datatypeVersion2); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(len(m.ArrayDims))); err != nil {
		return err
	}
	if err := w.WriteZeros(3); err != nil {
		return err
	}
	for _, dim := range m.ArrayDims {
		if err := w.WriteUint32(dim); err != nil {
			return err
		}
	}
	// Version 2 carries a permutation index per dimension. The
	// feature was never implemented, so the indices stay zero.
	for range m.ArrayDims {
		if err := w.WriteUint32(0); err != nil {
			return err
		}
	}
	if m.BaseType == nil {
		return fmt.Errorf("array datatype has no base type")
	}
	return m.BaseType.Serialize(w)
}

// SerializedSize returns the encoded size of the datatype message.
func (m *Datatype) SerializedSize(w *binary.Writer) int {
	size := 8 // class/version, bit field, element size
	switch m.Class {
	case ClassFixedPoint:
		size += 4
	case ClassFloatPoint:
		size += 12
	case ClassString:
		// No properties.
	case ClassCompound:
		offsetSize := memberOffsetSize(m.Size)
		for _, member := range m.Members {
			size += len(member.Name) + 1 + offsetSize
			size += member.Type.SerializedSize(w)
		}
	case ClassVarLen:
		if m.VarLenType != nil {
			size += m.VarLenType.SerializedSize(w)
		}
	case ClassArray:
		size += 4 + 8*len(m.ArrayDims)
		if m.BaseType != nil {
			size += m.BaseType.SerializedSize(w)
		}
	}
	return size
}

// memberOffsetSize returns the width of a version 3 compound member
// offset, the smallest integer that can hold the compound's size.
func memberOffsetSize(compoundSize uint32) int {
	switch {
	case compoundSize <= 0xFF:
		return 1
	case compoundSize <= 0xFFFF:
		return 2
	default:
		return 4
	}
}

// NewFixedPointDatatype returns an integer datatype of the given byte
// size.
func NewFixedPointDatatype(size uint32, signed bool, byteOrder ByteOrder) *Datatype {
	bits := uint32(byteOrder)
	if signed {
		bits |= 0x08
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		ClassBits:    bits,
		Size:         size,
		ByteOrder:    byteOrder,
		Signed:       signed,
		BitPrecision: uint16(size * 8),
	}
}

// NewFloatDatatype returns an IEEE 754 datatype of 4 or 8 bytes.
func NewFloatDatatype(size uint32, byteOrder ByteOrder) *Datatype {
	// Bit field: byte order, mantissa normalization "implied MSB",
	// sign bit position in bits 8-15.
	signPos := uint32(size*8 - 1)
	bits := uint32(byteOrder) | 0x20 | signPos<<8

	var props []byte
	switch size {
	case 4:
		props = floatProperties(32, 23, 8, 23, 127)
	case 8:
		props = floatProperties(64, 52, 11, 52, 1023)
	}
	return &Datatype{
		Class:      ClassFloatPoint,
		ClassBits:  bits,
		Size:       size,
		ByteOrder:  byteOrder,
		Properties: props,
	}
}

// floatProperties encodes the 12 property bytes of an IEEE float: bit
// offset, precision, exponent location and size, mantissa location
// and size, exponent bias.
func floatProperties(precision uint16, expLoc, expSize, manSize uint8, bias uint32) []byte {
	return []byte{
		0, 0,
		byte(precision), byte(precision >> 8),
		expLoc, expSize,
		0, manSize,
		byte(bias), byte(bias >> 8), byte(bias >> 16), byte(bias >> 24),
	}
}

// NewStringDatatype returns a fixed-length string datatype. Size
// includes the null terminator when padding is PadNullTerm.
func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype returns a variable-length string datatype.
// Elements on disk are 16-byte references into a global heap.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	// Bit field: type string in bits 0-3, null-terminated padding in
	// bits 4-7, character set in bits 8-11.
	return &Datatype{
		Class:          ClassVarLen,
		ClassBits:      1 | uint32(charset)<<8,
		Size:           16,
		IsVarLenString: true,
		CharSet:        charset,
		VarLenType:     NewStringDatatype(1, PadNullTerm, charset),
	}
}

// NewCompoundDatatype returns a compound datatype. Size is the full
// element size; member offsets are relative to the element start.
func NewCompoundDatatype(size uint32, members []CompoundMember) *Datatype {
	return &Datatype{
		Class:     ClassCompound,
		ClassBits: uint32(len(members)),
		Size:      size,
		Members:   members,
	}
}

// NewArrayDatatype returns a fixed-size array datatype.
func NewArrayDatatype(dims []uint32, baseType *Datatype) *Datatype {
	size := baseType.Size
	for _, dim := range dims {
		size *= dim
	}
	return &Datatype{
		Class:     ClassArray,
		Size:      size,
		ArrayDims: dims,
		BaseType:  baseType,
	}
}
