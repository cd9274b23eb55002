package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"

	"github.com/fennelab/hdf5/internal/message"
)

// GoType returns the Go type that values of dt decode to. Compound
// types map to structs with exported field names; decoding keeps the
// original member names by producing maps instead, see Convert.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}

	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		return intType(int(dt.Size), dt.Signed)

	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
		return nil, fmt.Errorf("unsupported float size %d", dt.Size)

	case message.ClassString:
		return reflect.TypeOf(""), nil

	case message.ClassOpaque:
		return reflect.TypeOf([]byte(nil)), nil

	case message.ClassCompound:
		return structType(dt)

	case message.ClassEnum:
		base := intBase(dt)
		if base == nil {
			return nil, fmt.Errorf("enum datatype missing integer base type")
		}
		return intType(int(base.Size), base.Signed)

	case message.ClassVarLen:
		if dt.IsVarLenString {
			return reflect.TypeOf(""), nil
		}
		if dt.VarLenType == nil {
			return reflect.TypeOf([]byte(nil)), nil
		}
		elem, err := GoType(dt.VarLenType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil

	case message.ClassArray:
		if dt.BaseType == nil {
			return nil, fmt.Errorf("array datatype missing base type")
		}
		if len(dt.ArrayDims) == 0 {
			return nil, fmt.Errorf("array datatype missing dimensions")
		}
		t, err := GoType(dt.BaseType)
		if err != nil {
			return nil, err
		}
		for i := len(dt.ArrayDims) - 1; i >= 0; i-- {
			t = reflect.ArrayOf(int(dt.ArrayDims[i]), t)
		}
		return t, nil
	}
	return nil, fmt.Errorf("no Go type for datatype class %d", dt.Class)
}

func intType(size int, signed bool) (reflect.Type, error) {
	switch size {
	case 1:
		if signed {
			return reflect.TypeOf(int8(0)), nil
		}
		return reflect.TypeOf(uint8(0)), nil
	case 2:
		if signed {
			return reflect.TypeOf(int16(0)), nil
		}
		return reflect.TypeOf(uint16(0)), nil
	case 4:
		if signed {
			return reflect.TypeOf(int32(0)), nil
		}
		return reflect.TypeOf(uint32(0)), nil
	case 8:
		if signed {
			return reflect.TypeOf(int64(0)), nil
		}
		return reflect.TypeOf(uint64(0)), nil
	}
	return nil, fmt.Errorf("unsupported integer size %d", size)
}

func structType(dt *message.Datatype) (reflect.Type, error) {
	if len(dt.Members) == 0 {
		return nil, fmt.Errorf("compound datatype has no members")
	}
	fields := make([]reflect.StructField, len(dt.Members))
	seen := make(map[string]bool, len(dt.Members))
	for i, m := range dt.Members {
		ft, err := GoType(m.Type)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", m.Name, err)
		}
		name := exportName(m.Name)
		for seen[name] {
			name += "_"
		}
		seen[name] = true
		fields[i] = reflect.StructField{Name: name, Type: ft}
	}
	return reflect.StructOf(fields), nil
}

// exportName mangles an HDF5 member name into an exported Go
// identifier: a leading lowercase letter is capitalized, characters
// outside [A-Za-z0-9_] become underscores, and names that still do
// not start with an uppercase letter get an "F" prefix.
func exportName(name string) string {
	if name == "" {
		return "Field"
	}
	rs := []rune(name)
	for i, r := range rs {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9', r == '_':
		default:
			rs[i] = '_'
		}
	}
	if rs[0] >= 'a' && rs[0] <= 'z' {
		rs[0] -= 'a' - 'A'
	}
	if rs[0] < 'A' || rs[0] > 'Z' {
		return "F" + string(rs)
	}
	return string(rs)
}

// intBase resolves dt to the fixed-point type its values are read as:
// fixed-point and bitfield types stand for themselves, enums defer to
// their base type. Returns nil for non-integer classes.
func intBase(dt *message.Datatype) *message.Datatype {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		return dt
	case message.ClassEnum:
		if b := dt.BaseType; b != nil && b.Class == message.ClassFixedPoint {
			return b
		}
	}
	return nil
}

// ByteOrder returns the byte order dt's values are stored in. VAX and
// order-free types fall back to little-endian.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Describe renders a short human-readable name for dt in the style of
// Go type syntax: "int32", "string(16)", "[2][3]int16",
// "compound{x: int32, y: float64}". Big-endian numeric types carry a
// "BE" suffix.
func Describe(dt *message.Datatype) string {
	if dt == nil {
		return "unknown"
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		return intName(int(dt.Size), dt.Signed) + beSuffix(dt)

	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return "float32" + beSuffix(dt)
		case 8:
			return "float64" + beSuffix(dt)
		}
		return fmt.Sprintf("float(%d)", dt.Size)

	case message.ClassTime:
		return "time"

	case message.ClassString:
		return fmt.Sprintf("string(%d)", dt.Size)

	case message.ClassBitfield:
		return fmt.Sprintf("bitfield%d", 8*dt.Size)

	case message.ClassOpaque:
		return fmt.Sprintf("opaque(%d)", dt.Size)

	case message.ClassCompound:
		var b strings.Builder
		b.WriteString("compound{")
		for i, m := range dt.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m.Name)
			b.WriteString(": ")
			b.WriteString(Describe(m.Type))
		}
		b.WriteByte('}')
		return b.String()

	case message.ClassReference:
		return "reference"

	case message.ClassEnum:
		base := "int"
		if ib := intBase(dt); ib != nil {
			base = intName(int(ib.Size), ib.Signed)
		}
		if n := len(dt.EnumNames); n > 0 && n <= 4 {
			return fmt.Sprintf("enum %s{%s}", base, strings.Join(dt.EnumNames, ", "))
		}
		return fmt.Sprintf("enum %s (%d values)", base, len(dt.EnumValues))

	case message.ClassVarLen:
		if dt.IsVarLenString {
			return "string"
		}
		return "vlen " + Describe(dt.VarLenType)

	case message.ClassArray:
		var b strings.Builder
		for _, d := range dt.ArrayDims {
			fmt.Fprintf(&b, "[%d]", d)
		}
		b.WriteString(Describe(dt.BaseType))
		return b.String()
	}
	return fmt.Sprintf("class %d", dt.Class)
}

func intName(size int, signed bool) string {
	if signed {
		return fmt.Sprintf("int%d", 8*size)
	}
	return fmt.Sprintf("uint%d", 8*size)
}

func beSuffix(dt *message.Datatype) string {
	if dt.ByteOrder == message.OrderBE {
		return " BE"
	}
	return ""
}
