package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/fennelab/hdf5/internal/message"
)

// Encode serializes src into the raw element layout of dt. src may be
// a single value, a slice, or a pointer to either; slice elements may
// themselves be interfaces or pointers.
//
// Each element occupies exactly dt.Size bytes regardless of the Go
// value's width, and values that do not fit the stored width report
// an error. Variable-length types cannot be encoded inline.
func Encode(dt *message.Datatype, src any) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	enc, err := newEncoder(dt)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(src)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("cannot encode nil value")
	}

	size := int(dt.Size)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		buf := make([]byte, size)
		if err := encodeElem(enc, buf, v); err != nil {
			return nil, err
		}
		return buf, nil
	}
	n := v.Len()
	buf := make([]byte, n*size)
	for i := 0; i < n; i++ {
		if err := encodeElem(enc, buf[i*size:(i+1)*size], v.Index(i)); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return buf, nil
}

// encodeFunc writes one element into dst, which is exactly the
// datatype's size.
type encodeFunc func(dst []byte, elem reflect.Value) error

func encodeElem(enc encodeFunc, dst []byte, elem reflect.Value) error {
	for elem.Kind() == reflect.Interface || elem.Kind() == reflect.Pointer {
		if elem.IsNil() {
			return fmt.Errorf("cannot encode nil value")
		}
		elem = elem.Elem()
	}
	return enc(dst, elem)
}

func newEncoder(dt *message.Datatype) (encodeFunc, error) {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield, message.ClassEnum:
		return intEncoder(dt)
	case message.ClassFloatPoint:
		return floatEncoder(dt)
	case message.ClassString:
		return stringEncoder(dt), nil
	case message.ClassVarLen:
		return nil, fmt.Errorf("variable-length data is written through the global heap, not encoded inline")
	}
	return nil, fmt.Errorf("cannot encode datatype class %d", dt.Class)
}

func intEncoder(dt *message.Datatype) (encodeFunc, error) {
	base := intBase(dt)
	if base == nil {
		return nil, fmt.Errorf("enum datatype missing integer base type")
	}
	size := int(base.Size)
	switch size {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("unsupported integer size %d", size)
	}
	if size != int(dt.Size) {
		return nil, fmt.Errorf("enum base width %d differs from element width %d", base.Size, dt.Size)
	}
	order := ByteOrder(base)
	signed := base.Signed
	return func(dst []byte, elem reflect.Value) error {
		var u uint64
		switch {
		case elem.CanInt():
			v := elem.Int()
			if !intFits(v, size, signed) {
				return fmt.Errorf("value %d does not fit %s", v, Describe(dt))
			}
			u = uint64(v)
		case elem.CanUint():
			u = elem.Uint()
			if !uintFits(u, size, signed) {
				return fmt.Errorf("value %d does not fit %s", u, Describe(dt))
			}
		default:
			return fmt.Errorf("cannot encode %s as %s", elem.Type(), Describe(dt))
		}
		putWord(dst, u, size, order)
		return nil
	}, nil
}

func floatEncoder(dt *message.Datatype) (encodeFunc, error) {
	order := ByteOrder(dt)
	switch dt.Size {
	case 4:
		return func(dst []byte, elem reflect.Value) error {
			f, err := floatValue(elem)
			if err != nil {
				return err
			}
			order.PutUint32(dst, math.Float32bits(float32(f)))
			return nil
		}, nil
	case 8:
		return func(dst []byte, elem reflect.Value) error {
			f, err := floatValue(elem)
			if err != nil {
				return err
			}
			order.PutUint64(dst, math.Float64bits(f))
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported float size %d", dt.Size)
}

func floatValue(elem reflect.Value) (float64, error) {
	switch {
	case elem.CanFloat():
		return elem.Float(), nil
	case elem.CanInt():
		return float64(elem.Int()), nil
	case elem.CanUint():
		return float64(elem.Uint()), nil
	}
	return 0, fmt.Errorf("cannot encode %s as float", elem.Type())
}

// stringEncoder fills the fixed-size field, null padded unless the
// datatype asks for space padding. Overlong strings are an error
// rather than being silently cut.
func stringEncoder(dt *message.Datatype) encodeFunc {
	size := int(dt.Size)
	pad := byte(0)
	if dt.StringPadding == message.PadSpacePad {
		pad = ' '
	}
	return func(dst []byte, elem reflect.Value) error {
		if elem.Kind() != reflect.String {
			return fmt.Errorf("cannot encode %s as string(%d)", elem.Type(), size)
		}
		s := elem.String()
		if len(s) > size {
			return fmt.Errorf("string of %d bytes does not fit string(%d)", len(s), size)
		}
		copy(dst, s)
		for i := len(s); i < size; i++ {
			dst[i] = pad
		}
		return nil
	}
}

// putWord writes exactly size bytes of u.
func putWord(dst []byte, u uint64, size int, order binary.ByteOrder) {
	switch size {
	case 1:
		dst[0] = byte(u)
	case 2:
		order.PutUint16(dst, uint16(u))
	case 4:
		order.PutUint32(dst, uint32(u))
	case 8:
		order.PutUint64(dst, u)
	}
}

func intFits(v int64, size int, signed bool) bool {
	if signed {
		if size == 8 {
			return true
		}
		limit := int64(1) << (8*size - 1)
		return v >= -limit && v < limit
	}
	if v < 0 {
		return false
	}
	if size == 8 {
		return true
	}
	return uint64(v) < 1<<(8*size)
}

func uintFits(u uint64, size int, signed bool) bool {
	if signed {
		if size == 8 {
			return u <= math.MaxInt64
		}
		return u < 1<<(8*size-1)
	}
	if size == 8 {
		return true
	}
	return u < 1<<(8*size)
}

// GoTypeToDatatype maps a Go type onto the datatype written for it.
// Pointer, slice and array types map through their element type.
func GoTypeToDatatype(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8:
		return message.NewFixedPointDatatype(1, true, message.OrderLE), nil
	case reflect.Int16:
		return message.NewFixedPointDatatype(2, true, message.OrderLE), nil
	case reflect.Int32:
		return message.NewFixedPointDatatype(4, true, message.OrderLE), nil
	case reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(8, true, message.OrderLE), nil
	case reflect.Uint8:
		return message.NewFixedPointDatatype(1, false, message.OrderLE), nil
	case reflect.Uint16:
		return message.NewFixedPointDatatype(2, false, message.OrderLE), nil
	case reflect.Uint32:
		return message.NewFixedPointDatatype(4, false, message.OrderLE), nil
	case reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(8, false, message.OrderLE), nil
	case reflect.Float32:
		return message.NewFloatDatatype(4, message.OrderLE), nil
	case reflect.Float64:
		return message.NewFloatDatatype(8, message.OrderLE), nil
	case reflect.String:
		return message.NewVarLenStringDatatype(message.CharsetUTF8), nil
	}
	return nil, fmt.Errorf("no HDF5 datatype for Go type %s", t)
}
