package hdf5

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/dtype"
	"github.com/fennelab/hdf5/internal/message"
	"github.com/fennelab/hdf5/internal/object"
)

// Attribute is a named value attached to a group or dataset. The raw
// bytes live in the object header message; Read and the typed helpers
// convert them on every call.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader // resolves variable-length data in global heaps
}

// headerAttrNames lists the attribute names on an object header, in
// header order.
func headerAttrNames(h *object.Header) []string {
	msgs := h.GetMessages(message.TypeAttribute)
	if len(msgs) == 0 {
		return nil
	}
	names := make([]string, len(msgs))
	for i, m := range msgs {
		names[i] = m.(*message.Attribute).Name
	}
	return names
}

// headerAttr finds one attribute on an object header, or nil.
func headerAttr(h *object.Header, name string, r *binary.Reader) *Attribute {
	for _, m := range h.GetMessages(message.TypeAttribute) {
		if attr := m.(*message.Attribute); attr.Name == name {
			return &Attribute{msg: attr, reader: r}
		}
	}
	return nil
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.msg.Name }

// Shape returns the value's dimensions, nil for scalars.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

// NumElements returns the number of stored elements.
func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsScalar reports whether the attribute holds a single value.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// DtypeClass returns the stored datatype class.
func (a *Attribute) DtypeClass() message.DatatypeClass {
	if a.msg.Datatype == nil {
		return 0
	}
	return a.msg.Datatype.Class
}

// IsCompound reports whether the value has a compound datatype.
func (a *Attribute) IsCompound() bool {
	return a.msg.Datatype != nil && a.msg.Datatype.Class == message.ClassCompound
}

// IsArray reports whether the value has an array datatype.
func (a *Attribute) IsArray() bool {
	return a.msg.Datatype != nil && a.msg.Datatype.Class == message.ClassArray
}

// Read decodes the attribute value into dest, a pointer to a slice,
// scalar or interface value. Numeric destinations may be wider than the
// stored type; a value that does not fit reports an error.
func (a *Attribute) Read(dest any) error {
	if a.msg.Datatype == nil {
		return fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	if a.msg.Data == nil {
		return fmt.Errorf("attribute %q has no data", a.msg.Name)
	}
	return dtype.ConvertWithReader(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.reader)
}

// attrValues reads the whole attribute as a slice of T.
func attrValues[T any](a *Attribute) ([]T, error) {
	var vals []T
	if err := a.Read(&vals); err != nil {
		return nil, err
	}
	return vals, nil
}

// attrScalar reads the first element as a T.
func attrScalar[T any](a *Attribute) (T, error) {
	vals, err := attrValues[T](a)
	if err == nil && len(vals) == 0 {
		err = fmt.Errorf("attribute %q is empty", a.msg.Name)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return vals[0], nil
}

func (a *Attribute) ReadInt64() ([]int64, error)     { return attrValues[int64](a) }
func (a *Attribute) ReadInt32() ([]int32, error)     { return attrValues[int32](a) }
func (a *Attribute) ReadFloat64() ([]float64, error) { return attrValues[float64](a) }
func (a *Attribute) ReadFloat32() ([]float32, error) { return attrValues[float32](a) }
func (a *Attribute) ReadString() ([]string, error)   { return attrValues[string](a) }

// ReadCompound reads a compound-typed value as one map per element,
// keyed by member name.
func (a *Attribute) ReadCompound() ([]map[string]any, error) {
	return attrValues[map[string]any](a)
}

func (a *Attribute) ReadScalarInt64() (int64, error)     { return attrScalar[int64](a) }
func (a *Attribute) ReadScalarFloat64() (float64, error) { return attrScalar[float64](a) }
func (a *Attribute) ReadScalarString() (string, error)   { return attrScalar[string](a) }

// ReadScalarCompound reads a scalar compound value.
func (a *Attribute) ReadScalarCompound() (map[string]any, error) {
	return attrScalar[map[string]any](a)
}

// ReadArray reads an array-typed value. The concrete type follows the
// base type: one slice per element, a slice of slices for non-scalar
// dataspaces.
func (a *Attribute) ReadArray() (any, error) {
	var v any
	err := a.Read(&v)
	return v, err
}

// Value reads the attribute in its natural Go form: int64, uint64,
// float64, string or map[string]any for scalars, slices of those for
// non-scalar dataspaces. Datatype classes outside that set fall back to
// the generic decoding of Read.
func (a *Attribute) Value() (any, error) {
	dt := a.msg.Datatype
	if dt == nil {
		return nil, fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}

	switch dt.Class {
	case message.ClassFixedPoint:
		if dt.Signed {
			return attrCollapsed[int64](a)
		}
		return attrCollapsed[uint64](a)
	case message.ClassFloatPoint:
		return attrCollapsed[float64](a)
	case message.ClassString:
		return attrCollapsed[string](a)
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return attrCollapsed[string](a)
		}
	case message.ClassEnum:
		// Enum values surface as their integer base type.
		return attrCollapsed[int64](a)
	case message.ClassCompound:
		return attrCollapsed[map[string]any](a)
	}

	var v any
	if err := a.Read(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// attrCollapsed reads a []T and unwraps the lone element of scalar
// dataspaces.
func attrCollapsed[T any](a *Attribute) (any, error) {
	vals, err := attrValues[T](a)
	if err != nil {
		return nil, err
	}
	if a.IsScalar() && len(vals) == 1 {
		return vals[0], nil
	}
	return vals, nil
}
