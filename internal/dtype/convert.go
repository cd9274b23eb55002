package dtype

import (
	"fmt"
	"math"
	"reflect"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/heap"
	"github.com/fennelab/hdf5/internal/message"
)

// Convert decodes n raw elements of dt into dest, which must be a
// pointer to a slice, map, string or numeric scalar. Variable-length
// data needs ConvertWithReader.
func Convert(dt *message.Datatype, data []byte, n uint64, dest any) error {
	return ConvertWithReader(dt, data, n, dest, nil)
}

// ConvertWithReader decodes n raw elements of dt into dest, resolving
// variable-length values through r's global heap collections.
//
// Slice destinations are resized to exactly n elements. Their element
// type may be wider or narrower than the stored type; a value that
// does not fit reports an error rather than truncating. Interface
// destinations receive the natural Go value of the data: a single
// value when n is 1, a typed slice otherwise.
func ConvertWithReader(dt *message.Datatype, data []byte, n uint64, dest any, r *binary.Reader) error {
	d, err := newDecoder(dt, r)
	if err != nil {
		return err
	}
	if err := d.checkLen(data, n); err != nil {
		return err
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer, got %T", dest)
	}

	count := int(n)
	if handled, err := d.decodeTyped(data, count, dest); handled || err != nil {
		return err
	}
	return d.decode(data, count, dv.Elem())
}

// decoder turns raw stored elements into Go values. The element
// closure is chosen once from the datatype class, so converting a
// slice pays the class dispatch a single time.
type decoder struct {
	dt     *message.Datatype
	stride int
	elem   func(b []byte) (any, error)
	reader *binary.Reader
	heaps  map[uint64]*heap.GlobalHeap
}

func newDecoder(dt *message.Datatype, r *binary.Reader) (*decoder, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	if dt.Size == 0 {
		return nil, fmt.Errorf("datatype class %d has zero size", dt.Class)
	}
	d := &decoder{dt: dt, stride: int(dt.Size), reader: r}

	var err error
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassBitfield:
		d.elem, err = intElem(dt)

	case message.ClassEnum:
		base := intBase(dt)
		if base == nil {
			return nil, fmt.Errorf("enum datatype missing integer base type")
		}
		if int(base.Size) > d.stride {
			return nil, fmt.Errorf("enum base type wider than its %d byte element", d.stride)
		}
		d.elem, err = intElem(base)

	case message.ClassFloatPoint:
		d.elem, err = floatElem(dt)

	case message.ClassString:
		pad := dt.StringPadding
		d.elem = func(b []byte) (any, error) { return fixedString(b, pad), nil }

	case message.ClassOpaque:
		d.elem = func(b []byte) (any, error) { return append([]byte(nil), b...), nil }

	case message.ClassCompound:
		err = d.bindCompound()

	case message.ClassArray:
		err = d.bindArray()

	case message.ClassVarLen:
		err = d.bindVarLen()

	default:
		return nil, fmt.Errorf("cannot convert datatype class %d", dt.Class)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *decoder) checkLen(data []byte, n uint64) error {
	if n > uint64(math.MaxInt)/uint64(d.stride) {
		return fmt.Errorf("element count %d too large", n)
	}
	if need := n * uint64(d.stride); uint64(len(data)) < need {
		return fmt.Errorf("decoding %d elements of %d bytes: data truncated at %d bytes",
			n, d.stride, len(data))
	}
	return nil
}

func (d *decoder) at(data []byte, i int) []byte {
	return data[i*d.stride : (i+1)*d.stride]
}

// decode is the reflection path: dest is the already dereferenced
// destination value.
func (d *decoder) decode(data []byte, n int, dest reflect.Value) error {
	switch dest.Kind() {
	case reflect.Slice:
		switch {
		case dest.Len() < n:
			dest.Set(reflect.MakeSlice(dest.Type(), n, n))
		case dest.Len() > n:
			dest.Set(dest.Slice(0, n))
		}
		for i := 0; i < n; i++ {
			v, err := d.elem(d.at(data, i))
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if err := assign(dest.Index(i), v); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil

	case reflect.Interface:
		return d.decodeAny(data, n, dest)

	default:
		// Scalar destination: the first element decoded as a single
		// value.
		if n == 0 {
			return fmt.Errorf("no elements to decode into %s", dest.Type())
		}
		v, err := d.elem(d.at(data, 0))
		if err != nil {
			return err
		}
		return assign(dest, v)
	}
}

// decodeAny fills an interface destination with natural Go values.
func (d *decoder) decodeAny(data []byte, n int, dest reflect.Value) error {
	if n == 1 {
		v, err := d.elem(d.at(data, 0))
		if err != nil {
			return err
		}
		dest.Set(reflect.ValueOf(v))
		return nil
	}
	nt, err := naturalType(d.dt)
	if err != nil {
		return err
	}
	s := reflect.MakeSlice(reflect.SliceOf(nt), n, n)
	for i := 0; i < n; i++ {
		v, err := d.elem(d.at(data, i))
		if err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if err := assign(s.Index(i), v); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	dest.Set(s)
	return nil
}

// assign stores a decoded value into dest, widening or narrowing
// numerics as the destination requires.
func assign(dest reflect.Value, v any) error {
	if v == nil {
		return fmt.Errorf("no value for %s", dest.Type())
	}
	if dest.Kind() == reflect.Interface {
		dest.Set(reflect.ValueOf(v))
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return assignInt(dest, rv.Int())
	case rv.CanUint():
		return assignUint(dest, rv.Uint())
	case rv.CanFloat():
		if k := dest.Kind(); k == reflect.Float32 || k == reflect.Float64 {
			dest.SetFloat(rv.Float())
			return nil
		}
	case rv.Kind() == reflect.String:
		if dest.Kind() == reflect.String {
			dest.SetString(rv.String())
			return nil
		}
	default:
		if rv.Type().AssignableTo(dest.Type()) {
			dest.Set(rv)
			return nil
		}
	}
	return fmt.Errorf("cannot store %s into %s", rv.Type(), dest.Type())
}

func assignInt(dest reflect.Value, v int64) error {
	switch dest.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if dest.OverflowInt(v) {
			return fmt.Errorf("value %d overflows %s", v, dest.Type())
		}
		dest.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v < 0 || dest.OverflowUint(uint64(v)) {
			return fmt.Errorf("value %d overflows %s", v, dest.Type())
		}
		dest.SetUint(uint64(v))
	case reflect.Float32, reflect.Float64:
		dest.SetFloat(float64(v))
	default:
		return fmt.Errorf("cannot store integer into %s", dest.Type())
	}
	return nil
}

func assignUint(dest reflect.Value, v uint64) error {
	switch dest.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v > math.MaxInt64 || dest.OverflowInt(int64(v)) {
			return fmt.Errorf("value %d overflows %s", v, dest.Type())
		}
		dest.SetInt(int64(v))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if dest.OverflowUint(v) {
			return fmt.Errorf("value %d overflows %s", v, dest.Type())
		}
		dest.SetUint(v)
	case reflect.Float32, reflect.Float64:
		dest.SetFloat(float64(v))
	default:
		return fmt.Errorf("cannot store integer into %s", dest.Type())
	}
	return nil
}

// sized returns s with exactly n elements, reallocating when short.
func sized[T any](s []T, n int) []T {
	if len(s) < n {
		return make([]T, n)
	}
	return s[:n]
}

// intLayout reports whether stored elements are integers of exactly
// the given size and signedness, one per stride.
func (d *decoder) intLayout(size int, signed bool) bool {
	b := intBase(d.dt)
	return b != nil && int(b.Size) == size && b.Signed == signed && d.stride == size
}

// decodeTyped handles destination types whose elements match or widen
// the stored type without going through reflection. Returns false
// when dest needs the generic path.
func (d *decoder) decodeTyped(data []byte, n int, dest any) (bool, error) {
	switch out := dest.(type) {
	case *[]int8:
		if !d.intLayout(1, true) {
			return false, nil
		}
		*out = sized(*out, n)
		for i := 0; i < n; i++ {
			(*out)[i] = int8(data[i])
		}
		return true, nil

	case *[]uint8:
		if !d.intLayout(1, false) {
			return false, nil
		}
		*out = sized(*out, n)
		copy(*out, data[:n])
		return true, nil

	case *[]int16:
		if !d.intLayout(2, true) {
			return false, nil
		}
		order := ByteOrder(intBase(d.dt))
		*out = sized(*out, n)
		for i := 0; i < n; i++ {
			(*out)[i] = int16(order.Uint16(data[i*2:]))
		}
		return true, nil

	case *[]uint16:
		if !d.intLayout(2, false) {
			return false, nil
		}
		order := ByteOrder(intBase(d.dt))
		*out = sized(*out, n)
		for i := 0; i < n; i++ {
			(*out)[i] = order.Uint16(data[i*2:])
		}
		return true, nil

	case *[]int32:
		if !d.intLayout(4, true) {
			return false, nil
		}
		order := ByteOrder(intBase(d.dt))
		*out = sized(*out, n)
		for i := 0; i < n; i++ {
			(*out)[i] = int32(order.Uint32(data[i*4:]))
		}
		return true, nil

	case *[]uint32:
		if !d.intLayout(4, false) {
			return false, nil
		}
		order := ByteOrder(intBase(d.dt))
		*out = sized(*out, n)
		for i := 0; i < n; i++ {
			(*out)[i] = order.Uint32(data[i*4:])
		}
		return true, nil

	case *[]int64:
		// Widening entry point: integer data of any size reads as
		// int64.
		b := intBase(d.dt)
		if b == nil || d.stride != int(b.Size) {
			return false, nil
		}
		read, err := wordReader(b)
		if err != nil {
			return false, nil
		}
		*out = sized(*out, n)
		if b.Signed {
			shift := 64 - 8*d.stride
			for i := 0; i < n; i++ {
				(*out)[i] = int64(read(data[i*d.stride:])<<shift) >> shift
			}
			return true, nil
		}
		for i := 0; i < n; i++ {
			u := read(data[i*d.stride:])
			if u > math.MaxInt64 {
				return true, fmt.Errorf("element %d: value %d overflows int64", i, u)
			}
			(*out)[i] = int64(u)
		}
		return true, nil

	case *[]uint64:
		b := intBase(d.dt)
		if b == nil || b.Signed || d.stride != int(b.Size) {
			return false, nil
		}
		read, err := wordReader(b)
		if err != nil {
			return false, nil
		}
		*out = sized(*out, n)
		for i := 0; i < n; i++ {
			(*out)[i] = read(data[i*d.stride:])
		}
		return true, nil

	case *[]float32:
		if d.dt.Class != message.ClassFloatPoint || d.stride != 4 {
			return false, nil
		}
		order := ByteOrder(d.dt)
		*out = sized(*out, n)
		for i := 0; i < n; i++ {
			(*out)[i] = math.Float32frombits(order.Uint32(data[i*4:]))
		}
		return true, nil

	case *[]float64:
		if d.dt.Class != message.ClassFloatPoint || (d.stride != 4 && d.stride != 8) {
			return false, nil
		}
		order := ByteOrder(d.dt)
		*out = sized(*out, n)
		if d.stride == 4 {
			for i := 0; i < n; i++ {
				(*out)[i] = float64(math.Float32frombits(order.Uint32(data[i*4:])))
			}
			return true, nil
		}
		for i := 0; i < n; i++ {
			(*out)[i] = math.Float64frombits(order.Uint64(data[i*8:]))
		}
		return true, nil

	case *[]string:
		switch {
		case d.dt.Class == message.ClassString:
			pad := d.dt.StringPadding
			*out = sized(*out, n)
			for i := 0; i < n; i++ {
				(*out)[i] = fixedString(d.at(data, i), pad)
			}
			return true, nil
		case d.dt.Class == message.ClassVarLen && d.dt.IsVarLenString:
			*out = sized(*out, n)
			for i := 0; i < n; i++ {
				v, err := d.elem(d.at(data, i))
				if err != nil {
					return true, fmt.Errorf("element %d: %w", i, err)
				}
				(*out)[i] = v.(string)
			}
			return true, nil
		}
		return false, nil
	}
	return false, nil
}

// wordReader returns a raw zero-extended load of one dt-sized word.
func wordReader(dt *message.Datatype) (func([]byte) uint64, error) {
	order := ByteOrder(dt)
	switch dt.Size {
	case 1:
		return func(b []byte) uint64 { return uint64(b[0]) }, nil
	case 2:
		return func(b []byte) uint64 { return uint64(order.Uint16(b)) }, nil
	case 4:
		return func(b []byte) uint64 { return uint64(order.Uint32(b)) }, nil
	case 8:
		return func(b []byte) uint64 { return order.Uint64(b) }, nil
	}
	return nil, fmt.Errorf("unsupported integer size %d", dt.Size)
}

// intElem builds the element reader for a fixed-point type, producing
// the natural-width Go value.
func intElem(dt *message.Datatype) (func([]byte) (any, error), error) {
	read, err := wordReader(dt)
	if err != nil {
		return nil, err
	}
	if dt.Signed {
		switch dt.Size {
		case 1:
			return func(b []byte) (any, error) { return int8(read(b)), nil }, nil
		case 2:
			return func(b []byte) (any, error) { return int16(read(b)), nil }, nil
		case 4:
			return func(b []byte) (any, error) { return int32(read(b)), nil }, nil
		default:
			return func(b []byte) (any, error) { return int64(read(b)), nil }, nil
		}
	}
	switch dt.Size {
	case 1:
		return func(b []byte) (any, error) { return uint8(read(b)), nil }, nil
	case 2:
		return func(b []byte) (any, error) { return uint16(read(b)), nil }, nil
	case 4:
		return func(b []byte) (any, error) { return uint32(read(b)), nil }, nil
	default:
		return func(b []byte) (any, error) { return read(b), nil }, nil
	}
}

func floatElem(dt *message.Datatype) (func([]byte) (any, error), error) {
	order := ByteOrder(dt)
	switch dt.Size {
	case 4:
		return func(b []byte) (any, error) { return math.Float32frombits(order.Uint32(b)), nil }, nil
	case 8:
		return func(b []byte) (any, error) { return math.Float64frombits(order.Uint64(b)), nil }, nil
	}
	return nil, fmt.Errorf("unsupported float size %d", dt.Size)
}

// fixedString extracts a fixed-size string field: data stops at the
// first null byte, and space padding is trimmed from the end.
func fixedString(b []byte, pad message.StringPadding) string {
	end := len(b)
	for i, c := range b {
		if c == 0 {
			end = i
			break
		}
	}
	if pad == message.PadSpacePad {
		for end > 0 && b[end-1] == ' ' {
			end--
		}
	}
	return string(b[:end])
}

func (d *decoder) bindCompound() error {
	type member struct {
		name string
		off  int
		dec  *decoder
	}
	members := make([]member, 0, len(d.dt.Members))
	for _, m := range d.dt.Members {
		if m.Type == nil {
			return fmt.Errorf("compound member %q has no type", m.Name)
		}
		md, err := newDecoder(m.Type, d.reader)
		if err != nil {
			return fmt.Errorf("compound member %q: %w", m.Name, err)
		}
		if int(m.ByteOffset)+md.stride > d.stride {
			return fmt.Errorf("compound member %q extends past the %d byte element", m.Name, d.stride)
		}
		members = append(members, member{name: m.Name, off: int(m.ByteOffset), dec: md})
	}
	d.elem = func(b []byte) (any, error) {
		out := make(map[string]any, len(members))
		for _, m := range members {
			v, err := m.dec.elem(b[m.off : m.off+m.dec.stride])
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", m.name, err)
			}
			out[m.name] = v
		}
		return out, nil
	}
	return nil
}

func (d *decoder) bindArray() error {
	if d.dt.BaseType == nil || len(d.dt.ArrayDims) == 0 {
		return fmt.Errorf("array datatype missing base type or dimensions")
	}
	base, err := newDecoder(d.dt.BaseType, d.reader)
	if err != nil {
		return fmt.Errorf("array base type: %w", err)
	}
	count := 1
	for _, dim := range d.dt.ArrayDims {
		count *= int(dim)
	}
	if count*base.stride > d.stride {
		return fmt.Errorf("array of %d elements overruns its %d byte size", count, d.stride)
	}
	nt, err := naturalType(d.dt.BaseType)
	if err != nil {
		return err
	}
	st := reflect.SliceOf(nt)
	d.elem = func(b []byte) (any, error) {
		s := reflect.MakeSlice(st, count, count)
		for i := 0; i < count; i++ {
			v, err := base.elem(b[i*base.stride : (i+1)*base.stride])
			if err != nil {
				return nil, err
			}
			if err := assign(s.Index(i), v); err != nil {
				return nil, err
			}
		}
		return s.Interface(), nil
	}
	return nil
}

func (d *decoder) bindVarLen() error {
	if d.dt.IsVarLenString {
		d.elem = d.vlenString
		return nil
	}
	if d.dt.VarLenType == nil {
		d.elem = d.vlenObject
		return nil
	}
	base, err := newDecoder(d.dt.VarLenType, d.reader)
	if err != nil {
		return fmt.Errorf("vlen base type: %w", err)
	}
	nt, err := naturalType(d.dt.VarLenType)
	if err != nil {
		return err
	}
	st := reflect.SliceOf(nt)
	d.elem = func(b []byte) (any, error) { return d.vlenSequence(base, st, b) }
	return nil
}

// vlenRef decodes the stored reference of a variable-length element:
// a 4 byte count, the global heap collection address, and a 4 byte
// object index. A zero or undefined address marks an empty value.
func (d *decoder) vlenRef(b []byte) (n int, id heap.GlobalHeapID, empty bool, err error) {
	if len(b) < 4 {
		return 0, id, false, fmt.Errorf("variable-length element too short")
	}
	n = int(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	id, err = heap.ParseGlobalHeapID(b[4:], d.offsetSize())
	if err != nil {
		return 0, id, false, err
	}
	if id.CollectionAddress == 0 ||
		(d.reader != nil && d.reader.IsUndefinedOffset(id.CollectionAddress)) {
		empty = true
	}
	return n, id, empty, nil
}

func (d *decoder) offsetSize() int {
	if d.reader != nil {
		return d.reader.OffsetSize()
	}
	return 8
}

func (d *decoder) collection(addr uint64) (*heap.GlobalHeap, error) {
	if gh, ok := d.heaps[addr]; ok {
		return gh, nil
	}
	if d.reader == nil {
		return nil, fmt.Errorf("variable-length data at heap 0x%x needs a file reader", addr)
	}
	gh, err := heap.ReadGlobalHeap(d.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("reading global heap at 0x%x: %w", addr, err)
	}
	if d.heaps == nil {
		d.heaps = make(map[uint64]*heap.GlobalHeap)
	}
	d.heaps[addr] = gh
	return gh, nil
}

func (d *decoder) vlenString(b []byte) (any, error) {
	n, id, empty, err := d.vlenRef(b)
	if err != nil {
		return nil, err
	}
	if empty {
		return "", nil
	}
	gh, err := d.collection(id.CollectionAddress)
	if err != nil {
		return nil, err
	}
	obj, err := gh.GetObject(uint16(id.ObjectIndex))
	if err != nil {
		return nil, err
	}
	// The stored count is the string length; heap objects may carry
	// trailing terminators from other writers.
	if n < len(obj) {
		obj = obj[:n]
	}
	return string(obj), nil
}

func (d *decoder) vlenSequence(base *decoder, st reflect.Type, b []byte) (any, error) {
	n, id, empty, err := d.vlenRef(b)
	if err != nil {
		return nil, err
	}
	if empty {
		return reflect.MakeSlice(st, 0, 0).Interface(), nil
	}
	gh, err := d.collection(id.CollectionAddress)
	if err != nil {
		return nil, err
	}
	obj, err := gh.GetObject(uint16(id.ObjectIndex))
	if err != nil {
		return nil, err
	}
	if n*base.stride > len(obj) {
		return nil, fmt.Errorf("variable-length sequence of %d elements overruns its heap object", n)
	}
	s := reflect.MakeSlice(st, n, n)
	for i := 0; i < n; i++ {
		v, err := base.elem(obj[i*base.stride : (i+1)*base.stride])
		if err != nil {
			return nil, err
		}
		if err := assign(s.Index(i), v); err != nil {
			return nil, err
		}
	}
	return s.Interface(), nil
}

// vlenObject returns the raw heap payload of a variable-length
// element whose base type is unknown.
func (d *decoder) vlenObject(b []byte) (any, error) {
	n, id, empty, err := d.vlenRef(b)
	if err != nil {
		return nil, err
	}
	if empty {
		return []byte{}, nil
	}
	gh, err := d.collection(id.CollectionAddress)
	if err != nil {
		return nil, err
	}
	obj, err := gh.GetObject(uint16(id.ObjectIndex))
	if err != nil {
		return nil, err
	}
	if n < len(obj) {
		obj = obj[:n]
	}
	return obj, nil
}

// naturalType is the element type produced for untyped destinations.
// It differs from GoType in that compounds decode to maps keyed by
// member name and fixed arrays flatten to slices.
func naturalType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	switch dt.Class {
	case message.ClassCompound:
		return reflect.TypeOf(map[string]any(nil)), nil
	case message.ClassArray:
		if dt.BaseType == nil {
			return nil, fmt.Errorf("array datatype missing base type")
		}
		elem, err := naturalType(dt.BaseType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return reflect.TypeOf(""), nil
		}
		if dt.VarLenType == nil {
			return reflect.TypeOf([]byte(nil)), nil
		}
		elem, err := naturalType(dt.VarLenType)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	}
	return GoType(dt)
}
