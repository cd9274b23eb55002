package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/fennelab/hdf5/internal/dtype"
	"github.com/fennelab/hdf5/internal/layout"
	"github.com/fennelab/hdf5/internal/message"
	"github.com/fennelab/hdf5/internal/object"
)

// Dataset is an open HDF5 dataset. It keeps the parsed object header
// and a layout handle; element data is read on demand.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout
}

// newDataset builds a Dataset from a parsed object header. The header
// must carry dataspace, datatype and layout messages; anything else is
// not a dataset.
func newDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:      f,
		path:      path,
		header:    header,
		dataspace: header.Dataspace(),
		datatype:  header.Datatype(),
	}
	if ds.dataspace == nil {
		return nil, fmt.Errorf("dataset %s: missing dataspace message", path)
	}
	if ds.datatype == nil {
		return nil, fmt.Errorf("dataset %s: missing datatype message", path)
	}
	layoutMsg := header.DataLayout()
	if layoutMsg == nil {
		return nil, fmt.Errorf("dataset %s: missing data layout message", path)
	}

	var err error
	ds.layout, err = layout.New(layoutMsg, ds.dataspace, ds.datatype, header.FilterPipeline(), f.reader)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, classify(err))
	}
	return ds, nil
}

// Name returns the last component of the dataset path.
func (d *Dataset) Name() string { return path.Base(d.path) }

// Path returns the full path to this dataset.
func (d *Dataset) Path() string { return d.path }

// Shape returns the dataset dimensions, nil for scalars.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dimensions
}

// Dims is an alias for Shape.
func (d *Dataset) Dims() []uint64 { return d.Shape() }

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int { return d.dataspace.Rank }

// NumElements returns the total number of elements.
func (d *Dataset) NumElements() uint64 { return d.dataspace.NumElements() }

// IsScalar reports whether the dataset holds a single value.
func (d *Dataset) IsScalar() bool { return d.dataspace.IsScalar() }

// DtypeSize returns the stored size of one element in bytes.
func (d *Dataset) DtypeSize() int { return int(d.datatype.Size) }

// DtypeClass returns the datatype class.
func (d *Dataset) DtypeClass() message.DatatypeClass { return d.datatype.Class }

// DataType returns a compact name for the stored datatype, in the
// shape h5py prints: "int32", "uint8", "float64", "string(16)" for
// fixed strings, "string" for variable-length ones.
func (d *Dataset) DataType() string { return dtypeName(d.datatype) }

// GoType returns the Go type this dataset's elements decode to.
func (d *Dataset) GoType() (reflect.Type, error) {
	return dtype.GoType(d.datatype)
}

// Read decodes the full dataset into dest, a pointer to a slice of the
// wanted element type. Numeric destinations may be wider than the
// stored type; a value that does not fit reports an error.
func (d *Dataset) Read(dest any) error {
	raw, err := d.layout.Read()
	if err != nil {
		return classify(fmt.Errorf("reading data: %w", err))
	}
	return dtype.ConvertWithReader(d.datatype, raw, d.dataspace.NumElements(), dest, d.file.reader)
}

// ReadRaw reads the dataset's stored bytes without datatype conversion.
// Filters are still undone.
func (d *Dataset) ReadRaw() ([]byte, error) {
	raw, err := d.layout.Read()
	if err != nil {
		return nil, classify(err)
	}
	return raw, nil
}

// ReadSlice reads a hyperslab into dest: start gives the first
// coordinate and count the element count per dimension. dest is a
// pointer to a slice as in Read.
func (d *Dataset) ReadSlice(start, count []uint64, dest any) error {
	rank := d.dataspace.Rank
	if len(start) != rank || len(count) != rank {
		return fmt.Errorf("selection rank %d/%d does not match dataset rank %d",
			len(start), len(count), rank)
	}

	numElements := uint64(1)
	for i, c := range count {
		if c == 0 {
			return fmt.Errorf("count[%d] is zero", i)
		}
		if start[i]+c > d.dataspace.Dimensions[i] {
			return fmt.Errorf("selection [%d, %d) exceeds extent %d in dimension %d: %w",
				start[i], start[i]+c, d.dataspace.Dimensions[i], i, ErrOutOfBounds)
		}
		numElements *= c
	}

	raw, err := d.layout.ReadSlice(start, count)
	if err != nil {
		return classify(fmt.Errorf("reading slice: %w", err))
	}
	return dtype.ConvertWithReader(d.datatype, raw, numElements, dest, d.file.reader)
}

// readWidened reads the full dataset, widening integer data to []int64
// and floating-point data to []float64.
func (d *Dataset) readWidened() (any, error) {
	switch d.datatype.Class {
	case message.ClassFixedPoint:
		return d.ReadInt64()
	case message.ClassFloatPoint:
		return d.ReadFloat64()
	}
	return nil, fmt.Errorf("reading datatype class %d as int64/float64: %w", d.datatype.Class, ErrUnsupportedFeature)
}

// datasetValues reads the full dataset as a slice of T.
func datasetValues[T any](d *Dataset) ([]T, error) {
	var vals []T
	if err := d.Read(&vals); err != nil {
		return nil, err
	}
	return vals, nil
}

func (d *Dataset) ReadInt8() ([]int8, error)       { return datasetValues[int8](d) }
func (d *Dataset) ReadInt16() ([]int16, error)     { return datasetValues[int16](d) }
func (d *Dataset) ReadInt32() ([]int32, error)     { return datasetValues[int32](d) }
func (d *Dataset) ReadInt64() ([]int64, error)     { return datasetValues[int64](d) }
func (d *Dataset) ReadUint8() ([]uint8, error)     { return datasetValues[uint8](d) }
func (d *Dataset) ReadUint16() ([]uint16, error)   { return datasetValues[uint16](d) }
func (d *Dataset) ReadUint32() ([]uint32, error)   { return datasetValues[uint32](d) }
func (d *Dataset) ReadUint64() ([]uint64, error)   { return datasetValues[uint64](d) }
func (d *Dataset) ReadFloat32() ([]float32, error) { return datasetValues[float32](d) }
func (d *Dataset) ReadFloat64() ([]float64, error) { return datasetValues[float64](d) }
func (d *Dataset) ReadString() ([]string, error)   { return datasetValues[string](d) }

// Attrs returns this dataset's attribute names.
func (d *Dataset) Attrs() []string {
	return headerAttrNames(d.header)
}

// Attr returns an attribute by name, or nil when absent.
func (d *Dataset) Attr(name string) *Attribute {
	return headerAttr(d.header, name, d.file.reader)
}

// HasAttr reports whether the dataset carries the named attribute.
func (d *Dataset) HasAttr(name string) bool {
	return d.Attr(name) != nil
}

// dtypeName names a datatype for listings.
func dtypeName(dt *message.Datatype) string {
	if dt == nil {
		return "unknown"
	}
	switch dt.Class {
	case message.ClassFixedPoint:
		if dt.Signed {
			return fmt.Sprintf("int%d", dt.Size*8)
		}
		return fmt.Sprintf("uint%d", dt.Size*8)
	case message.ClassFloatPoint:
		return fmt.Sprintf("float%d", dt.Size*8)
	case message.ClassString:
		return fmt.Sprintf("string(%d)", dt.Size)
	case message.ClassVarLen:
		if dt.IsVarLenString {
			return "string"
		}
		return "vlen"
	case message.ClassCompound:
		return "compound"
	case message.ClassArray:
		return "array"
	case message.ClassEnum:
		return "enum"
	case message.ClassBitfield:
		return "bitfield"
	case message.ClassOpaque:
		return "opaque"
	case message.ClassReference:
		return "reference"
	case message.ClassTime:
		return "time"
	}
	return fmt.Sprintf("class %d", int(dt.Class))
}
