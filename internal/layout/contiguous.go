package layout

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

// Contiguous reads contiguous storage, one flat block of row-major
// elements.
type Contiguous struct {
	address   uint64
	size      uint64
	dataspace *message.Dataspace
	datatype  *message.Datatype
	reader    *binary.Reader
}

// NewContiguous creates a new contiguous layout handler.
func NewContiguous(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	reader *binary.Reader,
) *Contiguous {
	size := layout.Size
	if size == 0 {
		size = calculateDataSize(dataspace, datatype)
	}

	return &Contiguous{
		address:   layout.Address,
		size:      size,
		dataspace: dataspace,
		datatype:  datatype,
		reader:    reader,
	}
}

func (c *Contiguous) Class() message.LayoutClass {
	return message.LayoutContiguous
}

// Read reads all data from contiguous storage.
func (c *Contiguous) Read() ([]byte, error) {
	if c.size == 0 {
		return []byte{}, nil
	}

	// Unallocated data reads back as the default fill: zeros.
	if c.reader.IsUndefinedOffset(c.address) {
		return make([]byte, c.size), nil
	}

	data, err := c.reader.At(int64(c.address)).ReadBytes(int(c.size))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data: %w", err)
	}
	return data, nil
}

// ReadSlice reads a hyperslab from contiguous storage. Only the selected
// rows are read, one contiguous run per innermost row.
func (c *Contiguous) ReadSlice(start, count []uint64) ([]byte, error) {
	dims := c.dataspace.Dimensions
	ndims := len(dims)
	if ndims == 0 {
		return nil, fmt.Errorf("cannot extract hyperslab from scalar dataset")
	}
	if err := checkSelection(dims, start, count); err != nil {
		return nil, err
	}

	elementSize := uint64(c.datatype.Size)
	totalElements := uint64(1)
	for _, cnt := range count {
		totalElements *= cnt
	}
	output := make([]byte, totalElements*elementSize)
	if totalElements == 0 || c.reader.IsUndefinedOffset(c.address) {
		return output, nil
	}

	srcStrides := rowMajorStrides(dims, elementSize)
	dstStrides := rowMajorStrides(count, elementSize)

	var readRows func(dim int, srcOff, dstOff uint64) error
	readRows = func(dim int, srcOff, dstOff uint64) error {
		if dim == ndims-1 {
			rowBytes := count[dim] * elementSize
			r := c.reader.At(int64(c.address + srcOff + start[dim]*srcStrides[dim]))
			row, err := r.ReadBytes(int(rowBytes))
			if err != nil {
				return err
			}
			copy(output[dstOff:dstOff+rowBytes], row)
			return nil
		}
		for i := uint64(0); i < count[dim]; i++ {
			if err := readRows(dim+1, srcOff+(start[dim]+i)*srcStrides[dim], dstOff+i*dstStrides[dim]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := readRows(0, 0, 0); err != nil {
		return nil, fmt.Errorf("reading contiguous slice: %w", err)
	}
	return output, nil
}

// Address returns the data address.
func (c *Contiguous) Address() uint64 {
	return c.address
}

// Size returns the data size in bytes.
func (c *Contiguous) Size() uint64 {
	return c.size
}
