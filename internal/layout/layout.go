package layout

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
)

// Layout reads dataset elements regardless of how they are stored.
type Layout interface {
	// Read returns the full dataset as row-major bytes.
	Read() ([]byte, error)

	// ReadSlice returns the rectangular selection starting at start
	// with count elements per dimension, as row-major bytes.
	ReadSlice(start, count []uint64) ([]byte, error)

	// Class returns the storage class.
	Class() message.LayoutClass
}

// New creates the layout handler for a data layout message.
func New(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (Layout, error) {
	if layout == nil {
		return nil, fmt.Errorf("nil layout message")
	}

	switch layout.Class {
	case message.LayoutCompact:
		return NewCompact(layout, dataspace, datatype), nil

	case message.LayoutContiguous:
		return NewContiguous(layout, dataspace, datatype, reader), nil

	case message.LayoutChunked:
		return NewChunked(layout, dataspace, datatype, filterPipeline, reader)

	default:
		return nil, fmt.Errorf("unsupported layout class: %d", layout.Class)
	}
}

// calculateDataSize returns the dataset's element storage size in bytes.
func calculateDataSize(dataspace *message.Dataspace, datatype *message.Datatype) uint64 {
	if dataspace == nil || datatype == nil {
		return 0
	}
	return dataspace.NumElements() * uint64(datatype.Size)
}

// checkSelection validates a hyperslab selection against the dataset
// extent.
func checkSelection(dims, start, count []uint64) error {
	ndims := len(dims)
	if len(start) != ndims || len(count) != ndims {
		return fmt.Errorf("start and count must have %d dimensions, got %d and %d",
			ndims, len(start), len(count))
	}
	for d := 0; d < ndims; d++ {
		if start[d]+count[d] > dims[d] {
			return fmt.Errorf("slice out of bounds: dimension %d, start=%d, count=%d, size=%d",
				d, start[d], count[d], dims[d])
		}
	}
	return nil
}

// rowMajorStrides returns the byte stride of each dimension for a
// row-major array with the given extents. The last stride is the
// element size.
func rowMajorStrides(extents []uint64, elemSize uint64) []uint64 {
	s := make([]uint64, len(extents))
	s[len(s)-1] = elemSize
	for d := len(s) - 2; d >= 0; d-- {
		s[d] = s[d+1] * extents[d+1]
	}
	return s
}

// widen converts chunk dimensions to the uint64 extents the stride math
// works in.
func widen(dims []uint32) []uint64 {
	out := make([]uint64, len(dims))
	for i, d := range dims {
		out[i] = uint64(d)
	}
	return out
}

// copyRows copies a box of rows between two row-major buffers. ext is
// the box extent in elements; dstBase and srcBase are the box origin in
// each buffer's coordinates; the strides carry the element size in
// their last entry. Rows that would run past either buffer are skipped,
// which tolerates short chunks in damaged files without corrupting
// neighbours.
func copyRows(dst, src []byte, ext, dstBase, srcBase, dstStrides, srcStrides []uint64) {
	n := len(ext)
	rowBytes := ext[n-1] * srcStrides[n-1]
	if rowBytes == 0 {
		return
	}
	rows := uint64(1)
	for d := 0; d < n-1; d++ {
		rows *= ext[d]
	}

	coord := make([]uint64, n-1)
	for r := uint64(0); r < rows; r++ {
		srcOff := srcBase[n-1] * srcStrides[n-1]
		dstOff := dstBase[n-1] * dstStrides[n-1]
		for d := 0; d < n-1; d++ {
			srcOff += (srcBase[d] + coord[d]) * srcStrides[d]
			dstOff += (dstBase[d] + coord[d]) * dstStrides[d]
		}
		if srcOff+rowBytes <= uint64(len(src)) && dstOff+rowBytes <= uint64(len(dst)) {
			copy(dst[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
		}

		for d := n - 2; d >= 0; d-- {
			coord[d]++
			if coord[d] < ext[d] {
				break
			}
			coord[d] = 0
		}
	}
}

// extractRegion copies the selection out of a complete row-major array.
// The result's rows are consecutive, so the destination base is zero in
// every dimension.
func extractRegion(src []byte, dims, start, count []uint64, elemSize uint64) ([]byte, error) {
	ndims := len(dims)
	if ndims == 0 {
		return nil, fmt.Errorf("cannot extract hyperslab from scalar dataset")
	}

	total := uint64(1)
	for _, c := range count {
		total *= c
	}
	dst := make([]byte, total*elemSize)
	if total == 0 {
		return dst, nil
	}

	copyRows(dst, src,
		count,
		make([]uint64, ndims), start,
		rowMajorStrides(count, elemSize), rowMajorStrides(dims, elemSize))
	return dst, nil
}
