package layout

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/btree"
	"github.com/fennelab/hdf5/internal/filter"
)

// ChunkWriter writes chunked dataset storage: it splits a dataset's raw
// bytes into fixed-shape chunks, runs each chunk through the filter
// pipeline, writes the resulting blocks, and indexes them with a version 1
// B-tree. This is the layout produced for chunked datasets by the classic
// file format, so the output is readable by any HDF5 implementation.
type ChunkWriter struct {
	w           *binary.Writer
	chunkDims   []uint32
	elementSize uint32
	pipeline    *filter.Pipeline
	allocator   func(size int64) uint64
}

// NewChunkWriter creates a chunk writer. pipeline may be nil for unfiltered
// storage. The allocator reserves file space for chunk data and index nodes.
func NewChunkWriter(
	w *binary.Writer,
	chunkDims []uint32,
	elementSize uint32,
	pipeline *filter.Pipeline,
	allocator func(size int64) uint64,
) *ChunkWriter {
	return &ChunkWriter{
		w:           w,
		chunkDims:   chunkDims,
		elementSize: elementSize,
		pipeline:    pipeline,
		allocator:   allocator,
	}
}

// ChunkSize returns the uncompressed size of one full chunk in bytes.
func (cw *ChunkWriter) ChunkSize() uint64 {
	size := uint64(cw.elementSize)
	for _, dim := range cw.chunkDims {
		size *= uint64(dim)
	}
	return size
}

// NumChunks returns the number of chunks needed to cover a dataset with the
// given dimensions.
func (cw *ChunkWriter) NumChunks(dims []uint64) uint64 {
	total := uint64(1)
	for d := 0; d < len(dims) && d < len(cw.chunkDims); d++ {
		total *= (dims[d] + uint64(cw.chunkDims[d]) - 1) / uint64(cw.chunkDims[d])
	}
	return total
}

// WriteChunks splits data (row-major, covering dims) into chunks, encodes
// each through the filter pipeline, writes the encoded bytes, and returns
// one record per chunk for the B-tree index. Edge chunks that extend past
// the dataset boundary are stored at the full chunk size with the slack
// zero-filled.
func (cw *ChunkWriter) WriteChunks(data []byte, dims []uint64) ([]btree.ChunkRecord, error) {
	ndims := len(dims)
	if ndims == 0 {
		return nil, fmt.Errorf("chunked storage requires at least one dimension")
	}
	if len(cw.chunkDims) != ndims {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(cw.chunkDims), ndims)
	}

	numChunks := make([]uint64, ndims)
	totalChunks := uint64(1)
	for d := 0; d < ndims; d++ {
		if cw.chunkDims[d] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
		numChunks[d] = (dims[d] + uint64(cw.chunkDims[d]) - 1) / uint64(cw.chunkDims[d])
		if numChunks[d] == 0 {
			numChunks[d] = 1
		}
		totalChunks *= numChunks[d]
	}

	records := make([]btree.ChunkRecord, 0, totalChunks)

	for idx := uint64(0); idx < totalChunks; idx++ {
		// Chunk origin in dataset coordinates, row-major chunk order.
		origin := make([]uint64, ndims)
		remaining := idx
		for d := ndims - 1; d >= 0; d-- {
			origin[d] = (remaining % numChunks[d]) * uint64(cw.chunkDims[d])
			remaining /= numChunks[d]
		}

		chunk := cw.gatherChunk(data, dims, origin)

		stored := chunk
		filterMask := uint32(0)
		if cw.pipeline != nil && !cw.pipeline.Empty() {
			var err error
			stored, filterMask, err = cw.pipeline.Encode(chunk)
			if err != nil {
				return nil, fmt.Errorf("encoding chunk at offset %v: %w", origin, err)
			}
		}

		addr := cw.allocator(int64(len(stored)))
		if err := cw.w.At(int64(addr)).WriteBytes(stored); err != nil {
			return nil, fmt.Errorf("writing chunk at offset %v: %w", origin, err)
		}

		records = append(records, btree.ChunkRecord{
			Offsets:    origin,
			Size:       uint32(len(stored)),
			FilterMask: filterMask,
			Address:    addr,
		})
	}

	return records, nil
}

// WriteIndex writes the version 1 B-tree index over the chunk records and
// returns its address for the data layout message. k is the indexed-storage
// rank recorded in the superblock.
func (cw *ChunkWriter) WriteIndex(records []btree.ChunkRecord, k int) (uint64, error) {
	return btree.WriteChunkTree(cw.w, cw.allocator, records, cw.chunkDims, cw.elementSize, k)
}

// gatherChunk copies the chunk at origin out of data into a buffer of the
// full chunk size. Regions beyond the dataset extent stay zero. This is the
// inverse of the per-chunk copy performed when reading.
func (cw *ChunkWriter) gatherChunk(data []byte, dims, origin []uint64) []byte {
	ndims := len(dims)
	elementSize := uint64(cw.elementSize)

	chunk := make([]byte, cw.ChunkSize())

	// Actual chunk extent, clipped at the dataset boundary.
	actual := make([]uint64, ndims)
	for d := 0; d < ndims; d++ {
		actual[d] = uint64(cw.chunkDims[d])
		if origin[d]+actual[d] > dims[d] {
			actual[d] = dims[d] - origin[d]
		}
	}

	dataStrides := make([]uint64, ndims)
	dataStrides[ndims-1] = elementSize
	for d := ndims - 2; d >= 0; d-- {
		dataStrides[d] = dataStrides[d+1] * dims[d+1]
	}

	chunkStrides := make([]uint64, ndims)
	chunkStrides[ndims-1] = elementSize
	for d := ndims - 2; d >= 0; d-- {
		chunkStrides[d] = chunkStrides[d+1] * uint64(cw.chunkDims[d+1])
	}

	cw.gatherRecursive(chunk, data, origin, actual, dataStrides, chunkStrides, 0, 0, 0, ndims)
	return chunk
}

// gatherRecursive walks the chunk's dimensions, copying one contiguous row
// at the innermost dimension per call.
func (cw *ChunkWriter) gatherRecursive(
	chunk, data []byte,
	origin, actual []uint64,
	dataStrides, chunkStrides []uint64,
	chunkIdx, dataIdx uint64,
	dim, ndims int,
) {
	if dim == ndims-1 {
		rowBytes := actual[dim] * chunkStrides[dim]
		srcStart := dataIdx + origin[dim]*dataStrides[dim]
		if srcStart+rowBytes <= uint64(len(data)) && chunkIdx+rowBytes <= uint64(len(chunk)) {
			copy(chunk[chunkIdx:chunkIdx+rowBytes], data[srcStart:srcStart+rowBytes])
		}
		return
	}

	for i := uint64(0); i < actual[dim]; i++ {
		cw.gatherRecursive(
			chunk, data,
			origin, actual,
			dataStrides, chunkStrides,
			chunkIdx+i*chunkStrides[dim],
			dataIdx+(origin[dim]+i)*dataStrides[dim],
			dim+1, ndims,
		)
	}
}

// WriteContiguous writes data as a single contiguous block and returns its
// address for the data layout message.
func WriteContiguous(w *binary.Writer, allocator func(size int64) uint64, data []byte) (uint64, error) {
	addr := allocator(int64(len(data)))
	if err := w.At(int64(addr)).WriteBytes(data); err != nil {
		return 0, fmt.Errorf("writing contiguous data: %w", err)
	}
	return addr, nil
}
