package layout

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/btree"
	"github.com/fennelab/hdf5/internal/filter"
	"github.com/fennelab/hdf5/internal/message"
)

// Chunked reads chunked storage. The chunk index is resolved to a flat
// list of chunk entries first; reading then proceeds the same way for
// every index flavour.
type Chunked struct {
	layout    *message.DataLayout
	dataspace *message.Dataspace
	datatype  *message.Datatype
	pipeline  *filter.Pipeline
	reader    *binary.Reader
}

// NewChunked creates a chunked layout handler.
func NewChunked(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	var pipeline *filter.Pipeline
	var err error
	if filterPipeline != nil {
		pipeline, err = filter.NewPipeline(filterPipeline)
		if err != nil {
			return nil, fmt.Errorf("creating filter pipeline: %w", err)
		}
	}

	return &Chunked{
		layout:    layout,
		dataspace: dataspace,
		datatype:  datatype,
		pipeline:  pipeline,
		reader:    reader,
	}, nil
}

func (c *Chunked) Class() message.LayoutClass {
	return message.LayoutChunked
}

// dims returns the dataset extent. A scalar dataset should never be
// chunked, but a single-element extent keeps the arithmetic valid if
// one is encountered.
func (c *Chunked) dims() []uint64 {
	dims := c.dataspace.Dimensions
	if len(dims) == 0 {
		return []uint64{1}
	}
	return dims
}

// chunkShape returns the chunk dimensions trimmed to the dataset rank.
// Version 3 layout messages append the element size as an extra
// dimension.
func (c *Chunked) chunkShape(ndims int) ([]uint32, error) {
	shape := c.layout.ChunkDims
	if len(shape) == 0 {
		return nil, fmt.Errorf("chunked layout has no chunk dimensions")
	}
	if len(shape) > ndims {
		shape = shape[:ndims]
	}
	for d, extent := range shape {
		if extent == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	return shape, nil
}

// chunkBytes returns the unfiltered size of one full chunk.
func (c *Chunked) chunkBytes(shape []uint32) uint64 {
	n := uint64(c.datatype.Size)
	for _, d := range shape {
		n *= uint64(d)
	}
	return n
}

// Read assembles the full dataset from its chunks. Chunks land in
// disjoint regions of the output and the reader supports concurrent
// reads at explicit positions, so chunks are fetched and decoded in
// parallel. Unallocated chunks leave their region zero-filled.
func (c *Chunked) Read() ([]byte, error) {
	dims := c.dims()
	shape, err := c.chunkShape(len(dims))
	if err != nil {
		return nil, err
	}

	totalSize := calculateDataSize(c.dataspace, c.datatype)
	if totalSize == 0 {
		return nil, nil
	}
	output := make([]byte, totalSize)

	entries, err := c.chunkEntries(dims, shape)
	if err != nil {
		return nil, err
	}

	elemSize := uint64(c.datatype.Size)
	fileStrides := rowMajorStrides(dims, elemSize)
	chunkStrides := rowMajorStrides(widen(shape), elemSize)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			data, err := c.loadChunk(entry)
			if err != nil {
				return fmt.Errorf("chunk at offset %v: %w", entry.Offset, err)
			}
			c.placeChunk(output, data, entry.Offset, dims, shape, fileStrides, chunkStrides)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return output, nil
}

// loadChunk reads one chunk's stored bytes and runs them backward
// through the filter pipeline.
func (c *Chunked) loadChunk(entry btree.ChunkEntry) ([]byte, error) {
	data, err := c.reader.At(int64(entry.Address)).ReadBytes(int(entry.Size))
	if err != nil {
		return nil, err
	}
	if c.pipeline != nil && !c.pipeline.Empty() {
		data, err = c.pipeline.Decode(data, entry.FilterMask)
		if err != nil {
			return nil, fmt.Errorf("decoding: %w", err)
		}
	}
	return data, nil
}

// placeChunk copies one decoded chunk into the output array, clipping
// chunks that extend past the dataset boundary.
func (c *Chunked) placeChunk(output, data []byte, origin, dims []uint64, shape []uint32, fileStrides, chunkStrides []uint64) {
	ndims := len(dims)
	ext := make([]uint64, ndims)
	for d := 0; d < ndims; d++ {
		ext[d] = uint64(shape[d])
		if origin[d]+ext[d] > dims[d] {
			ext[d] = dims[d] - origin[d]
		}
	}
	copyRows(output, data, ext, origin, make([]uint64, ndims), fileStrides, chunkStrides)
}

// chunkEntries resolves the chunk index into a flat entry list. Entries
// for unallocated chunks are omitted. An entry whose stored size is
// zero is an unfiltered chunk; it occupies exactly one full chunk.
func (c *Chunked) chunkEntries(dims []uint64, shape []uint32) ([]btree.ChunkEntry, error) {
	var (
		entries []btree.ChunkEntry
		err     error
	)

	switch c.layout.ChunkIndexType {
	case message.ChunkIndexBTreeV1:
		var idx *btree.ChunkIndex
		idx, err = btree.ReadChunkIndex(c.reader, c.layout.ChunkIndexAddr, len(dims))
		if idx != nil {
			entries = idx.Entries
		}

	case message.ChunkIndexSingleChunk:
		entries, err = c.singleChunkEntry(dims, shape)

	case message.ChunkIndexImplicit:
		entries, err = c.implicitEntries(dims, shape)

	case message.ChunkIndexFixedArray:
		entries, err = c.readFixedArray(dims, shape)

	case message.ChunkIndexExtensibleArray:
		entries, err = c.readExtensibleArray(dims, shape)

	case message.ChunkIndexBTreeV2:
		var idx *btree.ChunkIndex
		idx, err = btree.ReadChunkIndexV2(c.reader, c.layout.ChunkIndexAddr, shape)
		if idx != nil {
			entries = idx.Entries
		}

	default:
		return nil, fmt.Errorf("unsupported chunk index type %d", c.layout.ChunkIndexType)
	}
	if err != nil {
		return nil, fmt.Errorf("reading chunk index: %w", err)
	}

	kept := entries[:0]
	for _, entry := range entries {
		if entry.Address == 0 || c.reader.IsUndefinedOffset(entry.Address) {
			continue
		}
		if entry.Size == 0 {
			entry.Size = uint32(c.chunkBytes(shape))
		}
		kept = append(kept, entry)
	}
	return kept, nil
}

// singleChunkEntry builds the one entry of a single-chunk index. The
// index address points straight at the chunk data; filtered single
// chunks carry their stored size and mask in the layout message.
func (c *Chunked) singleChunkEntry(dims []uint64, shape []uint32) ([]btree.ChunkEntry, error) {
	if c.reader.IsUndefinedOffset(c.layout.ChunkIndexAddr) {
		return nil, nil
	}
	entry := btree.ChunkEntry{
		Offset:  make([]uint64, len(dims)),
		Address: c.layout.ChunkIndexAddr,
		Size:    uint32(c.chunkBytes(shape)),
	}
	if c.layout.FilteredChunkSize != 0 {
		entry.Size = c.layout.FilteredChunkSize
		entry.FilterMask = c.layout.FilteredChunkMask
	}
	return []btree.ChunkEntry{entry}, nil
}

// implicitEntries enumerates an implicit index: chunks packed back to
// back in row-major chunk order starting at the index address. Implicit
// indexes never carry filters, so every chunk is a full chunk.
func (c *Chunked) implicitEntries(dims []uint64, shape []uint32) ([]btree.ChunkEntry, error) {
	if c.reader.IsUndefinedOffset(c.layout.ChunkIndexAddr) {
		return nil, nil
	}
	grid := newChunkGrid(dims, shape)
	size := c.chunkBytes(shape)

	entries := make([]btree.ChunkEntry, 0, grid.total())
	addr := c.layout.ChunkIndexAddr
	for i := uint64(0); i < grid.total(); i++ {
		entries = append(entries, btree.ChunkEntry{
			Offset:  grid.origin(i),
			Address: addr,
			Size:    uint32(size),
		})
		addr += size
	}
	return entries, nil
}

// chunkGrid maps linear chunk numbers to dataset coordinates for the
// array-shaped indexes, which store chunks in row-major chunk order
// without explicit offsets.
type chunkGrid struct {
	counts []uint64 // chunks per dimension
	shape  []uint32
}

func newChunkGrid(dims []uint64, shape []uint32) chunkGrid {
	counts := make([]uint64, len(dims))
	for d := range dims {
		counts[d] = (dims[d] + uint64(shape[d]) - 1) / uint64(shape[d])
		if counts[d] == 0 {
			counts[d] = 1
		}
	}
	return chunkGrid{counts: counts, shape: shape}
}

func (g chunkGrid) total() uint64 {
	n := uint64(1)
	for _, c := range g.counts {
		n *= c
	}
	return n
}

func (g chunkGrid) origin(i uint64) []uint64 {
	origin := make([]uint64, len(g.counts))
	for d := len(g.counts) - 1; d >= 0; d-- {
		origin[d] = (i % g.counts[d]) * uint64(g.shape[d])
		i /= g.counts[d]
	}
	return origin
}
