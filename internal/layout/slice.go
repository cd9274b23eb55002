package layout

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/fennelab/hdf5/internal/btree"
)

// ReadSlice reads a hyperslab from chunked storage. Only chunks that
// overlap the selection are fetched and decoded.
func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	dims := c.dims()
	if err := checkSelection(dims, start, count); err != nil {
		return nil, err
	}
	shape, err := c.chunkShape(len(dims))
	if err != nil {
		return nil, err
	}

	elemSize := uint64(c.datatype.Size)
	total := uint64(1)
	for _, n := range count {
		total *= n
	}
	output := make([]byte, total*elemSize)
	if total == 0 {
		return output, nil
	}

	entries, err := c.chunkEntries(dims, shape)
	if err != nil {
		return nil, err
	}

	outStrides := rowMajorStrides(count, elemSize)
	chunkStrides := rowMajorStrides(widen(shape), elemSize)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, entry := range entries {
		entry := entry
		box, ok := c.overlap(entry, dims, shape, start, count)
		if !ok {
			continue
		}
		g.Go(func() error {
			data, err := c.loadChunk(entry)
			if err != nil {
				return fmt.Errorf("chunk at offset %v: %w", entry.Offset, err)
			}

			// Box origin relative to the chunk on one side and to the
			// selection on the other.
			ndims := len(dims)
			srcBase := make([]uint64, ndims)
			dstBase := make([]uint64, ndims)
			for d := 0; d < ndims; d++ {
				srcBase[d] = box.lo[d] - entry.Offset[d]
				dstBase[d] = box.lo[d] - start[d]
			}
			copyRows(output, data, box.ext(), dstBase, srcBase, outStrides, chunkStrides)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return output, nil
}

// box is a rectangular region in dataset coordinates, lo inclusive and
// hi exclusive.
type box struct {
	lo, hi []uint64
}

func (b box) ext() []uint64 {
	ext := make([]uint64, len(b.lo))
	for d := range ext {
		ext[d] = b.hi[d] - b.lo[d]
	}
	return ext
}

// overlap intersects a chunk's extent with the selection. The chunk is
// clipped to the dataset boundary first, so edge chunks never
// contribute phantom elements.
func (c *Chunked) overlap(entry btree.ChunkEntry, dims []uint64, shape []uint32, start, count []uint64) (box, bool) {
	ndims := len(dims)
	b := box{lo: make([]uint64, ndims), hi: make([]uint64, ndims)}
	for d := 0; d < ndims; d++ {
		chunkEnd := entry.Offset[d] + uint64(shape[d])
		if chunkEnd > dims[d] {
			chunkEnd = dims[d]
		}
		selEnd := start[d] + count[d]

		b.lo[d] = max(entry.Offset[d], start[d])
		b.hi[d] = min(chunkEnd, selEnd)
		if b.lo[d] >= b.hi[d] {
			return box{}, false
		}
	}
	return b, true
}
