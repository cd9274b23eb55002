package btree

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// ChunkEntry locates one stored chunk of a chunked dataset.
type ChunkEntry struct {
	Offset     []uint64 // element coordinates of the chunk's first element
	FilterMask uint32
	Size       uint32 // stored (possibly compressed) size in bytes
	Address    uint64
}

// ChunkIndex is the flattened set of chunks for one dataset.
type ChunkIndex struct {
	NDims   int
	Entries []ChunkEntry
}

// ReadChunkIndex walks the version 1 chunk tree rooted at address and
// collects every allocated chunk. ndims is the dataset rank; on-disk
// keys carry one extra offset field beyond the rank.
func ReadChunkIndex(r *binary.Reader, address uint64, ndims int) (*ChunkIndex, error) {
	idx := &ChunkIndex{NDims: ndims}
	if r.IsUndefinedOffset(address) {
		return idx, nil
	}
	if err := readChunkNode(r, address, ndims, 0, idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func readChunkNode(r *binary.Reader, address uint64, ndims, depth int, idx *ChunkIndex) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("chunk tree deeper than %d levels", maxTreeDepth)
	}
	nr, node, err := openV1Node(r, address, nodeTypeChunk)
	if err != nil {
		return err
	}

	for i := 0; i < node.count; i++ {
		// The key before child i describes the chunk the child holds
		// (at level 0) or the smallest chunk beneath it.
		key, err := readChunkKey(nr, ndims)
		if err != nil {
			return fmt.Errorf("chunk key %d at 0x%x: %w", i, address, err)
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return err
		}
		if r.IsUndefinedOffset(child) {
			continue
		}

		if node.level == 0 {
			key.Address = child
			idx.Entries = append(idx.Entries, key)
		} else {
			if err := readChunkNode(r, child, ndims, depth+1, idx); err != nil {
				return err
			}
		}
	}
	// The boundary key after the last child is not a chunk.
	return nil
}

// readChunkKey decodes one chunk key: stored size, filter mask, and the
// chunk's element coordinates. The trailing offset field is always zero
// and is discarded.
func readChunkKey(nr *binary.Reader, ndims int) (ChunkEntry, error) {
	var entry ChunkEntry

	size, err := nr.ReadUint32()
	if err != nil {
		return entry, err
	}
	mask, err := nr.ReadUint32()
	if err != nil {
		return entry, err
	}
	entry.Size = size
	entry.FilterMask = mask

	entry.Offset = make([]uint64, ndims)
	for d := 0; d < ndims; d++ {
		if entry.Offset[d], err = nr.ReadUint64(); err != nil {
			return entry, err
		}
	}
	if _, err = nr.ReadUint64(); err != nil {
		return entry, err
	}
	return entry, nil
}

// FindChunk returns the chunk containing the element at offset, or nil
// if that chunk was never written.
func (idx *ChunkIndex) FindChunk(offset []uint64, chunkDims []uint32) *ChunkEntry {
	for i := range idx.Entries {
		entry := &idx.Entries[i]
		inside := true
		for d := 0; d < idx.NDims && d < len(entry.Offset); d++ {
			if offset[d] < entry.Offset[d] || offset[d] >= entry.Offset[d]+uint64(chunkDims[d]) {
				inside = false
				break
			}
		}
		if inside {
			return entry
		}
	}
	return nil
}
