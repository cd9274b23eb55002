package btree

import (
	"fmt"
	"math"

	"github.com/fennelab/hdf5/internal/binary"
)

var (
	btree2HeaderSignature   = []byte("BTHD")
	btree2InternalSignature = []byte("BTIN")
	btree2LeafSignature     = []byte("BTLF")
)

// Version 2 tree record types used by chunked dataset indexes.
const (
	recordTypeChunk         uint8 = 10 // unfiltered chunks, size implied
	recordTypeFilteredChunk uint8 = 11 // stored size and filter mask per chunk
)

// v2NodeOverhead is the per-node cost of the signature, version and
// type bytes plus the trailing checksum.
const v2NodeOverhead = 10

// v2Tree carries the geometry every node decode needs. The count field
// widths are not stored in the file; both sides derive them from node
// capacity, so the reader must reproduce the writer's arithmetic.
type v2Tree struct {
	r          *binary.Reader
	recordType uint8
	recordSize int
	nodeSize   int
	depth      int
	chunkDims  []uint32
	sizeWidth  int   // width of the stored chunk size, filtered records only
	countWidth int   // width of a child's record count
	cumWidth   []int // width of a subtree's total record count, by level
	idx        *ChunkIndex
}

// ReadChunkIndexV2 reads a version 2 tree of chunk records rooted at
// address. Stored offsets are scaled chunk indices; they are multiplied
// back into element coordinates so the result matches ReadChunkIndex.
func ReadChunkIndexV2(r *binary.Reader, address uint64, chunkDims []uint32) (*ChunkIndex, error) {
	idx := &ChunkIndex{NDims: len(chunkDims)}
	if r.IsUndefinedOffset(address) {
		return idx, nil
	}

	t, rootAddr, rootCount, err := readV2Header(r, address, chunkDims)
	if err != nil {
		return nil, err
	}
	t.idx = idx
	if r.IsUndefinedOffset(rootAddr) {
		return idx, nil
	}
	if err := t.readNode(rootAddr, t.depth, rootCount); err != nil {
		return nil, err
	}
	return idx, nil
}

func readV2Header(r *binary.Reader, address uint64, chunkDims []uint32) (*v2Tree, uint64, int, error) {
	nr := r.At(int64(address))
	start := nr.Pos()

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("reading tree header at 0x%x: %w", address, err)
	}
	if string(sig) != string(btree2HeaderSignature) {
		return nil, 0, 0, fmt.Errorf("bad tree header signature %q at 0x%x", sig, address)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, 0, 0, err
	}
	if version != 0 {
		return nil, 0, 0, fmt.Errorf("unsupported version 2 tree header version %d", version)
	}
	recordType, err := nr.ReadUint8()
	if err != nil {
		return nil, 0, 0, err
	}
	nodeSize, err := nr.ReadUint32()
	if err != nil {
		return nil, 0, 0, err
	}
	recordSize, err := nr.ReadUint16()
	if err != nil {
		return nil, 0, 0, err
	}
	depth, err := nr.ReadUint16()
	if err != nil {
		return nil, 0, 0, err
	}
	nr.Skip(2) // split and merge percents
	rootAddr, err := nr.ReadOffset()
	if err != nil {
		return nil, 0, 0, err
	}
	rootCount, err := nr.ReadUint16()
	if err != nil {
		return nil, 0, 0, err
	}
	if _, err := nr.ReadLength(); err != nil { // total records in tree
		return nil, 0, 0, err
	}
	if err := verifyV2Checksum(r, nr, start); err != nil {
		return nil, 0, 0, fmt.Errorf("tree header at 0x%x: %w", address, err)
	}

	t := &v2Tree{
		r:          r,
		recordType: recordType,
		recordSize: int(recordSize),
		nodeSize:   int(nodeSize),
		depth:      int(depth),
		chunkDims:  chunkDims,
	}
	if t.depth > maxTreeDepth {
		return nil, 0, 0, fmt.Errorf("chunk tree deeper than %d levels", maxTreeDepth)
	}
	if err := t.deriveGeometry(); err != nil {
		return nil, 0, 0, err
	}
	return t, rootAddr, int(rootCount), nil
}

// deriveGeometry recovers the field widths the writer chose from node
// capacity. Leaves hold usable/recordSize records; internal nodes lose
// space to child pointers level by level, and each count field is just
// wide enough for the largest value it can carry.
func (t *v2Tree) deriveGeometry() error {
	ndims := len(t.chunkDims)
	switch t.recordType {
	case recordTypeChunk:
		if t.recordSize != t.r.OffsetSize()+8*ndims {
			return fmt.Errorf("chunk record size %d does not match rank %d", t.recordSize, ndims)
		}
	case recordTypeFilteredChunk:
		t.sizeWidth = t.recordSize - t.r.OffsetSize() - 4 - 8*ndims
		if t.sizeWidth < 1 || t.sizeWidth > 8 {
			return fmt.Errorf("filtered chunk record size %d does not match rank %d", t.recordSize, ndims)
		}
	default:
		return fmt.Errorf("unsupported version 2 tree record type %d", t.recordType)
	}

	usable := t.nodeSize - v2NodeOverhead
	if usable < t.recordSize {
		return fmt.Errorf("node size %d cannot hold %d byte records", t.nodeSize, t.recordSize)
	}
	leafCap := usable / t.recordSize
	t.countWidth = byteWidth(uint64(leafCap))

	t.cumWidth = make([]int, t.depth+1)
	cum := uint64(leafCap)
	for level := 1; level <= t.depth; level++ {
		ptr := t.r.OffsetSize() + t.countWidth + t.cumWidth[level-1]
		nrec := (usable - ptr) / (t.recordSize + ptr)
		if nrec < 1 {
			return fmt.Errorf("node size %d cannot hold internal nodes at level %d", t.nodeSize, level)
		}
		cum = (uint64(nrec)+1)*cum + uint64(nrec)
		t.cumWidth[level] = byteWidth(cum)
	}
	return nil
}

// readNode decodes one node and descends into its children. Records
// fill the front of the node, in internal nodes as well; the child
// pointers follow as a block of count+1 entries.
func (t *v2Tree) readNode(address uint64, level, count int) error {
	nr := t.r.At(int64(address))
	start := nr.Pos()

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("reading tree node at 0x%x: %w", address, err)
	}
	want := btree2LeafSignature
	if level > 0 {
		want = btree2InternalSignature
	}
	if string(sig) != string(want) {
		return fmt.Errorf("bad tree node signature %q at 0x%x", sig, address)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if version != 0 {
		return fmt.Errorf("unsupported version 2 tree node version %d", version)
	}
	typ, err := nr.ReadUint8()
	if err != nil {
		return err
	}
	if typ != t.recordType {
		return fmt.Errorf("tree node at 0x%x has record type %d, want %d", address, typ, t.recordType)
	}

	for i := 0; i < count; i++ {
		if err := t.readRecord(nr); err != nil {
			return fmt.Errorf("record %d at 0x%x: %w", i, address, err)
		}
	}

	type childPtr struct {
		addr  uint64
		count int
	}
	var children []childPtr
	if level > 0 {
		children = make([]childPtr, count+1)
		for i := range children {
			if children[i].addr, err = nr.ReadOffset(); err != nil {
				return err
			}
			n, err := nr.ReadUintN(t.countWidth)
			if err != nil {
				return err
			}
			children[i].count = int(n)
			if level > 1 {
				// Total records beneath the child, redundant on read.
				if _, err := nr.ReadUintN(t.cumWidth[level-1]); err != nil {
					return err
				}
			}
		}
	}

	if err := verifyV2Checksum(t.r, nr, start); err != nil {
		return fmt.Errorf("tree node at 0x%x: %w", address, err)
	}

	for _, child := range children {
		if err := t.readNode(child.addr, level-1, child.count); err != nil {
			return err
		}
	}
	return nil
}

func (t *v2Tree) readRecord(nr *binary.Reader) error {
	entry := ChunkEntry{Offset: make([]uint64, len(t.chunkDims))}

	addr, err := nr.ReadOffset()
	if err != nil {
		return err
	}
	entry.Address = addr

	if t.recordType == recordTypeFilteredChunk {
		size, err := nr.ReadUintN(t.sizeWidth)
		if err != nil {
			return err
		}
		if size > math.MaxUint32 {
			return fmt.Errorf("stored chunk size %d overflows 32 bits", size)
		}
		entry.Size = uint32(size)
		if entry.FilterMask, err = nr.ReadUint32(); err != nil {
			return err
		}
	}

	// Offsets are stored scaled by the chunk shape.
	for d := range entry.Offset {
		scaled, err := nr.ReadUint64()
		if err != nil {
			return err
		}
		entry.Offset[d] = scaled * uint64(t.chunkDims[d])
	}

	t.idx.Entries = append(t.idx.Entries, entry)
	return nil
}

// verifyV2Checksum checks the Jenkins checksum closing a version 2 tree
// block. nr must sit just past the covered bytes; the checksum itself
// is consumed.
func verifyV2Checksum(r, nr *binary.Reader, start int64) error {
	used := nr.Pos() - start
	raw, err := r.At(start).ReadBytes(int(used))
	if err != nil {
		return err
	}
	stored, err := nr.ReadUint32()
	if err != nil {
		return err
	}
	if sum := binary.Lookup3(raw); sum != stored {
		return fmt.Errorf("checksum mismatch: computed 0x%08x, stored 0x%08x", sum, stored)
	}
	return nil
}

// byteWidth returns the narrowest whole-byte encoding for v.
func byteWidth(v uint64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	return n
}
