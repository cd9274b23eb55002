package btree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fennelab/hdf5/internal/binary"
)

// ErrTreeTooLarge reports that an index needs more entries than a single
// level-0 node can hold. The writer emits leaf-only trees and does not
// split nodes.
var ErrTreeTooLarge = errors.New("B-tree capacity exceeded")

// SymbolEntry is a symbol table entry prepared for writing. Hard link
// entries carry the child's object header address; soft link entries
// carry the heap offset of the target path in LinkOffset instead.
type SymbolEntry struct {
	NameOffset    uint64
	ObjectAddress uint64
	CacheType     uint32

	// Cache type 1: the child group's B-tree and heap addresses.
	BTreeAddress uint64
	HeapAddress  uint64

	// Cache type 2: heap offset of the soft link target path.
	LinkOffset uint64
}

// SymbolEntrySize returns the encoded size of one symbol table entry.
func SymbolEntrySize(offsetSize int) int {
	return 2*offsetSize + 24
}

// NewObjectSymbol returns an entry for a dataset or other object with no
// cached metadata.
func NewObjectSymbol(nameOffset, objectAddr uint64) SymbolEntry {
	return SymbolEntry{NameOffset: nameOffset, ObjectAddress: objectAddr}
}

// NewGroupSymbol returns an entry for a child group with its B-tree and
// heap addresses cached in the scratch pad.
func NewGroupSymbol(nameOffset, objectAddr, btreeAddr, heapAddr uint64) SymbolEntry {
	return SymbolEntry{
		NameOffset:    nameOffset,
		ObjectAddress: objectAddr,
		CacheType:     cacheTypeGroup,
		BTreeAddress:  btreeAddr,
		HeapAddress:   heapAddr,
	}
}

// NewSoftLinkSymbol returns an entry for a soft link whose target path
// lives in the local heap at linkOffset.
func NewSoftLinkSymbol(nameOffset, linkOffset uint64) SymbolEntry {
	return SymbolEntry{
		NameOffset: nameOffset,
		CacheType:  cacheTypeSoftLink,
		LinkOffset: linkOffset,
	}
}

func (e *SymbolEntry) encode(w *binary.Writer) error {
	if err := w.WriteOffset(e.NameOffset); err != nil {
		return err
	}
	addr := e.ObjectAddress
	if e.CacheType == cacheTypeSoftLink {
		addr = w.UndefinedOffset()
	}
	if err := w.WriteOffset(addr); err != nil {
		return err
	}
	if err := w.WriteUint32(e.CacheType); err != nil {
		return err
	}
	if err := w.WriteUint32(0); err != nil {
		return err
	}

	// 16 byte scratch pad, contents keyed by cache type.
	switch e.CacheType {
	case cacheTypeGroup:
		if err := w.WriteOffset(e.BTreeAddress); err != nil {
			return err
		}
		if err := w.WriteOffset(e.HeapAddress); err != nil {
			return err
		}
		return w.WriteZeros(16 - 2*w.OffsetSize())
	case cacheTypeSoftLink:
		if err := w.WriteUint32(uint32(e.LinkOffset)); err != nil {
			return err
		}
		return w.WriteZeros(12)
	default:
		return w.WriteZeros(16)
	}
}

// WriteGroupTree writes a group's name index: symbol table nodes holding
// the entries, then one level-0 B-tree node pointing at them. Entries
// must already be sorted by link name, since the boundary key between
// two symbol table nodes is the name offset of the greatest name in the
// left node (key 0 is heap offset 0, the empty string, below all names).
// Nodes are written at full capacity so readers that load entire node
// images see well-formed bytes; only the entry counts reflect use.
// Returns the B-tree address.
func WriteGroupTree(w *binary.Writer, alloc func(int64) uint64, entries []SymbolEntry, leafK, internalK int) (uint64, error) {
	if leafK <= 0 || internalK <= 0 {
		return 0, fmt.Errorf("invalid B-tree rank: leaf K %d, internal K %d", leafK, internalK)
	}

	snodCap := 2 * leafK
	numNodes := (len(entries) + snodCap - 1) / snodCap
	if numNodes > 2*internalK {
		return 0, fmt.Errorf("%w: %d links need %d symbol table nodes, one node holds %d",
			ErrTreeTooLarge, len(entries), numNodes, 2*internalK)
	}

	entrySize := SymbolEntrySize(w.OffsetSize())
	snodSize := 8 + snodCap*entrySize
	treeSize := 8 + 2*w.OffsetSize() + (2*internalK+1)*w.LengthSize() + 2*internalK*w.OffsetSize()

	treeAddr := alloc(int64(treeSize))
	snodAddrs := make([]uint64, numNodes)
	for i := range snodAddrs {
		snodAddrs[i] = alloc(int64(snodSize))
	}

	for i := 0; i < numNodes; i++ {
		lo := i * snodCap
		hi := lo + snodCap
		if hi > len(entries) {
			hi = len(entries)
		}

		nw := w.At(int64(snodAddrs[i]))
		if err := nw.WriteBytes(snodSignature); err != nil {
			return 0, err
		}
		if err := nw.WriteUint8(1); err != nil {
			return 0, err
		}
		if err := nw.WriteUint8(0); err != nil {
			return 0, err
		}
		if err := nw.WriteUint16(uint16(hi - lo)); err != nil {
			return 0, err
		}
		for j := lo; j < hi; j++ {
			if err := entries[j].encode(nw); err != nil {
				return 0, fmt.Errorf("encoding symbol table entry %d: %w", j, err)
			}
		}
		if err := nw.WriteZeros((snodCap - (hi - lo)) * entrySize); err != nil {
			return 0, err
		}
	}

	tw := w.At(int64(treeAddr))
	if err := tw.WriteBytes(btreeSignature); err != nil {
		return 0, err
	}
	if err := tw.WriteUint8(0); err != nil { // node type 0: group
		return 0, err
	}
	if err := tw.WriteUint8(0); err != nil { // level 0
		return 0, err
	}
	if err := tw.WriteUint16(uint16(numNodes)); err != nil {
		return 0, err
	}
	if err := tw.WriteUndefinedOffset(); err != nil { // no left sibling
		return 0, err
	}
	if err := tw.WriteUndefinedOffset(); err != nil { // no right sibling
		return 0, err
	}
	for i := 0; i < numNodes; i++ {
		key := uint64(0)
		if i > 0 {
			key = entries[i*snodCap-1].NameOffset
		}
		if err := tw.WriteLength(key); err != nil {
			return 0, err
		}
		if err := tw.WriteOffset(snodAddrs[i]); err != nil {
			return 0, err
		}
	}
	if numNodes > 0 {
		if err := tw.WriteLength(entries[len(entries)-1].NameOffset); err != nil {
			return 0, err
		}
	}
	if err := tw.WriteZeros(treeSize - int(tw.Pos()-int64(treeAddr))); err != nil {
		return 0, err
	}

	return treeAddr, nil
}

// ChunkRecord describes one written chunk for the chunk index.
type ChunkRecord struct {
	Offsets    []uint64 // chunk origin in element coordinates, one per dataset dimension
	Size       uint32   // stored byte count after filtering
	FilterMask uint32
	Address    uint64
}

// WriteChunkTree writes a level-0 chunk index node covering all written
// chunks, keyed by chunk origin. Each key carries ndims+1 offsets; the
// trailing slot belongs to the synthetic element-size dimension and is
// zero for real chunks. The final boundary key sits one chunk past the
// last origin so that lookups of the last chunk compare below it.
// Returns the B-tree address.
func WriteChunkTree(w *binary.Writer, alloc func(int64) uint64, chunks []ChunkRecord, chunkDims []uint32, elemSize uint32, k int) (uint64, error) {
	if k <= 0 {
		return 0, fmt.Errorf("invalid B-tree rank: %d", k)
	}
	if len(chunks) > 2*k {
		return 0, fmt.Errorf("%w: %d chunks, one node holds %d", ErrTreeTooLarge, len(chunks), 2*k)
	}

	ndims := len(chunkDims)
	keySize := 8 + 8*(ndims+1)
	nodeSize := 8 + 2*w.OffsetSize() + (2*k+1)*keySize + 2*k*w.OffsetSize()

	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i].Offsets, chunks[j].Offsets
		for d := 0; d < ndims; d++ {
			if a[d] != b[d] {
				return a[d] < b[d]
			}
		}
		return false
	})

	addr := alloc(int64(nodeSize))
	nw := w.At(int64(addr))
	if err := nw.WriteBytes(btreeSignature); err != nil {
		return 0, err
	}
	if err := nw.WriteUint8(1); err != nil { // node type 1: chunk
		return 0, err
	}
	if err := nw.WriteUint8(0); err != nil { // level 0
		return 0, err
	}
	if err := nw.WriteUint16(uint16(len(chunks))); err != nil {
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil {
		return 0, err
	}
	if err := nw.WriteUndefinedOffset(); err != nil {
		return 0, err
	}

	for i := range chunks {
		c := &chunks[i]
		if len(c.Offsets) != ndims {
			return 0, fmt.Errorf("chunk %d has %d offsets, want %d", i, len(c.Offsets), ndims)
		}
		if err := nw.WriteUint32(c.Size); err != nil {
			return 0, err
		}
		if err := nw.WriteUint32(c.FilterMask); err != nil {
			return 0, err
		}
		for d := 0; d < ndims; d++ {
			if err := nw.WriteUint64(c.Offsets[d]); err != nil {
				return 0, err
			}
		}
		if err := nw.WriteUint64(0); err != nil {
			return 0, err
		}
		if err := nw.WriteOffset(c.Address); err != nil {
			return 0, err
		}
	}

	if len(chunks) > 0 {
		last := &chunks[len(chunks)-1]
		if err := nw.WriteUint32(0); err != nil {
			return 0, err
		}
		if err := nw.WriteUint32(0); err != nil {
			return 0, err
		}
		for d := 0; d < ndims; d++ {
			if err := nw.WriteUint64(last.Offsets[d] + uint64(chunkDims[d])); err != nil {
				return 0, err
			}
		}
		if err := nw.WriteUint64(uint64(elemSize)); err != nil {
			return 0, err
		}
	}

	if err := nw.WriteZeros(nodeSize - int(nw.Pos()-int64(addr))); err != nil {
		return 0, err
	}

	return addr, nil
}
