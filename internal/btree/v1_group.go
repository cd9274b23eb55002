package btree

import (
	"fmt"
	"sort"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/heap"
)

var (
	btreeSignature = []byte("TREE")
	snodSignature  = []byte("SNOD")
)

const (
	nodeTypeGroup uint8 = 0
	nodeTypeChunk uint8 = 1
)

// maxTreeDepth bounds version 1 tree recursion. Real trees are a few
// levels deep; anything past this is a cycle in a corrupt file.
const maxTreeDepth = 64

// Symbol table entry cache types.
const (
	cacheTypeNone     uint32 = 0
	cacheTypeGroup    uint32 = 1
	cacheTypeSoftLink uint32 = 2
)

// GroupEntry is one link read from a group's name index.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64
	LinkType      uint32 // 0 hard, 1 soft
	SoftLinkValue string // target path when LinkType is 1
}

// v1Node is the fixed prefix shared by group and chunk tree nodes.
type v1Node struct {
	level uint8
	count int
}

// openV1Node validates the node prefix at address and returns a cursor
// positioned at the first key.
func openV1Node(r *binary.Reader, address uint64, wantType uint8) (*binary.Reader, v1Node, error) {
	var node v1Node
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, node, fmt.Errorf("reading tree node at 0x%x: %w", address, err)
	}
	if string(sig) != string(btreeSignature) {
		return nil, node, fmt.Errorf("bad tree node signature %q at 0x%x", sig, address)
	}
	typ, err := nr.ReadUint8()
	if err != nil {
		return nil, node, err
	}
	if typ != wantType {
		return nil, node, fmt.Errorf("tree node at 0x%x has type %d, want %d", address, typ, wantType)
	}
	if node.level, err = nr.ReadUint8(); err != nil {
		return nil, node, err
	}
	count, err := nr.ReadUint16()
	if err != nil {
		return nil, node, err
	}
	node.count = int(count)
	nr.Skip(int64(2 * r.OffsetSize())) // sibling addresses
	return nr, node, nil
}

// ReadGroupEntries collects every link in the group tree rooted at
// address, resolving names through the group's local heap.
func ReadGroupEntries(r *binary.Reader, address uint64, localHeap *heap.LocalHeap) ([]GroupEntry, error) {
	return readGroupNode(r, address, localHeap, 0)
}

func readGroupNode(r *binary.Reader, address uint64, localHeap *heap.LocalHeap, depth int) ([]GroupEntry, error) {
	if depth > maxTreeDepth {
		return nil, fmt.Errorf("group tree deeper than %d levels", maxTreeDepth)
	}
	nr, node, err := openV1Node(r, address, nodeTypeGroup)
	if err != nil {
		return nil, err
	}

	var entries []GroupEntry
	for i := 0; i < node.count; i++ {
		// Boundary key, then the child it bounds.
		if _, err := nr.ReadLength(); err != nil {
			return nil, err
		}
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}

		var sub []GroupEntry
		if node.level == 0 {
			sub, err = readSymbolNode(r, child, localHeap)
		} else {
			sub, err = readGroupNode(r, child, localHeap, depth+1)
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, sub...)
	}
	return entries, nil
}

// FindEntry searches the group tree for one link without loading every
// symbol table node. Children are bracketed by boundary keys: child i
// covers names greater than key i and at most key i+1, with key 0 the
// empty string at heap offset 0, below all real names.
func FindEntry(r *binary.Reader, address uint64, localHeap *heap.LocalHeap, name string) (GroupEntry, bool, error) {
	return findInGroupNode(r, address, localHeap, name, 0)
}

func findInGroupNode(r *binary.Reader, address uint64, localHeap *heap.LocalHeap, name string, depth int) (GroupEntry, bool, error) {
	var none GroupEntry
	if depth > maxTreeDepth {
		return none, false, fmt.Errorf("group tree deeper than %d levels", maxTreeDepth)
	}
	nr, node, err := openV1Node(r, address, nodeTypeGroup)
	if err != nil {
		return none, false, err
	}

	keys := make([]uint64, node.count+1)
	children := make([]uint64, node.count)
	for i := 0; i < node.count; i++ {
		if keys[i], err = nr.ReadLength(); err != nil {
			return none, false, err
		}
		if children[i], err = nr.ReadOffset(); err != nil {
			return none, false, err
		}
	}
	if node.count > 0 {
		if keys[node.count], err = nr.ReadLength(); err != nil {
			return none, false, err
		}
	}

	lo, hi := 0, node.count-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case name <= localHeap.GetString(keys[mid]):
			hi = mid - 1
		case name > localHeap.GetString(keys[mid+1]):
			lo = mid + 1
		case node.level == 0:
			return findInSymbolNode(r, children[mid], localHeap, name)
		default:
			return findInGroupNode(r, children[mid], localHeap, name, depth+1)
		}
	}
	return none, false, nil
}

func findInSymbolNode(r *binary.Reader, address uint64, localHeap *heap.LocalHeap, name string) (GroupEntry, bool, error) {
	entries, err := readSymbolNode(r, address, localHeap)
	if err != nil {
		return GroupEntry{}, false, err
	}

	// Entries within a node are sorted by name.
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Name >= name })
	if i < len(entries) && entries[i].Name == name {
		return entries[i], true, nil
	}
	return GroupEntry{}, false, nil
}

func readSymbolNode(r *binary.Reader, address uint64, localHeap *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading symbol table node at 0x%x: %w", address, err)
	}
	if string(sig) != string(snodSignature) {
		return nil, fmt.Errorf("bad symbol table node signature %q at 0x%x", sig, address)
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version %d", version)
	}
	nr.Skip(1) // reserved
	count, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}

	entries := make([]GroupEntry, 0, count)
	for i := 0; i < int(count); i++ {
		entry, err := readSymbolEntry(nr, localHeap)
		if err != nil {
			return nil, fmt.Errorf("symbol table entry %d at 0x%x: %w", i, address, err)
		}
		// Name offset 0 resolves to the empty string, marking an
		// unused slot in a partially filled node.
		if entry.Name == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func readSymbolEntry(nr *binary.Reader, localHeap *heap.LocalHeap) (GroupEntry, error) {
	var entry GroupEntry

	nameOffset, err := nr.ReadOffset()
	if err != nil {
		return entry, err
	}
	objectAddr, err := nr.ReadOffset()
	if err != nil {
		return entry, err
	}
	cacheType, err := nr.ReadUint32()
	if err != nil {
		return entry, err
	}
	nr.Skip(4) // reserved
	scratch, err := nr.ReadBytes(16)
	if err != nil {
		return entry, err
	}

	if nameOffset != 0 {
		entry.Name = localHeap.GetString(nameOffset)
	}
	entry.ObjectAddress = objectAddr

	if cacheType == cacheTypeSoftLink {
		// The scratch pad holds the heap offset of the target path.
		target := uint64(scratch[0]) | uint64(scratch[1])<<8 |
			uint64(scratch[2])<<16 | uint64(scratch[3])<<24
		entry.LinkType = 1
		entry.SoftLinkValue = localHeap.GetString(target)
		entry.ObjectAddress = 0
	}
	return entry, nil
}
