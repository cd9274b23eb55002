package hdf5

import (
	"fmt"
	"sort"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/btree"
	"github.com/fennelab/hdf5/internal/heap"
	"github.com/fennelab/hdf5/internal/message"
	"github.com/fennelab/hdf5/internal/object"
)

// Group B-tree ranks recorded in classic superblocks. A level-0 tree over
// full symbol table nodes bounds a group at 2*internalK * 2*leafK = 256
// links.
const (
	groupLeafK     = 4
	groupInternalK = 16
)

type entryKind uint8

const (
	entryGroup entryKind = iota
	entryDataset
	entrySoft
	entryHard
)

// planEntry is one link inside a planned group.
type planEntry struct {
	name       string
	kind       entryKind
	group      *groupNode   // entryGroup
	dataset    *datasetPlan // entryDataset
	softTarget string       // entrySoft: path stored verbatim in the heap
	hardTarget string       // entryHard: canonical path of the target
}

// groupNode is one planned group plus the addresses of its storage once
// written.
type groupNode struct {
	path     string
	children map[string]*planEntry
	attrs    map[string]any

	symtab     *message.SymbolTable
	links      map[string]*message.Link // new-style: one link message per child
	messages   []message.Message
	headerAddr uint64
	btreeAddr  uint64
	heapAddr   uint64
	refCount   uint32
}

func newGroupNode(path string) *groupNode {
	return &groupNode{
		path:     path,
		children: make(map[string]*planEntry),
		refCount: 1,
	}
}

func (n *groupNode) sortedChildNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildMessages assembles the group's object header messages around a
// symbol table message whose addresses are filled in once the group's
// heap and B-tree are written.
func (n *groupNode) buildMessages() ([]message.Message, error) {
	n.symtab = message.NewSymbolTable(0, 0)
	msgs := []message.Message{n.symtab}

	attrMsgs, err := attributeMessages(n.attrs)
	if err != nil {
		return nil, err
	}
	return append(msgs, attrMsgs...), nil
}

// buildLinkMessages assembles a new-style group's header messages: link
// info, group info, one link message per child in name order, then
// attributes and, for multiply linked groups, a reference count. Hard
// link addresses stay zero until every object has a reserved header
// address; a link's size does not depend on the address value.
func (n *groupNode) buildLinkMessages() ([]message.Message, error) {
	n.links = make(map[string]*message.Link, len(n.children))
	links := make([]*message.Link, 0, len(n.children))
	for _, name := range n.sortedChildNames() {
		var link *message.Link
		if c := n.children[name]; c.kind == entrySoft {
			link = message.NewSoftLink(name, c.softTarget)
		} else {
			link = message.NewHardLink(name, 0)
		}
		n.links[name] = link
		links = append(links, link)
	}

	msgs := object.NewGroupHeader(links)
	attrMsgs, err := attributeMessages(n.attrs)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, attrMsgs...)
	if n.refCount > 1 {
		msgs = append(msgs, message.NewObjectRefCount(n.refCount))
	}
	return msgs, nil
}

// postOrderGroups returns the group tree children first, so that when a
// parent's symbol table entries are built every child group already has
// its B-tree and heap addresses.
func postOrderGroups(root *groupNode) []*groupNode {
	var out []*groupNode
	var walk func(n *groupNode)
	walk = func(n *groupNode) {
		for _, name := range n.sortedChildNames() {
			if c := n.children[name]; c.kind == entryGroup {
				walk(c.group)
			}
		}
		out = append(out, n)
	}
	walk(root)
	return out
}

// writeGroupStorage writes one group's local heap, symbol table nodes,
// and name B-tree, then points the group's symbol table message at them.
// Child groups must already be written and every linked object must have
// a header address reserved.
func (wp *writePlan) writeGroupStorage(w *binary.Writer, alloc func(int64) uint64, node *groupNode) error {
	names := node.sortedChildNames()

	heapW := heap.NewLocalHeapWriter()
	for _, name := range names {
		heapW.Add(name)
		if c := node.children[name]; c.kind == entrySoft {
			heapW.Add(c.softTarget)
		}
	}
	heapAddr, err := heapW.Write(w, alloc)
	if err != nil {
		return fmt.Errorf("writing local heap: %w", err)
	}

	// Entries in name order to match the heap-offset boundary keys.
	entries := make([]btree.SymbolEntry, 0, len(names))
	for _, name := range names {
		nameOff, _ := heapW.Offset(name)
		c := node.children[name]

		switch c.kind {
		case entryGroup:
			entries = append(entries, btree.NewGroupSymbol(
				nameOff, c.group.headerAddr, c.group.btreeAddr, c.group.heapAddr))
		case entryDataset:
			entries = append(entries, btree.NewObjectSymbol(nameOff, c.dataset.headerAddr))
		case entrySoft:
			targetOff, _ := heapW.Offset(c.softTarget)
			entries = append(entries, btree.NewSoftLinkSymbol(nameOff, targetOff))
		case entryHard:
			addr, err := wp.addrOf(c.hardTarget)
			if err != nil {
				return fmt.Errorf("hard link %q in %q: %w", name, node.path, err)
			}
			entries = append(entries, btree.NewObjectSymbol(nameOff, addr))
		}
	}

	btreeAddr, err := btree.WriteGroupTree(w, alloc, entries, groupLeafK, groupInternalK)
	if err != nil {
		return fmt.Errorf("writing name index: %w", err)
	}

	node.btreeAddr = btreeAddr
	node.heapAddr = heapAddr
	node.symtab.BTreeAddress = btreeAddr
	node.symtab.LocalHeapAddress = heapAddr
	return nil
}
