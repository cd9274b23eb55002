package hdf5

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/fennelab/hdf5/internal/btree"
	"github.com/fennelab/hdf5/internal/heap"
	"github.com/fennelab/hdf5/internal/message"
	"github.com/fennelab/hdf5/internal/object"
)

// Group represents an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header
}

// linkResolution is the outcome of resolving a child link.
type linkResolution struct {
	address   uint64
	isDataset bool
}

// Name returns the group name (last component of path).
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

// Path returns the full path to this group.
func (g *Group) Path() string {
	return g.path
}

// OpenGroup opens a subgroup by relative path.
func (g *Group) OpenGroup(relativePath string) (*Group, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}

	group, ok := obj.(*Group)
	if !ok {
		return nil, ErrNotGroup
	}
	return group, nil
}

// OpenDataset opens a dataset by relative path.
func (g *Group) OpenDataset(relativePath string) (*Dataset, error) {
	obj, err := g.open(relativePath)
	if err != nil {
		return nil, err
	}

	dataset, ok := obj.(*Dataset)
	if !ok {
		return nil, ErrNotDataset
	}
	return dataset, nil
}

// open opens an object by relative path.
func (g *Group) open(relativePath string) (interface{}, error) {
	parts := SplitPath(relativePath)
	if len(parts) == 0 {
		return g, nil
	}

	current := g
	for i, name := range parts {
		res, err := current.findChild(name, nil)
		if err != nil {
			return nil, fmt.Errorf("finding %q: %w", name, err)
		}

		fullPath := path.Join(current.path, name)

		if i == len(parts)-1 {
			if res.isDataset {
				return g.file.openDatasetAt(res.address, fullPath)
			}
			return g.file.openGroupAt(res.address, fullPath)
		}

		if res.isDataset {
			return nil, fmt.Errorf("%q: %w", fullPath, ErrNotGroup)
		}

		next, err := g.file.openGroupAt(res.address, fullPath)
		if err != nil {
			return nil, err
		}
		current = next
	}

	return current, nil
}

// usesDenseStorage reports whether the group stores its links in a
// fractal heap. Dense link storage is not read; such groups show no
// children.
func (g *Group) usesDenseStorage() bool {
	if msg := g.header.GetMessage(message.TypeLinkInfo); msg != nil {
		return msg.(*message.LinkInfo).UsesFractalHeap()
	}
	return false
}

// symbolTable returns the group's symbol table message, or the root
// addresses cached in the superblock scratch pad when the root header
// carries no such message. Returns nil for groups without one.
func (g *Group) symbolTable() *message.SymbolTable {
	if msg := g.header.GetMessage(message.TypeSymbolTable); msg != nil {
		return msg.(*message.SymbolTable)
	}
	if g.path == "/" && g.file.superblock.RootGroupBTreeAddress != 0 {
		return &message.SymbolTable{
			BTreeAddress:     g.file.superblock.RootGroupBTreeAddress,
			LocalHeapAddress: g.file.superblock.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

// findChild resolves the named child of this group. Files can carry both a
// symbol table and Link messages; the symbol-table entry wins for a name
// present in both. chain holds the soft-link targets already being
// followed, in order.
func (g *Group) findChild(name string, chain []string) (*linkResolution, error) {
	if g.usesDenseStorage() {
		return nil, ErrNotFound
	}

	if st := g.symbolTable(); st != nil {
		res, found, err := g.findChildV1(name, st, chain)
		if err != nil {
			return nil, err
		}
		if found {
			return res, nil
		}
	}

	for _, msg := range g.header.GetMessages(message.TypeLink) {
		link := msg.(*message.Link)
		if link.Name == name {
			return g.resolveLink(link, chain)
		}
	}

	return nil, ErrNotFound
}

// findChildV1 searches a v1 group's B-tree for the named entry.
func (g *Group) findChildV1(name string, symTable *message.SymbolTable, chain []string) (*linkResolution, bool, error) {
	localHeap, err := heap.ReadLocalHeap(g.file.reader, symTable.LocalHeapAddress)
	if err != nil {
		return nil, false, fmt.Errorf("reading local heap: %w", err)
	}

	entry, found, err := btree.FindEntry(g.file.reader, symTable.BTreeAddress, localHeap, name)
	if err != nil {
		return nil, false, fmt.Errorf("searching B-tree: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	if entry.LinkType == 1 {
		res, err := g.resolveSoftTarget(entry.SoftLinkValue, chain)
		if err != nil {
			return nil, false, err
		}
		return res, true, nil
	}

	isDataset, err := g.isDataset(entry.ObjectAddress)
	if err != nil {
		return nil, false, err
	}
	return &linkResolution{address: entry.ObjectAddress, isDataset: isDataset}, true, nil
}

// resolveLink resolves a Link message to the target object's address.
func (g *Group) resolveLink(link *message.Link, chain []string) (*linkResolution, error) {
	switch {
	case link.IsHard():
		isDataset, err := g.isDataset(link.ObjectAddress)
		if err != nil {
			return nil, err
		}
		return &linkResolution{address: link.ObjectAddress, isDataset: isDataset}, nil

	case link.IsSoft():
		return g.resolveSoftTarget(link.SoftLinkValue, chain)

	case link.IsExternal():
		return nil, fmt.Errorf("external link to %q in file %q: %w",
			link.ExternalPath, link.ExternalFile, ErrUnsupportedFeature)

	default:
		return nil, fmt.Errorf("link type %d: %w", link.LinkType, ErrUnsupportedFeature)
	}
}

// resolveSoftTarget re-resolves a soft-link target from the root. A
// relative target counts from the group holding the link. A target
// already on the chain, or a chain past MaxLinkDepth, is circular.
func (g *Group) resolveSoftTarget(target string, chain []string) (*linkResolution, error) {
	if !strings.HasPrefix(target, "/") {
		target = path.Join(g.path, target)
	}
	for _, seen := range chain {
		if seen == target {
			return nil, &CircularLinkError{Chain: append(append([]string{}, chain...), target)}
		}
	}
	if len(chain) >= MaxLinkDepth {
		return nil, &CircularLinkError{Chain: append(append([]string{}, chain...), target)}
	}
	return g.file.resolveAbsolutePath(target, append(chain, target))
}

// isDataset checks if the object at the given address is a dataset.
// Datasets carry a dataspace message; groups do not.
func (g *Group) isDataset(address uint64) (bool, error) {
	header, err := object.Read(g.file.reader, address)
	if err != nil {
		return false, classify(err)
	}

	return header.GetMessage(message.TypeDataspace) != nil, nil
}

// rawChild is one group entry before link resolution.
type rawChild struct {
	name       string
	link       LinkKind
	address    uint64 // hard links
	softTarget string // soft links
}

// rawChildren lists the group's entries: the union of symbol-table entries
// and Link messages, de-duplicated by name with the symbol table winning,
// sorted by name. Groups storing links densely in a fractal heap report no
// entries.
func (g *Group) rawChildren() ([]rawChild, error) {
	if g.usesDenseStorage() {
		return nil, nil
	}

	var children []rawChild
	seen := make(map[string]bool)

	if st := g.symbolTable(); st != nil {
		entries, err := g.readSymbolEntries(st)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			c := rawChild{name: e.Name, address: e.ObjectAddress}
			if e.LinkType == 1 {
				c.link = LinkSoft
				c.softTarget = e.SoftLinkValue
			}
			children = append(children, c)
			seen[e.Name] = true
		}
	}

	for _, msg := range g.header.GetMessages(message.TypeLink) {
		link := msg.(*message.Link)
		if seen[link.Name] {
			continue
		}
		c := rawChild{name: link.Name}
		switch {
		case link.IsSoft():
			c.link = LinkSoft
			c.softTarget = link.SoftLinkValue
		case link.IsExternal():
			c.link = LinkExternal
		default:
			c.address = link.ObjectAddress
		}
		children = append(children, c)
		seen[link.Name] = true
	}

	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })
	return children, nil
}

// readSymbolEntries loads every entry of a v1 group's symbol table.
func (g *Group) readSymbolEntries(symTable *message.SymbolTable) ([]btree.GroupEntry, error) {
	localHeap, err := heap.ReadLocalHeap(g.file.reader, symTable.LocalHeapAddress)
	if err != nil {
		return nil, fmt.Errorf("reading local heap: %w", err)
	}

	return btree.ReadGroupEntries(g.file.reader, symTable.BTreeAddress, localHeap)
}

// Members returns the names of this group's children, sorted.
func (g *Group) Members() ([]string, error) {
	children, err := g.rawChildren()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.name
	}
	return names, nil
}

// Children describes this group's entries: name, object kind, link kind.
// Soft links are resolved to discover the target kind; targets that cannot
// be resolved, and external links, are reported as KindUnknown.
func (g *Group) Children() ([]ChildInfo, error) {
	children, err := g.rawChildren()
	if err != nil {
		return nil, err
	}

	infos := make([]ChildInfo, 0, len(children))
	for _, c := range children {
		info := ChildInfo{Name: c.name, Link: c.link}
		switch c.link {
		case LinkHard:
			isDs, err := g.isDataset(c.address)
			if err != nil {
				return nil, err
			}
			info.Kind = kindOf(isDs)
		case LinkSoft:
			if res, err := g.resolveSoftTarget(c.softTarget, nil); err == nil {
				info.Kind = kindOf(res.isDataset)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func kindOf(isDataset bool) ObjectKind {
	if isDataset {
		return KindDataset
	}
	return KindGroup
}

// NumObjects returns the number of objects in this group.
func (g *Group) NumObjects() (int, error) {
	members, err := g.Members()
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// Attrs returns this group's attribute names.
func (g *Group) Attrs() []string {
	return headerAttrNames(g.header)
}

// Attr returns an attribute by name, or nil when absent.
func (g *Group) Attr(name string) *Attribute {
	return headerAttr(g.header, name, g.file.reader)
}

// HasAttr reports whether the group carries the named attribute.
func (g *Group) HasAttr(name string) bool {
	return g.Attr(name) != nil
}
