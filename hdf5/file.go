package hdf5

import (
	"fmt"
	"os"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/object"
	"github.com/fennelab/hdf5/internal/superblock"
)

// File is an open HDF5 file. Files opened with Open are read-only; use
// Create to produce new files. A File is not safe for concurrent use.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool
}

// Open opens an HDF5 file for reading. The superblock is validated
// eagerly; groups and datasets are parsed on demand.
func Open(path string) (*File, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	f, err := newFile(src, path)
	if err != nil {
		src.Close()
		return nil, err
	}
	return f, nil
}

// newFile validates the superblock of an opened file and parses the
// root group header.
func newFile(src *os.File, path string) (*File, error) {
	sb, err := superblock.Read(src)
	if err != nil {
		return nil, classify(fmt.Errorf("reading superblock: %w", err))
	}

	f := &File{
		path:       path,
		file:       src,
		reader:     binary.NewReader(src, sb.ReaderConfig()),
		superblock: sb,
	}
	f.root, err = f.openGroupAt(sb.RootGroupAddress, "/")
	if err != nil {
		return nil, classify(fmt.Errorf("opening root group: %w", err))
	}
	return f, nil
}

// Close closes the file. Closing an already closed file is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.file.Close()
}

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Version returns the superblock version.
func (f *File) Version() int { return int(f.superblock.Version) }

// OpenGroup opens a group by path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens a dataset by path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

/// DatasetData is the flattened result of ReadDataset: the row-major values,
// the dataset shape, and every attribute on the dataset.
type DatasetData struct {
	Values     any // []int64 or []float64
	Shape      []int
	Attributes map[string]any
}

// ReadDataset opens the dataset at path and reads its full contents,
// widening integer data to []int64 and floating-point data to []float64.
// Datatypes outside those two classes fail with ErrUnsupportedFeature.
func (f *File) ReadDataset(path string) (*DatasetData, error) {
	ds, err := f.OpenDataset(path)
	if err != nil {
		return nil, err
	}

	values, err := ds.readWidened()
	if err != nil {
		return nil, err
	}

	dims := ds.Dims()
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}

	attrs := make(map[string]any)
	for _, name := range ds.Attrs() {
		val, err := ds.Attr(name).Value()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %q: %w", name, err)
		}
		attrs[name] = val
	}

	return &DatasetData{Values: values, Shape: shape, Attributes: attrs}, nil
}

// ObjectKind discriminates groups from datasets in directory listings.
type ObjectKind int

const (
	// KindUnknown marks children whose type cannot be determined, such as
	// the targets of dangling soft links or of external links.
	KindUnknown ObjectKind = iota
	KindGroup
	KindDataset
)

func (k ObjectKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	}
	return "unknown"
}

// LinkKind reports how a child is attached to its parent group.
type LinkKind int

const (
	LinkHard LinkKind = iota
	LinkSoft
	LinkExternal
)

func (k LinkKind) String() string {
	switch k {
	case LinkSoft:
		return "soft"
	case LinkExternal:
		return "external"
	}
	return "hard"
}

// ChildInfo describes one entry of a group.
type ChildInfo struct {
	Name string
	Kind ObjectKind
	Link LinkKind
}

// ListChildren lists the children of the group at groupPath, sorted by
// name. External links are listed but carry KindUnknown; they cannot be
// followed.
func (f *File) ListChildren(groupPath string) ([]ChildInfo, error) {
	g, err := f.OpenGroup(groupPath)
	if err != nil {
		return nil, err
	}
	return g.Children()
}

// openGroupAt opens a group at the given address.
func (f *File) openGroupAt(address uint64, path string) (*Group, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, classify(fmt.Errorf("reading object header: %w", err))
	}

	return &Group{
		file:   f,
		path:   path,
		header: header,
	}, nil
}

// openDatasetAt opens a dataset at the given address.
func (f *File) openDatasetAt(address uint64, path string) (*Dataset, error) {
	header, err := object.Read(f.reader, address)
	if err != nil {
		return nil, classify(fmt.Errorf("reading object header: %w", err))
	}

	return newDataset(f, path, header)
}

// Attrs returns the root group's attribute names.
func (f *File) Attrs() []string { return f.root.Attrs() }

// Attr returns a root group attribute by name, or nil when absent.
func (f *File) Attr(name string) *Attribute { return f.root.Attr(name) }

// HasAttr reports whether the root group carries the named attribute.
func (f *File) HasAttr(name string) bool { return f.root.HasAttr(name) }

// Walk visits every object in the file, starting at the root group.
func (f *File) Walk(fn WalkFunc) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, fn)
}

// GetAttr returns the attribute named by an "@"-addressed path, such as
// "/run1/data@units" or "/@version" for the root group.
func (f *File) GetAttr(path string) (*Attribute, error) {
	if f.closed {
		return nil, ErrClosed
	}

	objectPath, attrName, err := ParseAttrPath(path)
	if err != nil {
		return nil, err
	}

	holder, err := f.openAttrHolder(objectPath)
	if err != nil {
		return nil, err
	}
	attr := holder.Attr(attrName)
	if attr == nil {
		return nil, fmt.Errorf("attribute %q on %s: %w", attrName, objectPath, ErrNotFound)
	}
	return attr, nil
}

// ReadAttr reads an attribute value by "@"-addressed path; shorthand
// for GetAttr followed by Value.
func (f *File) ReadAttr(path string) (any, error) {
	attr, err := f.GetAttr(path)
	if err != nil {
		return nil, err
	}
	return attr.Value()
}

// attrHolder is the attribute surface shared by Group and Dataset.
type attrHolder interface {
	Attr(name string) *Attribute
	Attrs() []string
}

// openAttrHolder opens the group or dataset at path. Groups win when a
// path could name either.
func (f *File) openAttrHolder(path string) (attrHolder, error) {
	if path == "/" {
		return f.root, nil
	}
	if g, err := f.OpenGroup(path); err == nil {
		return g, nil
	}
	if ds, err := f.OpenDataset(path); err == nil {
		return ds, nil
	}
	return nil, fmt.Errorf("object %s: %w", path, ErrNotFound)
}

// resolveAbsolutePath walks an absolute path from the root and returns the
// target's resolution. It is the re-resolution step behind soft links;
// chain carries the link targets already being followed, in order, for
// cycle detection.
func (f *File) resolveAbsolutePath(absPath string, chain []string) (*linkResolution, error) {
	parts := SplitPath(absPath)
	if len(parts) == 0 {
		return &linkResolution{address: f.superblock.RootGroupAddress}, nil
	}

	current := f.root
	for i, name := range parts {
		res, err := current.findChild(name, chain)
		if err != nil {
			return nil, fmt.Errorf("resolving %q in path %s: %w", name, absPath, err)
		}

		if i == len(parts)-1 {
			return res, nil
		}

		if res.isDataset {
			return nil, fmt.Errorf("%q in path %s: %w", name, absPath, ErrNotGroup)
		}

		next, err := f.openGroupAt(res.address, "")
		if err != nil {
			return nil, fmt.Errorf("opening group %q: %w", name, err)
		}
		current = next
	}

	return nil, ErrInvalidPath
}
