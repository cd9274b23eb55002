package hdf5

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fennelab/hdf5/internal/alloc"
	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/message"
	"github.com/fennelab/hdf5/internal/object"
	"github.com/fennelab/hdf5/internal/superblock"
)

// FileWriter accumulates datasets, groups, links, and attributes and
// writes the complete file in one pass when Close runs. Nothing touches
// the disk before Close; a Close that fails removes the partial file, so
// the path either holds a fully valid file or nothing.
//
// A FileWriter is not safe for concurrent use.
type FileWriter struct {
	path string
	cfg  fileConfig

	datasets  map[string]*datasetPlan
	groups    map[string]bool
	softLinks map[string]string // link path -> target path
	hardLinks map[string]string // link path -> target path
	attrs     map[string]map[string]any
	closed    bool
}

// Create starts a plan for a new HDF5 file at path. Options are
// validated immediately; the file itself is created by Close.
func Create(path string, opts ...FileOption) (*FileWriter, error) {
	cfg := defaultFileConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &FileWriter{
		path:      path,
		cfg:       cfg,
		datasets:  make(map[string]*datasetPlan),
		groups:    make(map[string]bool),
		softLinks: make(map[string]string),
		hardLinks: make(map[string]string),
		attrs:     make(map[string]map[string]any),
	}, nil
}

// WriteDataset plans a dataset at path. values must be []int64 or
// []float64 with exactly as many elements as shape describes; an empty
// shape with one value makes a scalar dataset. Ancestor groups are
// created implicitly.
func (fw *FileWriter) WriteDataset(path string, values any, shape []int, opts ...DatasetOption) error {
	if fw.closed {
		return ErrClosed
	}
	p, err := canonicalPath(path)
	if err != nil {
		return err
	}
	if p == "/" {
		return fmt.Errorf("%w: cannot store a dataset at the root", ErrInvalidPath)
	}
	if err := fw.checkNewPath(p); err != nil {
		return err
	}

	plan, err := newDatasetPlan(p, values, shape, opts...)
	if err != nil {
		return fmt.Errorf("dataset %q: %w", p, err)
	}
	fw.datasets[p] = plan
	return nil
}

// CreateGroup plans an empty group at path. Groups on the way to any
// planned object already exist implicitly, so this is only needed for
// groups that would otherwise have no reason to exist. Creating "/" is
// a no-op.
func (fw *FileWriter) CreateGroup(path string) error {
	if fw.closed {
		return ErrClosed
	}
	p, err := canonicalPath(path)
	if err != nil {
		return err
	}
	if p == "/" {
		return nil
	}
	if err := fw.checkNewPath(p); err != nil {
		return err
	}
	fw.groups[p] = true
	return nil
}

// CreateSoftLink plans a soft link at linkPath pointing to target.
// The target is stored by name and may refer to a path that does not
// exist; readers report such links as dangling. Argument order follows
// os.Symlink.
func (fw *FileWriter) CreateSoftLink(target, linkPath string) error {
	if fw.closed {
		return ErrClosed
	}
	t, err := canonicalPath(target)
	if err != nil {
		return err
	}
	p, err := canonicalPath(linkPath)
	if err != nil {
		return err
	}
	if p == "/" {
		return fmt.Errorf("%w: cannot place a link at the root", ErrInvalidPath)
	}
	if err := fw.checkNewPath(p); err != nil {
		return err
	}
	fw.softLinks[p] = t
	return nil
}

// CreateHardLink plans a second name for a planned dataset or group.
// The target must name a dataset or group in this plan by the time
// Close runs; linking the root group or another link is rejected.
// Argument order follows os.Link.
func (fw *FileWriter) CreateHardLink(target, linkPath string) error {
	if fw.closed {
		return ErrClosed
	}
	t, err := canonicalPath(target)
	if err != nil {
		return err
	}
	p, err := canonicalPath(linkPath)
	if err != nil {
		return err
	}
	if p == "/" {
		return fmt.Errorf("%w: cannot place a link at the root", ErrInvalidPath)
	}
	if err := fw.checkNewPath(p); err != nil {
		return err
	}
	fw.hardLinks[p] = t
	return nil
}

// SetAttribute attaches an attribute to the object at objPath: a planned
// dataset or group, "/" for the root group, or a hard link, which lands
// the attribute on the link's target. A path with nothing else planned
// at it becomes a group. SetAttribute overrides a WithAttribute of the
// same name.
func (fw *FileWriter) SetAttribute(objPath, name string, value any) error {
	if fw.closed {
		return ErrClosed
	}
	if name == "" {
		return fmt.Errorf("empty attribute name")
	}
	p, err := canonicalPath(objPath)
	if err != nil {
		return err
	}

	m := fw.attrs[p]
	if m == nil {
		m = make(map[string]any)
		fw.attrs[p] = m
	}
	m[name] = value
	return nil
}

// Close resolves the plan and writes the file. The writer is spent
// afterwards whether or not Close succeeds; on failure no file is left
// at the path.
func (fw *FileWriter) Close() error {
	if fw.closed {
		return ErrClosed
	}
	fw.closed = true

	plan, err := fw.buildPlan()
	if err != nil {
		return err
	}
	return plan.commit(fw.path)
}

// Finalize is Close under the name orchestration code tends to use.
func (fw *FileWriter) Finalize() error {
	return fw.Close()
}

// checkNewPath rejects a path that already has something planned at it.
func (fw *FileWriter) checkNewPath(p string) error {
	if _, ok := fw.datasets[p]; ok {
		return fmt.Errorf("a dataset is already planned at %q", p)
	}
	if fw.groups[p] {
		return fmt.Errorf("a group is already planned at %q", p)
	}
	if _, ok := fw.softLinks[p]; ok {
		return fmt.Errorf("a soft link is already planned at %q", p)
	}
	if _, ok := fw.hardLinks[p]; ok {
		return fmt.Errorf("a hard link is already planned at %q", p)
	}
	return nil
}

// canonicalPath normalizes a user-supplied object path to the absolute
// /a/b/c form. Empty components and "."/".." are rejected rather than
// resolved.
func canonicalPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if p == "/" {
		return "/", nil
	}

	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for _, part := range parts {
		switch part {
		case "":
			return "", fmt.Errorf("%w: empty component in %q", ErrInvalidPath, p)
		case ".", "..":
			return "", fmt.Errorf("%w: %q component in %q", ErrInvalidPath, part, p)
		}
	}
	return "/" + strings.Join(parts, "/"), nil
}

// parentPath returns the path of the group containing p.
func parentPath(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

func baseName(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

func sortedPaths[V any](m map[string]V) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// writePlan is the fully resolved file layout: the group tree, every
// dataset with its storage decided, and the chunk index rank shared by
// all chunk B-trees.
type writePlan struct {
	cfg       fileConfig
	root      *groupNode
	groups    map[string]*groupNode
	datasets  map[string]*datasetPlan
	indexK    int
	sbVersion uint8
}

// buildPlan turns the accumulated calls into a writePlan: ancestor
// groups filled in, every path conflict caught, hard links resolved,
// attributes merged, and chunk geometry fixed.
func (fw *FileWriter) buildPlan() (*writePlan, error) {
	wp := &writePlan{
		cfg:      fw.cfg,
		datasets: fw.datasets,
		groups:   make(map[string]*groupNode),
	}

	// Attribute-only paths become groups; attributes on a hard link land
	// on its target object, attributes on a soft link have no header to
	// live in.
	groupPaths := make(map[string]bool)
	for p := range fw.groups {
		groupPaths[p] = true
	}
	for _, p := range sortedPaths(fw.attrs) {
		if p == "/" {
			continue
		}
		if _, ok := fw.softLinks[p]; ok {
			return nil, fmt.Errorf("cannot attach attributes to soft link %q", p)
		}
		if _, ok := fw.datasets[p]; ok {
			continue
		}
		if _, ok := fw.hardLinks[p]; ok {
			continue
		}
		groupPaths[p] = true
	}

	// Close over ancestors of everything planned.
	addAncestors := func(p string) {
		for dir := parentPath(p); dir != "/"; dir = parentPath(dir) {
			groupPaths[dir] = true
		}
	}
	for p := range fw.datasets {
		addAncestors(p)
	}
	for p := range fw.softLinks {
		addAncestors(p)
	}
	for p := range fw.hardLinks {
		addAncestors(p)
	}
	for p := range groupPaths {
		addAncestors(p)
	}

	// A path can hold exactly one kind of object. Explicit duplicates
	// were caught at call time; this catches implicit groups landing on
	// a planned dataset or link.
	for _, p := range sortedPaths(groupPaths) {
		if _, ok := fw.datasets[p]; ok {
			return nil, fmt.Errorf("%q is both a group and a dataset", p)
		}
		if _, ok := fw.softLinks[p]; ok {
			return nil, fmt.Errorf("%q is both a group and a soft link", p)
		}
		if _, ok := fw.hardLinks[p]; ok {
			return nil, fmt.Errorf("%q is both a group and a hard link", p)
		}
	}

	wp.root = newGroupNode("/")
	wp.groups["/"] = wp.root
	for _, p := range sortedPaths(groupPaths) {
		wp.groups[p] = newGroupNode(p)
	}

	// Hard link targets must be real planned objects: linking a link
	// would need another resolution pass, and the root group owns the
	// file's entry point.
	for _, p := range sortedPaths(fw.hardLinks) {
		target := fw.hardLinks[p]
		if target == "/" {
			return nil, fmt.Errorf("hard link %q: cannot hard link the root group", p)
		}
		if _, ok := fw.softLinks[target]; ok {
			return nil, fmt.Errorf("hard link %q: target %q is a soft link", p, target)
		}
		if _, ok := fw.hardLinks[target]; ok {
			return nil, fmt.Errorf("hard link %q: target %q is another hard link", p, target)
		}
		_, isDataset := fw.datasets[target]
		if _, isGroup := wp.groups[target]; !isDataset && !isGroup {
			return nil, fmt.Errorf("hard link %q: nothing planned at target %q", p, target)
		}
	}

	// Wire every planned object into its parent group.
	for _, p := range sortedPaths(wp.groups) {
		if p == "/" {
			continue
		}
		node := wp.groups[p]
		wp.groups[parentPath(p)].children[baseName(p)] = &planEntry{
			name: baseName(p), kind: entryGroup, group: node,
		}
	}
	for _, p := range sortedPaths(fw.datasets) {
		wp.groups[parentPath(p)].children[baseName(p)] = &planEntry{
			name: baseName(p), kind: entryDataset, dataset: fw.datasets[p],
		}
	}
	for _, p := range sortedPaths(fw.softLinks) {
		wp.groups[parentPath(p)].children[baseName(p)] = &planEntry{
			name: baseName(p), kind: entrySoft, softTarget: fw.softLinks[p],
		}
	}
	for _, p := range sortedPaths(fw.hardLinks) {
		wp.groups[parentPath(p)].children[baseName(p)] = &planEntry{
			name: baseName(p), kind: entryHard, hardTarget: fw.hardLinks[p],
		}
	}

	// Each hard link raises its target's header reference count.
	for _, target := range fw.hardLinks {
		if ds, ok := wp.datasets[target]; ok {
			ds.refCount++
		} else if g, ok := wp.groups[target]; ok {
			g.refCount++
		}
	}

	// Merge attributes onto their objects. WithAttribute values are
	// already in the dataset plan; SetAttribute wins on a name clash.
	for _, p := range sortedPaths(fw.attrs) {
		objPath := p
		if t, ok := fw.hardLinks[p]; ok {
			objPath = t
		}
		if ds, ok := wp.datasets[objPath]; ok {
			if ds.attrs == nil {
				ds.attrs = make(map[string]any)
			}
			for name, v := range fw.attrs[p] {
				ds.attrs[name] = v
			}
		} else if g, ok := wp.groups[objPath]; ok {
			if g.attrs == nil {
				g.attrs = make(map[string]any)
			}
			for name, v := range fw.attrs[p] {
				g.attrs[name] = v
			}
		}
	}

	// Fix chunk geometry, then the one index rank all chunk B-trees
	// share. A node holds 2k chunk records; the default rank 32 covers
	// 64 chunks and is what a version 0 superblock can express.
	maxChunks := uint64(0)
	for _, ds := range wp.datasets {
		ds.resolveStorage()
		if n := ds.numChunks(); n > maxChunks {
			maxChunks = n
		}
	}
	k := 32
	if maxChunks > 64 {
		k = int((maxChunks + 1) / 2)
	}
	if k > 0xFFFF {
		return nil, fmt.Errorf("a dataset needs %d chunks in a single index node: %w",
			maxChunks, ErrUnsupportedFeature)
	}
	if fw.cfg.superblockVersion == 2 && k != 32 {
		return nil, fmt.Errorf("version 2 superblock cannot record chunk index rank %d: %w",
			k, ErrUnsupportedFeature)
	}
	wp.indexK = k
	wp.sbVersion = fw.cfg.superblockVersion

	return wp, nil
}

// addrOf returns the reserved header address of a planned dataset or
// group.
func (wp *writePlan) addrOf(path string) (uint64, error) {
	if ds, ok := wp.datasets[path]; ok {
		return ds.headerAddr, nil
	}
	if g, ok := wp.groups[path]; ok {
		return g.headerAddr, nil
	}
	return 0, fmt.Errorf("nothing planned at %q", path)
}

func (wp *writePlan) newSuperblock() *superblock.Superblock {
	var sb *superblock.Superblock
	if wp.sbVersion == 2 {
		sb = superblock.NewV2Superblock()
	} else {
		sb = superblock.NewClassicSuperblock()
		sb.SetIndexedStorageK(uint16(wp.indexK))
	}
	sb.OffsetSize = uint8(wp.cfg.offsetSize)
	sb.LengthSize = uint8(wp.cfg.lengthSize)
	return sb
}

// commit creates the file and writes the plan into it. On any failure
// the partial file is removed.
func (wp *writePlan) commit(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := wp.writeTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return classify(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// writeTo lays the file out: dataset payloads first, then every object
// header and its group storage, and the superblock last. Until the
// superblock goes in, the file has no valid entry point.
func (wp *writePlan) writeTo(f *os.File) error {
	sb := wp.newSuperblock()
	w := binary.NewWriter(f, sb.ReaderConfig())
	allocator := alloc.New(uint64(sb.Size()))
	allocFn := allocator.AllocFunc()

	for _, p := range sortedPaths(wp.datasets) {
		if err := wp.datasets[p].writeData(w, allocFn, wp.indexK); err != nil {
			return fmt.Errorf("dataset %q: %w", p, err)
		}
	}

	if wp.sbVersion == 2 {
		if err := wp.writeObjectsV2(w, allocator); err != nil {
			return err
		}
	} else {
		if err := wp.writeObjectsV1(w, allocator, allocFn); err != nil {
			return err
		}
	}

	sb.RootGroupAddress = wp.root.headerAddr
	sb.RootGroupBTreeAddress = wp.root.btreeAddr
	sb.RootGroupLocalHeapAddress = wp.root.heapAddr
	sb.EOFAddress = allocator.EOFAddr()
	if _, err := sb.Write(w.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

// writeObjectsV1 reserves and writes version 1 object headers plus the
// old-style group storage: local heaps, symbol table nodes, and name
// B-trees. Header space is reserved up front because a symbol table
// entry needs its object's address before that object's header can be
// written; group storage goes children first so parents can cache
// child addresses.
func (wp *writePlan) writeObjectsV1(w *binary.Writer, allocator *alloc.Allocator, allocFn func(int64) uint64) error {
	datasetPaths := sortedPaths(wp.datasets)
	for _, p := range datasetPaths {
		ds := wp.datasets[p]
		msgs, err := ds.buildMessages()
		if err != nil {
			return fmt.Errorf("dataset %q: %w", p, err)
		}
		ds.messages = msgs
		ds.headerAddr = allocator.AllocAligned(uint64(object.HeaderSizeV1(w, msgs)), 8)
	}

	groups := postOrderGroups(wp.root)
	for _, g := range groups {
		msgs, err := g.buildMessages()
		if err != nil {
			return fmt.Errorf("group %q: %w", g.path, err)
		}
		g.messages = msgs
		g.headerAddr = allocator.AllocAligned(uint64(object.HeaderSizeV1(w, msgs)), 8)
	}

	for _, g := range groups {
		if err := wp.writeGroupStorage(w, allocFn, g); err != nil {
			return fmt.Errorf("group %q: %w", g.path, err)
		}
	}

	for _, p := range datasetPaths {
		ds := wp.datasets[p]
		if _, err := object.WriteHeaderV1(w.At(int64(ds.headerAddr)), ds.messages, ds.refCount); err != nil {
			return fmt.Errorf("dataset %q header: %w", p, err)
		}
	}
	for _, g := range groups {
		if _, err := object.WriteHeaderV1(w.At(int64(g.headerAddr)), g.messages, g.refCount); err != nil {
			return fmt.Errorf("group %q header: %w", g.path, err)
		}
	}
	return nil
}

// writeObjectsV2 reserves and writes version 2 object headers. New-style
// groups hold their links as header messages, so there is no per-group
// heap or B-tree storage; hard link addresses go in only after every
// header has a reserved address, since a link can point anywhere in the
// tree.
func (wp *writePlan) writeObjectsV2(w *binary.Writer, allocator *alloc.Allocator) error {
	datasetPaths := sortedPaths(wp.datasets)
	for _, p := range datasetPaths {
		ds := wp.datasets[p]
		msgs, err := ds.buildMessages()
		if err != nil {
			return fmt.Errorf("dataset %q: %w", p, err)
		}
		if ds.refCount > 1 {
			msgs = append(msgs, message.NewObjectRefCount(ds.refCount))
		}
		ds.messages = msgs
		ds.headerAddr = allocator.AllocAligned(uint64(object.HeaderSize(w, msgs)), 8)
	}

	groups := postOrderGroups(wp.root)
	for _, g := range groups {
		msgs, err := g.buildLinkMessages()
		if err != nil {
			return fmt.Errorf("group %q: %w", g.path, err)
		}
		g.messages = msgs
		g.headerAddr = allocator.AllocAligned(
			uint64(object.HeaderSizeWithMinChunk(w, msgs, object.MinGroupChunkSize)), 8)
	}

	for _, g := range groups {
		if err := wp.fillLinkAddresses(g); err != nil {
			return err
		}
	}

	for _, p := range datasetPaths {
		ds := wp.datasets[p]
		if _, err := object.WriteHeader(w.At(int64(ds.headerAddr)), ds.messages); err != nil {
			return fmt.Errorf("dataset %q header: %w", p, err)
		}
	}
	for _, g := range groups {
		if _, err := object.WriteHeaderWithMinChunk(
			w.At(int64(g.headerAddr)), g.messages, object.MinGroupChunkSize); err != nil {
			return fmt.Errorf("group %q header: %w", g.path, err)
		}
	}
	return nil
}

// fillLinkAddresses points a group's hard link messages at their
// targets' reserved header addresses.
func (wp *writePlan) fillLinkAddresses(g *groupNode) error {
	for name, c := range g.children {
		link := g.links[name]
		switch c.kind {
		case entryGroup:
			link.ObjectAddress = c.group.headerAddr
		case entryDataset:
			link.ObjectAddress = c.dataset.headerAddr
		case entryHard:
			addr, err := wp.addrOf(c.hardTarget)
			if err != nil {
				return fmt.Errorf("hard link %q in %q: %w", name, g.path, err)
			}
			link.ObjectAddress = addr
		}
	}
	return nil
}
