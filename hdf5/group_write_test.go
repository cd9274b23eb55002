package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelab/hdf5/internal/object"
)

func TestCreateGroups(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.CreateGroup("/raw"))
		require.NoError(t, fw.CreateGroup("/raw/day1"))
		require.NoError(t, fw.CreateGroup("/processed"))
		require.NoError(t, fw.WriteDataset("/raw/day1/counts", []int64{1, 2, 3}, []int{3}))
	})

	f := openFile(t, path)

	members, err := f.Root().Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"processed", "raw"}, members)

	children, err := f.ListChildren("/raw/day1")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "counts", children[0].Name)
	assert.Equal(t, KindDataset, children[0].Kind)

	g, err := f.OpenGroup("/processed")
	require.NoError(t, err)
	assert.Equal(t, "processed", g.Name())
	n, err := g.NumObjects()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateGroupRootIsNoOp(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.CreateGroup("/"))
	})

	f := openFile(t, path)
	children, err := f.ListChildren("/")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestSoftLinks(t *testing.T) {
	values := []float64{1.5, 2.5}
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/data/raw", values, []int{2}))
		require.NoError(t, fw.CreateSoftLink("/data/raw", "/latest"))
		require.NoError(t, fw.CreateSoftLink("/data/missing", "/broken"))
	})

	f := openFile(t, path)

	got, err := f.ReadDataset("/latest")
	require.NoError(t, err)
	assert.Equal(t, values, got.Values)

	children, err := f.ListChildren("/")
	require.NoError(t, err)
	require.Len(t, children, 3)

	byName := make(map[string]ChildInfo, len(children))
	for _, c := range children {
		byName[c.Name] = c
	}
	assert.Equal(t, LinkSoft, byName["latest"].Link)
	assert.Equal(t, KindDataset, byName["latest"].Kind)
	assert.Equal(t, LinkHard, byName["data"].Link)
	assert.Equal(t, KindGroup, byName["data"].Kind)

	// The dangling link is listed but cannot be resolved.
	assert.Equal(t, LinkSoft, byName["broken"].Link)
	assert.Equal(t, KindUnknown, byName["broken"].Kind)

	_, err = f.OpenDataset("/broken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSoftLinkToGroup(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/exp/run1/counts", []int64{4, 5}, []int{2}))
		require.NoError(t, fw.CreateSoftLink("/exp/run1", "/current"))
	})

	f := openFile(t, path)

	// Resolving continues through the link mid-path.
	ds, err := f.OpenDataset("/current/counts")
	require.NoError(t, err)
	vals, err := ds.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, vals)
}

func TestSoftLinkCycle(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.CreateSoftLink("/pong", "/ping"))
		require.NoError(t, fw.CreateSoftLink("/ping", "/pong"))
	})

	f := openFile(t, path)

	_, err := f.OpenDataset("/ping")
	require.ErrorIs(t, err, ErrCircularLink)

	var cle *CircularLinkError
	require.ErrorAs(t, err, &cle)
	require.GreaterOrEqual(t, len(cle.Chain), 2)
	last := cle.Chain[len(cle.Chain)-1]
	assert.Contains(t, cle.Chain[:len(cle.Chain)-1], last,
		"final chain entry should repeat an earlier one")
}

func TestHardLinkToDataset(t *testing.T) {
	values := []int64{5, 6, 7}
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/data", values, []int{3}))
		require.NoError(t, fw.CreateHardLink("/data", "/alias"))
	})

	f := openFile(t, path)

	direct, err := f.ReadDataset("/data")
	require.NoError(t, err)
	linked, err := f.ReadDataset("/alias")
	require.NoError(t, err)
	assert.Equal(t, direct.Values, linked.Values)

	children, err := f.ListChildren("/")
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.Equal(t, LinkHard, c.Link, c.Name)
		assert.Equal(t, KindDataset, c.Kind, c.Name)
	}

	// Both names resolve to one object header with two references.
	resData, err := f.root.findChild("data", nil)
	require.NoError(t, err)
	resAlias, err := f.root.findChild("alias", nil)
	require.NoError(t, err)
	assert.Equal(t, resData.address, resAlias.address)

	hdr, err := object.Read(f.reader, resData.address)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), hdr.RefCount)
}

func TestHardLinkToGroup(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/exp/trial1", []int64{1}, []int{1}))
		require.NoError(t, fw.CreateHardLink("/exp", "/current"))
	})

	f := openFile(t, path)

	g, err := f.OpenGroup("/current")
	require.NoError(t, err)
	members, err := g.Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"trial1"}, members)

	ds, err := f.OpenDataset("/current/trial1")
	require.NoError(t, err)
	vals, err := ds.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, vals)
}

func TestHardLinkValidation(t *testing.T) {
	newWriter := func() *FileWriter {
		fw, err := Create(filepath.Join(t.TempDir(), "links.h5"))
		require.NoError(t, err)
		return fw
	}

	fw := newWriter()
	require.NoError(t, fw.CreateHardLink("/missing", "/a"))
	assert.ErrorContains(t, fw.Close(), "nothing planned at target")

	fw = newWriter()
	require.NoError(t, fw.CreateHardLink("/", "/a"))
	assert.ErrorContains(t, fw.Close(), "root group")

	fw = newWriter()
	require.NoError(t, fw.CreateSoftLink("/x", "/s"))
	require.NoError(t, fw.CreateHardLink("/s", "/a"))
	assert.ErrorContains(t, fw.Close(), "is a soft link")

	fw = newWriter()
	require.NoError(t, fw.WriteDataset("/d", []int64{1}, []int{1}))
	require.NoError(t, fw.CreateHardLink("/d", "/h1"))
	require.NoError(t, fw.CreateHardLink("/h1", "/h2"))
	assert.ErrorContains(t, fw.Close(), "another hard link")
}

// TestSymbolNodeNameOffsets scans the raw file for symbol table nodes and
// checks that no live entry carries heap offset zero, which would make its
// name the empty string.
func TestSymbolNodeNameOffsets(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/alpha", []int64{1}, []int{1}))
		require.NoError(t, fw.WriteDataset("/beta", []int64{2}, []int{1}))
		require.NoError(t, fw.CreateGroup("/gamma"))
		require.NoError(t, fw.CreateSoftLink("/alpha", "/delta"))
	})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	const entrySize = 40 // 8-byte offsets: name offset, header address, cache type, reserved, scratch
	found := 0
	for i := 0; i+8 <= len(raw); i++ {
		if string(raw[i:i+4]) != "SNOD" {
			continue
		}
		found++
		count := int(binary.LittleEndian.Uint16(raw[i+6 : i+8]))
		require.Greater(t, count, 0, "node at %d", i)
		for e := 0; e < count; e++ {
			off := i + 8 + e*entrySize
			require.LessOrEqual(t, off+entrySize, len(raw))
			nameOff := binary.LittleEndian.Uint64(raw[off : off+8])
			assert.NotZero(t, nameOff, "entry %d of node at %d", e, i)
		}
	}
	require.Greater(t, found, 0, "no symbol nodes written")
}

func TestGroupFanoutAtCapacity(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		for i := 0; i < 256; i++ {
			require.NoError(t, fw.CreateGroup(fmt.Sprintf("/wide/g%03d", i)))
		}
	})

	f := openFile(t, path)

	g, err := f.OpenGroup("/wide")
	require.NoError(t, err)
	members, err := g.Members()
	require.NoError(t, err)
	require.Len(t, members, 256)
	assert.Equal(t, "g000", members[0])
	assert.Equal(t, "g255", members[255])
}

func TestGroupFanoutLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanout.h5")
	fw, err := Create(path)
	require.NoError(t, err)
	for i := 0; i < 257; i++ {
		require.NoError(t, fw.CreateGroup(fmt.Sprintf("/wide/g%03d", i)))
	}

	err = fw.Close()
	assert.ErrorIs(t, err, ErrUnsupportedFeature)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
