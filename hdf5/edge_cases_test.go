package hdf5

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesWithSpecialCharacters(t *testing.T) {
	names := []string{
		"with space",
		"dots.in.name",
		"trailing.",
		"über",
		"数据集",
	}

	path := writeFile(t, func(fw *FileWriter) {
		for i, name := range names {
			require.NoError(t, fw.WriteDataset("/names/"+name, []int64{int64(i)}, []int{1},
				WithAttribute(name, int64(i))))
		}
	})

	f := openFile(t, path)

	grp, err := f.OpenGroup("/names")
	require.NoError(t, err)
	members, err := grp.Members()
	require.NoError(t, err)
	assert.ElementsMatch(t, names, members)

	for i, name := range names {
		ds, err := f.OpenDataset("/names/" + name)
		require.NoError(t, err, "dataset %q", name)
		assert.Equal(t, name, ds.Name())

		vals, err := ds.ReadInt64()
		require.NoError(t, err)
		assert.Equal(t, []int64{int64(i)}, vals)

		attr, err := f.GetAttr("/names/" + name + "@" + name)
		require.NoError(t, err, "attribute %q", name)
		got, err := attr.ReadScalarInt64()
		require.NoError(t, err)
		assert.Equal(t, int64(i), got)
	}
}

func TestLongNames(t *testing.T) {
	long := strings.Repeat("n", 200)

	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/"+long+"/"+long, []float64{2.5}, []int{1},
			WithAttribute(long, "long")))
	})

	f := openFile(t, path)

	ds, err := f.OpenDataset("/" + long + "/" + long)
	require.NoError(t, err)
	assert.Equal(t, long, ds.Name())

	val, err := ds.Attr(long).ReadScalarString()
	require.NoError(t, err)
	assert.Equal(t, "long", val)
}

func TestDeepNesting(t *testing.T) {
	const depth = 24
	parts := make([]string, depth)
	for i := range parts {
		parts[i] = fmt.Sprintf("level%02d", i)
	}
	dir := "/" + strings.Join(parts, "/")

	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset(dir+"/leaf", []int64{7}, []int{1}))
	})

	f := openFile(t, path)

	ds, err := f.OpenDataset(dir + "/leaf")
	require.NoError(t, err)
	vals, err := ds.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, vals)

	// Every intermediate group exists and has exactly one child.
	for i := 1; i <= depth; i++ {
		g, err := f.OpenGroup("/" + strings.Join(parts[:i], "/"))
		require.NoError(t, err, "level %d", i)
		n, err := g.NumObjects()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestInt64Extremes(t *testing.T) {
	values := []int64{math.MinInt64, -1, 0, 1, math.MaxInt64}

	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/extremes", values, []int{5}))
		require.NoError(t, fw.WriteDataset("/positive", []int64{0, math.MaxInt64}, []int{2}))
	})

	f := openFile(t, path)

	ds, err := f.OpenDataset("/extremes")
	require.NoError(t, err)
	got, err := ds.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, values, got)

	// Negative values block the unsigned view, MinInt64 included.
	_, err = ds.ReadUint64()
	require.Error(t, err)

	pos, err := f.OpenDataset("/positive")
	require.NoError(t, err)
	u, err := pos.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, math.MaxInt64}, u)
}

func TestFloat64Specials(t *testing.T) {
	negZero := math.Copysign(0, -1)
	values := []float64{
		math.NaN(),
		math.Inf(1),
		math.Inf(-1),
		negZero,
		math.MaxFloat64,
		math.SmallestNonzeroFloat64,
		1e-300,
	}

	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/specials", values, []int{7}))
	})

	f := openFile(t, path)
	ds, err := f.OpenDataset("/specials")
	require.NoError(t, err)
	got, err := ds.ReadFloat64()
	require.NoError(t, err)
	require.Len(t, got, 7)

	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsInf(got[1], 1))
	assert.True(t, math.IsInf(got[2], -1))
	assert.Zero(t, got[3])
	assert.True(t, math.Signbit(got[3]), "negative zero must keep its sign bit")
	assert.Equal(t, math.MaxFloat64, got[4])
	assert.Equal(t, math.SmallestNonzeroFloat64, got[5])
	assert.Equal(t, 1e-300, got[6])
}

func TestDegenerateShapes(t *testing.T) {
	values := make([]int64, 12)
	for i := range values {
		values[i] = int64(i)
	}

	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/unit", []int64{42}, []int{1, 1, 1}))
		require.NoError(t, fw.WriteDataset("/onechunk", values, []int{3, 4}, WithChunks(3, 4)))
		require.NoError(t, fw.WriteDataset("/tinychunks", values, []int{3, 4}, WithChunks(1, 1)))
	})

	f := openFile(t, path)

	unit, err := f.OpenDataset("/unit")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 1, 1}, unit.Shape())
	assert.Equal(t, 3, unit.Rank())
	assert.Equal(t, uint64(1), unit.NumElements())
	assert.False(t, unit.IsScalar())

	var one []int64
	require.NoError(t, unit.ReadSlice([]uint64{0, 0, 0}, []uint64{1, 1, 1}, &one))
	assert.Equal(t, []int64{42}, one)

	// A chunk covering the whole extent and one element per chunk are
	// both legal geometries.
	for _, name := range []string{"/onechunk", "/tinychunks"} {
		ds, err := f.OpenDataset(name)
		require.NoError(t, err)
		got, err := ds.ReadInt64()
		require.NoError(t, err, name)
		assert.Equal(t, values, got, name)
	}

	tiny, err := f.OpenDataset("/tinychunks")
	require.NoError(t, err)
	var win []int64
	require.NoError(t, tiny.ReadSlice([]uint64{1, 1}, []uint64{2, 2}, &win))
	assert.Equal(t, []int64{5, 6, 9, 10}, win)
}

func TestChunkBoundarySlices(t *testing.T) {
	values := make([]int64, 24)
	for i := range values {
		values[i] = int64(i)
	}

	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/grid", values, []int{4, 6}, WithChunks(2, 3)))
	})

	f := openFile(t, path)
	ds, err := f.OpenDataset("/grid")
	require.NoError(t, err)

	var all []int64
	require.NoError(t, ds.ReadSlice([]uint64{0, 0}, []uint64{4, 6}, &all))
	assert.Equal(t, values, all)

	// One row crossing two chunks.
	var row []int64
	require.NoError(t, ds.ReadSlice([]uint64{1, 0}, []uint64{1, 6}, &row))
	assert.Equal(t, []int64{6, 7, 8, 9, 10, 11}, row)

	// One column crossing two chunk rows.
	var col []int64
	require.NoError(t, ds.ReadSlice([]uint64{0, 4}, []uint64{4, 1}, &col))
	assert.Equal(t, []int64{4, 10, 16, 22}, col)

	// Interior window touching all four surrounding chunks.
	var win []int64
	require.NoError(t, ds.ReadSlice([]uint64{1, 2}, []uint64{2, 3}, &win))
	assert.Equal(t, []int64{8, 9, 10, 14, 15, 16}, win)

	// A window aligned exactly on chunk boundaries.
	var aligned []int64
	require.NoError(t, ds.ReadSlice([]uint64{2, 3}, []uint64{2, 3}, &aligned))
	assert.Equal(t, []int64{15, 16, 17, 21, 22, 23}, aligned)
}

func TestManyAttributes(t *testing.T) {
	const n = 40

	path := writeFile(t, func(fw *FileWriter) {
		opts := make([]DatasetOption, 0, n)
		for i := 0; i < n; i++ {
			opts = append(opts, WithAttribute(fmt.Sprintf("a%02d", i), int64(i)))
		}
		require.NoError(t, fw.WriteDataset("/d", []int64{1}, []int{1}, opts...))
	})

	f := openFile(t, path)
	ds, err := f.OpenDataset("/d")
	require.NoError(t, err)

	names := ds.Attrs()
	require.Len(t, names, n)
	assert.True(t, sort.StringsAreSorted(names), "attribute names out of order: %v", names)

	for _, i := range []int{0, 17, n - 1} {
		name := fmt.Sprintf("a%02d", i)
		require.True(t, ds.HasAttr(name))
		got, err := ds.Attr(name).ReadScalarInt64()
		require.NoError(t, err)
		assert.Equal(t, int64(i), got)
	}
}

func TestMixedCaseNameOrder(t *testing.T) {
	path := writeFile(t, func(fw *FileWriter) {
		for _, name := range []string{"zebra", "Alpha", "apple", "Zulu"} {
			require.NoError(t, fw.CreateGroup("/" + name))
		}
	})

	f := openFile(t, path)

	// Names sort bytewise, so all uppercase precedes all lowercase.
	members, err := f.Root().Members()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Zulu", "apple", "zebra"}, members)

	children, err := f.ListChildren("/")
	require.NoError(t, err)
	got := make([]string, len(children))
	for i, c := range children {
		got[i] = c.Name
	}
	assert.Equal(t, members, got)
}

func TestSliceOfOneElement(t *testing.T) {
	values := []float64{1.5, 2.5, 3.5, 4.5}
	path := writeFile(t, func(fw *FileWriter) {
		require.NoError(t, fw.WriteDataset("/v", values, []int{4}, WithChunks(3)))
	})

	f := openFile(t, path)
	ds, err := f.OpenDataset("/v")
	require.NoError(t, err)

	// First, last, and a partial-chunk element.
	for i, want := range values {
		var got []float64
		require.NoError(t, ds.ReadSlice([]uint64{uint64(i)}, []uint64{1}, &got))
		assert.Equal(t, []float64{want}, got, "element %d", i)
	}
}
