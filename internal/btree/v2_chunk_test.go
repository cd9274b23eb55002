package btree

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fennelab/hdf5/internal/binary"
)

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// checksummed closes a tree block with the Jenkins checksum of its
// contents, the way the library writes them.
func checksummed(b []byte) []byte {
	return append(b, le32(binary.Lookup3(b))...)
}

func v2Header(recordType uint8, nodeSize uint32, recordSize uint16, depth uint16, rootAddr uint64, rootCount uint16, total uint64) []byte {
	b := []byte("BTHD")
	b = append(b, 0, recordType)
	b = append(b, le32(nodeSize)...)
	b = append(b, le16(recordSize)...)
	b = append(b, le16(depth)...)
	b = append(b, 100, 40) // split and merge percents
	b = append(b, le64(rootAddr)...)
	b = append(b, le16(rootCount)...)
	b = append(b, le64(total)...)
	return checksummed(b)
}

// unfilteredRecord encodes a type 10 record: address then scaled offsets.
func unfilteredRecord(addr uint64, scaled ...uint64) []byte {
	b := le64(addr)
	for _, s := range scaled {
		b = append(b, le64(s)...)
	}
	return b
}

// filteredRecord encodes a type 11 record with a 3 byte size field.
func filteredRecord(addr uint64, size uint32, mask uint32, scaled ...uint64) []byte {
	b := le64(addr)
	b = append(b, byte(size), byte(size>>8), byte(size>>16))
	b = append(b, le32(mask)...)
	for _, s := range scaled {
		b = append(b, le64(s)...)
	}
	return b
}

func v2Leaf(recordType uint8, records ...[]byte) []byte {
	b := []byte("BTLF")
	b = append(b, 0, recordType)
	for _, rec := range records {
		b = append(b, rec...)
	}
	return checksummed(b)
}

// v2Pointer encodes one child pointer: address, record count, and for
// nodes above level 1 the child subtree's total record count.
func v2Pointer(addr uint64, count uint8, cum ...uint8) []byte {
	b := append(le64(addr), count)
	for _, c := range cum {
		b = append(b, c)
	}
	return b
}

func v2Internal(recordType uint8, records [][]byte, pointers [][]byte) []byte {
	b := []byte("BTIN")
	b = append(b, 0, recordType)
	for _, rec := range records {
		b = append(b, rec...)
	}
	for _, ptr := range pointers {
		b = append(b, ptr...)
	}
	return checksummed(b)
}

// assemble lays blocks into one buffer at fixed addresses.
func assemble(blocks map[uint64][]byte) []byte {
	var end uint64
	for addr, b := range blocks {
		if addr+uint64(len(b)) > end {
			end = addr + uint64(len(b))
		}
	}
	data := make([]byte, end)
	for addr, b := range blocks {
		copy(data[addr:], b)
	}
	return data
}

func readerFor(data []byte) *binary.Reader {
	return binary.NewReader(bytes.NewReader(data), binary.DefaultConfig())
}

func TestReadChunkIndexV2Unfiltered(t *testing.T) {
	chunkDims := []uint32{10, 20}
	data := assemble(map[uint64][]byte{
		0: v2Header(10, 512, 24, 0, 0x100, 3, 3),
		0x100: v2Leaf(10,
			unfilteredRecord(0x1000, 0, 0),
			unfilteredRecord(0x2000, 0, 1),
			unfilteredRecord(0x3000, 1, 0),
		),
	})

	idx, err := ReadChunkIndexV2(readerFor(data), 0, chunkDims)
	if err != nil {
		t.Fatalf("ReadChunkIndexV2: %v", err)
	}
	if idx.NDims != 2 || len(idx.Entries) != 3 {
		t.Fatalf("got %d dims, %d entries, want 2, 3", idx.NDims, len(idx.Entries))
	}

	want := []ChunkEntry{
		{Offset: []uint64{0, 0}, Address: 0x1000},
		{Offset: []uint64{0, 20}, Address: 0x2000},
		{Offset: []uint64{10, 0}, Address: 0x3000},
	}
	for i, w := range want {
		got := idx.Entries[i]
		if got.Address != w.Address || got.Offset[0] != w.Offset[0] || got.Offset[1] != w.Offset[1] {
			t.Errorf("entry %d = %+v, want %+v", i, got, w)
		}
		// Unfiltered records carry no size; callers fill in the chunk size.
		if got.Size != 0 || got.FilterMask != 0 {
			t.Errorf("entry %d has size %d, mask %d, want zeros", i, got.Size, got.FilterMask)
		}
	}

	if found := idx.FindChunk([]uint64{5, 25}, chunkDims); found == nil || found.Address != 0x2000 {
		t.Errorf("FindChunk(5,25) = %+v, want chunk at 0x2000", found)
	}
}

func TestReadChunkIndexV2Filtered(t *testing.T) {
	// Record size 23 = 8 address + 3 size + 4 mask + 8 offset.
	chunkDims := []uint32{100}
	data := assemble(map[uint64][]byte{
		0: v2Header(11, 256, 23, 0, 0x100, 2, 2),
		0x100: v2Leaf(11,
			filteredRecord(0x2000, 511, 0, 0),
			filteredRecord(0x2800, 200, 1, 2),
		),
	})

	idx, err := ReadChunkIndexV2(readerFor(data), 0, chunkDims)
	if err != nil {
		t.Fatalf("ReadChunkIndexV2: %v", err)
	}
	if len(idx.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(idx.Entries))
	}

	first, second := idx.Entries[0], idx.Entries[1]
	if first.Address != 0x2000 || first.Size != 511 || first.FilterMask != 0 || first.Offset[0] != 0 {
		t.Errorf("first entry = %+v", first)
	}
	if second.Address != 0x2800 || second.Size != 200 || second.FilterMask != 1 || second.Offset[0] != 200 {
		t.Errorf("second entry = %+v", second)
	}
}

func TestReadChunkIndexV2TwoLevels(t *testing.T) {
	// Node size 64 with 16 byte records: leaves hold 3, so record
	// counts are 1 byte wide, and the root holds one separator record
	// that is itself a real chunk.
	chunkDims := []uint32{8}
	data := assemble(map[uint64][]byte{
		0: v2Header(10, 64, 16, 1, 0x100, 1, 5),
		0x100: v2Internal(10,
			[][]byte{unfilteredRecord(0x1200, 2)},
			[][]byte{v2Pointer(0x200, 2), v2Pointer(0x240, 2)},
		),
		0x200: v2Leaf(10,
			unfilteredRecord(0x1000, 0),
			unfilteredRecord(0x1100, 1),
		),
		0x240: v2Leaf(10,
			unfilteredRecord(0x1300, 3),
			unfilteredRecord(0x1400, 4),
		),
	})

	idx, err := ReadChunkIndexV2(readerFor(data), 0, chunkDims)
	if err != nil {
		t.Fatalf("ReadChunkIndexV2: %v", err)
	}
	if len(idx.Entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(idx.Entries))
	}

	byOffset := make(map[uint64]uint64, len(idx.Entries))
	for _, e := range idx.Entries {
		byOffset[e.Offset[0]] = e.Address
	}
	want := map[uint64]uint64{
		0: 0x1000, 8: 0x1100, 16: 0x1200, 24: 0x1300, 32: 0x1400,
	}
	for off, addr := range want {
		if byOffset[off] != addr {
			t.Errorf("chunk at offset %d has address 0x%x, want 0x%x", off, byOffset[off], addr)
		}
	}
}

func TestReadChunkIndexV2ThreeLevels(t *testing.T) {
	// With depth 2 the root's child pointers carry an extra cumulative
	// record count sized for a level 1 subtree.
	chunkDims := []uint32{8}
	data := assemble(map[uint64][]byte{
		0: v2Header(10, 64, 16, 2, 0x40, 1, 7),
		0x40: v2Internal(10,
			[][]byte{unfilteredRecord(0x1300, 3)},
			[][]byte{v2Pointer(0x80, 1, 3), v2Pointer(0xC0, 1, 3)},
		),
		0x80: v2Internal(10,
			[][]byte{unfilteredRecord(0x1100, 1)},
			[][]byte{v2Pointer(0x100, 1), v2Pointer(0x140, 1)},
		),
		0xC0: v2Internal(10,
			[][]byte{unfilteredRecord(0x1500, 5)},
			[][]byte{v2Pointer(0x180, 1), v2Pointer(0x1C0, 1)},
		),
		0x100: v2Leaf(10, unfilteredRecord(0x1000, 0)),
		0x140: v2Leaf(10, unfilteredRecord(0x1200, 2)),
		0x180: v2Leaf(10, unfilteredRecord(0x1400, 4)),
		0x1C0: v2Leaf(10, unfilteredRecord(0x1600, 6)),
	})

	idx, err := ReadChunkIndexV2(readerFor(data), 0, chunkDims)
	if err != nil {
		t.Fatalf("ReadChunkIndexV2: %v", err)
	}
	if len(idx.Entries) != 7 {
		t.Fatalf("got %d entries, want 7", len(idx.Entries))
	}
	byOffset := make(map[uint64]uint64, len(idx.Entries))
	for _, e := range idx.Entries {
		byOffset[e.Offset[0]] = e.Address
	}
	for i := uint64(0); i < 7; i++ {
		want := 0x1000 + i*0x100
		if byOffset[i*8] != want {
			t.Errorf("chunk at offset %d has address 0x%x, want 0x%x", i*8, byOffset[i*8], want)
		}
	}
}

func TestReadChunkIndexV2ChecksumMismatch(t *testing.T) {
	leaf := v2Leaf(10, unfilteredRecord(0x1000, 0, 0))
	leaf[8] ^= 0xFF // corrupt a record byte under the checksum
	data := assemble(map[uint64][]byte{
		0:     v2Header(10, 512, 24, 0, 0x100, 1, 1),
		0x100: leaf,
	})

	_, err := ReadChunkIndexV2(readerFor(data), 0, []uint32{10, 20})
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v, want checksum mismatch", err)
	}
}

func TestReadChunkIndexV2HeaderErrors(t *testing.T) {
	corrupt := v2Header(10, 512, 24, 0, 0x100, 1, 1)
	corrupt[len(corrupt)-1] ^= 0xFF

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"bad signature", []byte("XXXXxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"), "bad tree header signature"},
		{"bad version", append([]byte("BTHD\x01"), make([]byte, 40)...), "unsupported version 2 tree header version"},
		{"bad checksum", corrupt, "checksum mismatch"},
		{"unknown record type", v2Header(5, 512, 24, 0, 0x100, 1, 1), "unsupported version 2 tree record type"},
		{"record size wrong for rank", v2Header(10, 512, 20, 0, 0x100, 1, 1), "does not match rank"},
		{"filtered record size too small", v2Header(11, 512, 24, 0, 0x100, 1, 1), "does not match rank"},
		{"absurd depth", v2Header(10, 512, 24, 600, 0x100, 1, 1), "deeper than"},
		{"node too small for records", v2Header(10, 16, 24, 0, 0x100, 1, 1), "cannot hold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadChunkIndexV2(readerFor(tt.data), 0, []uint32{10, 20})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestReadChunkIndexV2Truncated(t *testing.T) {
	for _, n := range []int{0, 4, 6, 20} {
		full := v2Header(10, 512, 24, 0, 0x100, 1, 1)
		if _, err := ReadChunkIndexV2(readerFor(full[:n]), 0, []uint32{10, 20}); err == nil {
			t.Errorf("no error for %d byte header", n)
		}
	}
}

func TestReadChunkIndexV2Empty(t *testing.T) {
	undefined := uint64(0xFFFFFFFFFFFFFFFF)

	// Tree that was never allocated.
	idx, err := ReadChunkIndexV2(readerFor(nil), undefined, []uint32{10, 20})
	if err != nil || len(idx.Entries) != 0 {
		t.Fatalf("unallocated tree: %d entries, %v", len(idx.Entries), err)
	}

	// Header present but no records written yet.
	data := v2Header(10, 512, 24, 0, undefined, 0, 0)
	idx, err = ReadChunkIndexV2(readerFor(data), 0, []uint32{10, 20})
	if err != nil || len(idx.Entries) != 0 {
		t.Fatalf("empty tree: %d entries, %v", len(idx.Entries), err)
	}
}

func TestReadChunkIndexV2BadNode(t *testing.T) {
	t.Run("wrong signature", func(t *testing.T) {
		data := assemble(map[uint64][]byte{
			0:     v2Header(10, 512, 24, 0, 0x100, 1, 1),
			0x100: []byte("XXXXxxxxxxxxxxxxxxxxxxxxxxxxxxxx"),
		})
		_, err := ReadChunkIndexV2(readerFor(data), 0, []uint32{10, 20})
		if err == nil || !strings.Contains(err.Error(), "bad tree node signature") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("internal where leaf expected", func(t *testing.T) {
		data := assemble(map[uint64][]byte{
			0:     v2Header(10, 512, 24, 0, 0x100, 1, 1),
			0x100: v2Internal(10, nil, nil),
		})
		_, err := ReadChunkIndexV2(readerFor(data), 0, []uint32{10, 20})
		if err == nil || !strings.Contains(err.Error(), "bad tree node signature") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("record type mismatch", func(t *testing.T) {
		data := assemble(map[uint64][]byte{
			0:     v2Header(10, 512, 24, 0, 0x100, 1, 1),
			0x100: v2Leaf(11, unfilteredRecord(0x1000, 0, 0)),
		})
		_, err := ReadChunkIndexV2(readerFor(data), 0, []uint32{10, 20})
		if err == nil || !strings.Contains(err.Error(), "record type") {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestByteWidth(t *testing.T) {
	tests := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{1, 1},
		{0xFF, 1},
		{0x100, 2},
		{0xFFFF, 2},
		{0x10000, 3},
		{1 << 32, 5},
		{0xFFFFFFFFFFFFFFFF, 8},
	}
	for _, tt := range tests {
		if got := byteWidth(tt.v); got != tt.want {
			t.Errorf("byteWidth(%#x) = %d, want %d", tt.v, got, tt.want)
		}
	}
}
