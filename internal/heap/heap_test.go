package heap

import (
	"bytes"
	"testing"

	"github.com/fennelab/hdf5/internal/binary"
)

// fileBuf is a growable io.WriterAt for exercising the writers.
type fileBuf struct {
	data []byte
}

func (f *fileBuf) WriteAt(p []byte, off int64) (int, error) {
	if need := int(off) + len(p); need > len(f.data) {
		grown := make([]byte, need)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:], p)
	return len(p), nil
}

func (f *fileBuf) reader() *binary.Reader {
	return binary.NewReader(bytes.NewReader(f.data), binary.DefaultConfig())
}

func TestLocalHeapRoundTrip(t *testing.T) {
	hw := NewLocalHeapWriter()
	names := []string{"alpha", "beta", "a_much_longer_entry_name"}
	offsets := make(map[string]uint64, len(names))
	for _, name := range names {
		offsets[name] = hw.Add(name)
	}

	var f fileBuf
	w := binary.NewWriter(&f, binary.DefaultConfig())
	addr, err := hw.Write(w, func(size int64) uint64 {
		// Leave a gap before the heap so offset arithmetic is exercised.
		base := uint64(len(f.data)) + 64
		f.WriteAt(nil, int64(base)+size)
		return base
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	h, err := ReadLocalHeap(f.reader(), addr)
	if err != nil {
		t.Fatalf("ReadLocalHeap: %v", err)
	}
	for name, off := range offsets {
		if got := h.GetString(off); got != name {
			t.Errorf("GetString(%d) = %q, want %q", off, got, name)
		}
	}
	if h.DataSize != hw.DataSize() {
		t.Errorf("DataSize = %d, want %d", h.DataSize, hw.DataSize())
	}
}

func TestLocalHeapWriterOffsets(t *testing.T) {
	hw := NewLocalHeapWriter()

	// Offset 0 stays reserved, so the first name lands at 8.
	first := hw.Add("x")
	if first != 8 {
		t.Errorf("first offset = %d, want 8", first)
	}
	if again := hw.Add("x"); again != first {
		t.Errorf("re-adding returned %d, want %d", again, first)
	}
	second := hw.Add("y")
	if second%8 != 0 || second <= first {
		t.Errorf("second offset = %d, want 8-aligned offset past %d", second, first)
	}

	if off, ok := hw.Offset("y"); !ok || off != second {
		t.Errorf("Offset(\"y\") = %d, %v", off, ok)
	}
	if _, ok := hw.Offset("missing"); ok {
		t.Error("Offset reported a name that was never added")
	}
}

func TestLocalHeapGetString(t *testing.T) {
	h := &LocalHeap{
		DataSize: 20,
		data:     []byte("hello\x00world\x00test\x00\x00\x00"),
	}

	tests := []struct {
		name   string
		offset uint64
		want   string
	}{
		{"first string", 0, "hello"},
		{"second string", 6, "world"},
		{"third string", 12, "test"},
		{"empty at end", 17, ""},
		{"past the end", 100, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.GetString(tt.offset); got != tt.want {
				t.Errorf("GetString(%d) = %q, want %q", tt.offset, got, tt.want)
			}
		})
	}

	if got := (&LocalHeap{data: []byte("noterm")}).GetString(0); got != "noterm" {
		t.Errorf("unterminated string = %q, want %q", got, "noterm")
	}
	if got := (&LocalHeap{}).GetString(0); got != "" {
		t.Errorf("empty heap = %q, want empty", got)
	}
}

func TestReadLocalHeapRejectsBadHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"wrong signature", []byte("XXXX"), "invalid local heap signature"},
		{"wrong version", []byte("HEAP\x05"), "unsupported local heap version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := binary.NewReader(bytes.NewReader(tt.raw), binary.DefaultConfig())
			_, err := ReadLocalHeap(r, 0)
			if err == nil {
				t.Fatal("expected error")
			}
			if !bytes.Contains([]byte(err.Error()), []byte(tt.want)) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestGlobalHeapRoundTrip(t *testing.T) {
	var f fileBuf
	f.WriteAt(make([]byte, 96), 0) // collections never live at address 0
	w := binary.NewWriter(&f, binary.DefaultConfig())
	gw := NewGlobalHeapWriter(w, func(size int64) uint64 {
		base := uint64(len(f.data))
		f.WriteAt(nil, int64(base)+size)
		return base
	})

	s1 := gw.AddString("hello")
	o2 := gw.AddObject([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	s3 := gw.AddString("exactly8")
	if s1 != 1 || o2 != 2 || s3 != 3 {
		t.Fatalf("indices = %d, %d, %d, want 1, 2, 3", s1, o2, s3)
	}

	addr, ids, err := gw.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	for idx := uint16(1); idx <= 3; idx++ {
		want := GlobalHeapID{CollectionAddress: addr, ObjectIndex: uint32(idx)}
		if ids[idx] != want {
			t.Errorf("ids[%d] = %+v, want %+v", idx, ids[idx], want)
		}
	}

	h, err := ReadGlobalHeap(f.reader(), addr)
	if err != nil {
		t.Fatalf("ReadGlobalHeap: %v", err)
	}
	// Small collections are padded up to the format's 4096-byte floor.
	if h.CollectionSize != minCollectionSize {
		t.Errorf("CollectionSize = %d, want %d", h.CollectionSize, minCollectionSize)
	}
	if got, err := h.GetString(1); err != nil || got != "hello" {
		t.Errorf("GetString(1) = %q, %v", got, err)
	}
	if got, err := h.GetObject(2); err != nil || !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("GetObject(2) = %v, %v", got, err)
	}
	if got, err := h.GetString(3); err != nil || got != "exactly8" {
		t.Errorf("GetString(3) = %q, %v", got, err)
	}
	// The free-space object is metadata, not a readable object.
	if _, err := h.GetObject(0); err == nil {
		t.Error("GetObject(0) should fail")
	}
}

func TestGlobalHeapWriterEmpty(t *testing.T) {
	var f fileBuf
	gw := NewGlobalHeapWriter(binary.NewWriter(&f, binary.DefaultConfig()), func(int64) uint64 {
		t.Fatal("empty heap should not allocate")
		return 0
	})
	addr, ids, err := gw.Write()
	if err != nil || addr != 0 || ids != nil {
		t.Errorf("Write() = %d, %v, %v, want 0, nil, nil", addr, ids, err)
	}
}

func TestGlobalHeapObjectSizes(t *testing.T) {
	// The stored object size must be the exact payload length, with the
	// padding excluded, or readers hand back trailing zeros.
	var f fileBuf
	w := binary.NewWriter(&f, binary.DefaultConfig())
	gw := NewGlobalHeapWriter(w, func(size int64) uint64 {
		f.WriteAt(nil, 32+size)
		return 32
	})
	gw.AddString("abc")
	if _, _, err := gw.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	h, err := ReadGlobalHeap(f.reader(), 32)
	if err != nil {
		t.Fatalf("ReadGlobalHeap: %v", err)
	}
	data, err := h.GetObject(1)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("object = %q, want %q with no padding bytes", data, "abc")
	}
}

func TestGlobalHeapGetObject(t *testing.T) {
	h := &GlobalHeap{
		objects: map[uint16][]byte{
			1: []byte("first object"),
			2: {0x01, 0x02, 0x03, 0x04},
			3: {},
		},
	}

	if data, err := h.GetObject(1); err != nil || len(data) != 12 {
		t.Errorf("GetObject(1) = %v, %v", data, err)
	}
	if data, err := h.GetObject(3); err != nil || len(data) != 0 {
		t.Errorf("GetObject(3) = %v, %v, want empty object", data, err)
	}
	if _, err := h.GetObject(99); err == nil {
		t.Error("expected error for missing index")
	}

	var nilHeap *GlobalHeap
	if _, err := nilHeap.GetObject(1); err == nil {
		t.Error("expected error for nil heap")
	}
}

func TestGlobalHeapGetObjectReturnsCopy(t *testing.T) {
	original := []byte{1, 2, 3, 4}
	h := &GlobalHeap{objects: map[uint16][]byte{1: original}}

	data, err := h.GetObject(1)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	data[0] = 99
	if original[0] != 1 {
		t.Error("GetObject should return a copy, not the stored slice")
	}
}

func TestGlobalHeapGetString(t *testing.T) {
	h := &GlobalHeap{
		objects: map[uint16][]byte{
			1: []byte("hello\x00"),
			2: []byte("world"),
			3: {0x00},
			4: []byte("a\x00extra"),
		},
	}

	tests := []struct {
		name  string
		index uint16
		want  string
	}{
		{"with terminator", 1, "hello"},
		{"without terminator", 2, "world"},
		{"empty string", 3, ""},
		{"null in middle", 4, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.GetString(tt.index)
			if err != nil {
				t.Fatalf("GetString: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := h.GetString(99); err == nil {
		t.Error("expected error for missing index")
	}
}

func TestParseGlobalHeapID(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		offsetSize int
		wantAddr   uint64
		wantIndex  uint32
		wantErr    bool
	}{
		{
			name:       "8-byte offset",
			data:       []byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
			offsetSize: 8,
			wantAddr:   0x1000,
			wantIndex:  1,
		},
		{
			name:       "4-byte offset",
			data:       []byte{0x00, 0x20, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00},
			offsetSize: 4,
			wantAddr:   0x2000,
			wantIndex:  2,
		},
		{
			name:       "2-byte offset",
			data:       []byte{0x00, 0x30, 0x03, 0x00, 0x00, 0x00},
			offsetSize: 2,
			wantAddr:   0x3000,
			wantIndex:  3,
		},
		{
			name:       "too short",
			data:       []byte{0x00, 0x00},
			offsetSize: 8,
			wantErr:    true,
		},
		{
			name:       "unsupported offset size",
			data:       []byte{0, 0, 0, 0, 0, 0, 0},
			offsetSize: 3,
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseGlobalHeapID(tt.data, tt.offsetSize)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGlobalHeapID: %v", err)
			}
			if id.CollectionAddress != tt.wantAddr || id.ObjectIndex != tt.wantIndex {
				t.Errorf("got {0x%x, %d}, want {0x%x, %d}",
					id.CollectionAddress, id.ObjectIndex, tt.wantAddr, tt.wantIndex)
			}
		})
	}
}

func TestGlobalHeapIDRoundTrip(t *testing.T) {
	for _, offsetSize := range []int{2, 4, 8} {
		var f fileBuf
		w := binary.NewWriter(&f, binary.DefaultConfig()).WithSizes(offsetSize, 8)
		id := GlobalHeapID{CollectionAddress: 0x1234, ObjectIndex: 7}
		if err := WriteGlobalHeapID(w, id); err != nil {
			t.Fatalf("WriteGlobalHeapID: %v", err)
		}
		if len(f.data) != GlobalHeapIDSize(offsetSize) {
			t.Errorf("wrote %d bytes, want %d", len(f.data), GlobalHeapIDSize(offsetSize))
		}
		got, err := ParseGlobalHeapID(f.data, offsetSize)
		if err != nil {
			t.Fatalf("ParseGlobalHeapID: %v", err)
		}
		if got != id {
			t.Errorf("offset size %d: got %+v, want %+v", offsetSize, got, id)
		}
	}
}

func TestReadGlobalHeapRejects(t *testing.T) {
	empty := binary.NewReader(bytes.NewReader(nil), binary.DefaultConfig())
	if _, err := ReadGlobalHeap(empty, 0); err == nil {
		t.Error("expected error for address 0")
	}
	if _, err := ReadGlobalHeap(empty, 0xFFFFFFFFFFFFFFFF); err == nil {
		t.Error("expected error for undefined address")
	}

	bad := binary.NewReader(bytes.NewReader([]byte("XXXXxxxx")), binary.DefaultConfig())
	if _, err := ReadGlobalHeap(bad, 1); err == nil {
		t.Error("expected error for bad signature")
	}

	v2 := binary.NewReader(bytes.NewReader([]byte("\x00GCOL\x02\x00\x00\x00")), binary.DefaultConfig())
	if _, err := ReadGlobalHeap(v2, 1); err == nil {
		t.Error("expected error for unsupported version")
	}
}
