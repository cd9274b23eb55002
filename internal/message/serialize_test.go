package message

import (
	"bytes"
	"testing"

	"github.com/fennelab/hdf5/internal/binary"
)

type memWriter struct {
	data []byte
}

func (m *memWriter) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	copy(m.data[off:], p)
	return len(p), nil
}

// serialized encodes one message and checks that SerializedSize
// matches the bytes actually written. Object header layout depends on
// the two agreeing exactly.
func serialized(t *testing.T, msg Serializable) []byte {
	t.Helper()
	var mem memWriter
	w := binary.NewWriter(&mem, binary.DefaultConfig())
	if err := msg.Serialize(w); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if want := msg.SerializedSize(w); len(mem.data) != want {
		t.Fatalf("SerializedSize = %d, wrote %d bytes", want, len(mem.data))
	}
	return mem.data
}

func TestDataspaceRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Dataspace
	}{
		{"scalar", NewScalarDataspace()},
		{"null", NewNullDataspace()},
		{"1d", NewDataspace([]uint64{10}, nil)},
		{"3d", NewDataspace([]uint64{2, 3, 4}, nil)},
		{"resizable", NewDataspace([]uint64{10}, []uint64{^uint64(0)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseDataspace(serialized(t, tt.in), testReader())
			if err != nil {
				t.Fatalf("parseDataspace: %v", err)
			}
			if out.SpaceType != tt.in.SpaceType {
				t.Errorf("SpaceType = %d, want %d", out.SpaceType, tt.in.SpaceType)
			}
			if out.Rank != tt.in.Rank {
				t.Errorf("Rank = %d, want %d", out.Rank, tt.in.Rank)
			}
			for i, d := range tt.in.Dimensions {
				if out.Dimensions[i] != d {
					t.Errorf("Dimensions[%d] = %d, want %d", i, out.Dimensions[i], d)
				}
			}
			for i, d := range tt.in.MaxDims {
				if out.MaxDims[i] != d {
					t.Errorf("MaxDims[%d] = %d, want %d", i, out.MaxDims[i], d)
				}
			}
			if out.NumElements() != tt.in.NumElements() {
				t.Errorf("NumElements = %d, want %d", out.NumElements(), tt.in.NumElements())
			}
		})
	}
}

func TestDatatypeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Datatype
	}{
		{"int8", NewFixedPointDatatype(1, true, OrderLE)},
		{"uint32", NewFixedPointDatatype(4, false, OrderLE)},
		{"int64 big-endian", NewFixedPointDatatype(8, true, OrderBE)},
		{"float32", NewFloatDatatype(4, OrderLE)},
		{"float64", NewFloatDatatype(8, OrderLE)},
		{"fixed string", NewStringDatatype(24, PadNullTerm, CharsetASCII)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseDatatype(serialized(t, tt.in), testReader())
			if err != nil {
				t.Fatalf("parseDatatype: %v", err)
			}
			if out.Class != tt.in.Class {
				t.Errorf("Class = %d, want %d", out.Class, tt.in.Class)
			}
			if out.Size != tt.in.Size {
				t.Errorf("Size = %d, want %d", out.Size, tt.in.Size)
			}
			if out.ByteOrder != tt.in.ByteOrder {
				t.Errorf("ByteOrder = %d, want %d", out.ByteOrder, tt.in.ByteOrder)
			}
			if out.Signed != tt.in.Signed {
				t.Errorf("Signed = %v, want %v", out.Signed, tt.in.Signed)
			}
			if !bytes.Equal(out.Properties, tt.in.Properties) {
				t.Errorf("Properties = %v, want %v", out.Properties, tt.in.Properties)
			}
		})
	}
}

func TestVarLenStringRoundTrip(t *testing.T) {
	in := NewVarLenStringDatatype(CharsetUTF8)
	out, err := parseDatatype(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseDatatype: %v", err)
	}
	if !out.IsVarLenString || !out.IsString() {
		t.Error("vlen string lost through round trip")
	}
	if out.CharSet != CharsetUTF8 {
		t.Errorf("CharSet = %d", out.CharSet)
	}
	if out.Size != 16 {
		t.Errorf("Size = %d", out.Size)
	}
	if out.VarLenType == nil || out.VarLenType.Class != ClassString {
		t.Errorf("VarLenType = %+v", out.VarLenType)
	}
}

func TestCompoundRoundTrip(t *testing.T) {
	in := NewCompoundDatatype(16, []CompoundMember{
		{Name: "x", ByteOffset: 0, Type: NewFixedPointDatatype(4, true, OrderLE)},
		{Name: "y", ByteOffset: 8, Type: NewFloatDatatype(8, OrderLE)},
	})

	out, err := parseDatatype(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseDatatype: %v", err)
	}
	if len(out.Members) != 2 {
		t.Fatalf("got %d members", len(out.Members))
	}
	for i, want := range in.Members {
		got := out.Members[i]
		if got.Name != want.Name || got.ByteOffset != want.ByteOffset {
			t.Errorf("member %d = %q at %d", i, got.Name, got.ByteOffset)
		}
		if got.Type.Class != want.Type.Class || got.Type.Size != want.Type.Size {
			t.Errorf("member %d type class %d size %d", i, got.Type.Class, got.Type.Size)
		}
	}
}

func TestArrayRoundTrip(t *testing.T) {
	in := NewArrayDatatype([]uint32{3, 4}, NewFixedPointDatatype(2, true, OrderLE))
	if in.Size != 24 {
		t.Fatalf("constructed Size = %d, want 24", in.Size)
	}

	out, err := parseDatatype(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseDatatype: %v", err)
	}
	if out.Class != ClassArray {
		t.Fatalf("Class = %d", out.Class)
	}
	if len(out.ArrayDims) != 2 || out.ArrayDims[0] != 3 || out.ArrayDims[1] != 4 {
		t.Errorf("ArrayDims = %v", out.ArrayDims)
	}
	if out.BaseType == nil || out.BaseType.Size != 2 {
		t.Errorf("BaseType = %+v", out.BaseType)
	}
}

func TestAttributeRoundTrip(t *testing.T) {
	value := buf{}.u32(42)
	in := NewAttribute("answer", NewFixedPointDatatype(4, true, OrderLE),
		NewScalarDataspace(), value)

	out, err := parseAttribute(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseAttribute: %v", err)
	}
	if out.Name != "answer" {
		t.Errorf("Name = %q", out.Name)
	}
	if out.Datatype == nil || out.Datatype.Class != ClassFixedPoint {
		t.Errorf("Datatype = %+v", out.Datatype)
	}
	if out.Dataspace == nil || !out.Dataspace.IsScalar() {
		t.Errorf("Dataspace = %+v", out.Dataspace)
	}
	if !bytes.Equal(out.Data, value) {
		t.Errorf("Data = %v", out.Data)
	}
}

func TestAttributeRoundTripVector(t *testing.T) {
	value := buf{}.u64(1).u64(2).u64(3)
	in := NewAttribute("vec", NewFixedPointDatatype(8, true, OrderLE),
		NewDataspace([]uint64{3}, nil), value)

	out, err := parseAttribute(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseAttribute: %v", err)
	}
	if out.Dataspace.NumElements() != 3 {
		t.Errorf("NumElements = %d", out.Dataspace.NumElements())
	}
	if !bytes.Equal(out.Data, value) {
		t.Errorf("Data = %v", out.Data)
	}
}

func TestLinkRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Link
	}{
		{"hard", NewHardLink("dset", 0x2a8)},
		{"soft", NewSoftLink("alias", "/group/dset")},
		{"external", NewExternalLink("ext", "other.h5", "/remote/obj")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := parseLink(serialized(t, tt.in), testReader())
			if err != nil {
				t.Fatalf("parseLink: %v", err)
			}
			if out.LinkType != tt.in.LinkType || out.Name != tt.in.Name {
				t.Errorf("got %d %q", out.LinkType, out.Name)
			}
			if out.ObjectAddress != tt.in.ObjectAddress {
				t.Errorf("ObjectAddress = %#x", out.ObjectAddress)
			}
			if out.SoftLinkValue != tt.in.SoftLinkValue {
				t.Errorf("SoftLinkValue = %q", out.SoftLinkValue)
			}
			if out.ExternalFile != tt.in.ExternalFile || out.ExternalPath != tt.in.ExternalPath {
				t.Errorf("external = %q / %q", out.ExternalFile, out.ExternalPath)
			}
		})
	}
}

func TestLinkRoundTripCharset(t *testing.T) {
	in := NewHardLink("datensatz", 0x300)
	in.Charset = 1

	out, err := parseLink(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseLink: %v", err)
	}
	if out.Charset != 1 {
		t.Errorf("Charset = %d", out.Charset)
	}
	if out.Name != "datensatz" || out.ObjectAddress != 0x300 {
		t.Errorf("got %q at %#x", out.Name, out.ObjectAddress)
	}
}

func TestLinkInfoRoundTrip(t *testing.T) {
	in := NewLinkInfo()
	out, err := parseLinkInfo(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseLinkInfo: %v", err)
	}
	if out.UsesFractalHeap() {
		t.Error("fresh link info should not reference a fractal heap")
	}
	if out.FractalHeapAddr != UndefinedAddress || out.NameIndexBTreeAddr != UndefinedAddress {
		t.Errorf("addresses = %#x, %#x", out.FractalHeapAddr, out.NameIndexBTreeAddr)
	}
}

func TestGroupInfoRoundTrip(t *testing.T) {
	out, err := parseGroupInfo(serialized(t, NewGroupInfo()), testReader())
	if err != nil {
		t.Fatalf("parseGroupInfo: %v", err)
	}
	if out.Version != 0 || out.Flags != 0 {
		t.Errorf("got version %d flags %#x", out.Version, out.Flags)
	}

	in := &GroupInfo{Flags: 0x02, EstNumEntries: 4, EstLinkNameLen: 8}
	out, err = parseGroupInfo(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseGroupInfo: %v", err)
	}
	if out.EstNumEntries != 4 || out.EstLinkNameLen != 8 {
		t.Errorf("estimates = %d, %d", out.EstNumEntries, out.EstLinkNameLen)
	}
}

func TestRefCountRoundTrip(t *testing.T) {
	out, err := parseRefCount(serialized(t, NewObjectRefCount(7)), testReader())
	if err != nil {
		t.Fatalf("parseRefCount: %v", err)
	}
	if out.RefCount != 7 {
		t.Errorf("RefCount = %d", out.RefCount)
	}
}

func TestSymbolTableRoundTrip(t *testing.T) {
	out := mustParse(t, TypeSymbolTable, serialized(t, NewSymbolTable(0x88, 0x2a8)))
	st := out.(*SymbolTable)
	if st.BTreeAddress != 0x88 || st.LocalHeapAddress != 0x2a8 {
		t.Errorf("got %#x, %#x", st.BTreeAddress, st.LocalHeapAddress)
	}
}

func TestLayoutRoundTrip(t *testing.T) {
	t.Run("contiguous", func(t *testing.T) {
		out, err := parseDataLayout(serialized(t, NewContiguousLayout(0x1000, 800)), testReader())
		if err != nil {
			t.Fatalf("parseDataLayout: %v", err)
		}
		if !out.IsContiguous() || out.Address != 0x1000 || out.Size != 800 {
			t.Errorf("got class %d addr %#x size %d", out.Class, out.Address, out.Size)
		}
	})

	t.Run("compact", func(t *testing.T) {
		data := []byte{1, 2, 3, 4, 5, 6}
		out, err := parseDataLayout(serialized(t, NewCompactLayout(data)), testReader())
		if err != nil {
			t.Fatalf("parseDataLayout: %v", err)
		}
		if !out.IsCompact() || !bytes.Equal(out.CompactData, data) {
			t.Errorf("CompactData = %v", out.CompactData)
		}
	})

	t.Run("chunked", func(t *testing.T) {
		in := NewChunkedLayout([]uint32{100, 50}, 8)
		in.ChunkIndexAddr = 0x4000
		out, err := parseDataLayout(serialized(t, in), testReader())
		if err != nil {
			t.Fatalf("parseDataLayout: %v", err)
		}
		if !out.IsChunked() || out.ChunkIndexAddr != 0x4000 {
			t.Errorf("class %d addr %#x", out.Class, out.ChunkIndexAddr)
		}
		// The element size rides along as the final chunk dimension.
		want := []uint32{100, 50, 8}
		if len(out.ChunkDims) != len(want) {
			t.Fatalf("ChunkDims = %v", out.ChunkDims)
		}
		for i, d := range want {
			if out.ChunkDims[i] != d {
				t.Errorf("ChunkDims[%d] = %d, want %d", i, out.ChunkDims[i], d)
			}
		}
	})
}

func TestFillValueRoundTrip(t *testing.T) {
	t.Run("undefined value", func(t *testing.T) {
		out, err := parseFillValue(serialized(t, NewFillValue(AllocTimeLate)), testReader())
		if err != nil {
			t.Fatalf("parseFillValue: %v", err)
		}
		if out.SpaceAllocTime != AllocTimeLate {
			t.Errorf("SpaceAllocTime = %d", out.SpaceAllocTime)
		}
	})

	t.Run("defined value", func(t *testing.T) {
		fill := []byte{0xDE, 0xAD, 0xBE, 0xEF}
		in := NewDefinedFillValue(AllocTimeIncremental, fill)
		out, err := parseFillValue(serialized(t, in), testReader())
		if err != nil {
			t.Fatalf("parseFillValue: %v", err)
		}
		if !out.IsDefined || !bytes.Equal(out.Value, fill) {
			t.Errorf("defined=%v value=%v", out.IsDefined, out.Value)
		}
	})
}

func TestFilterPipelineRoundTrip(t *testing.T) {
	in := NewFilterPipeline(NewShuffleFilter(8), NewDeflateFilter(6), NewFletcher32Filter())

	out, err := parseFilterPipeline(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseFilterPipeline: %v", err)
	}
	if len(out.Filters) != 3 {
		t.Fatalf("got %d filters", len(out.Filters))
	}
	order := []uint16{FilterShuffle, FilterDeflate, FilterFletcher32}
	for i, id := range order {
		if out.Filters[i].ID != id {
			t.Errorf("filter %d = %d, want %d", i, out.Filters[i].ID, id)
		}
	}
	if out.Filters[1].ClientData[0] != 6 {
		t.Errorf("deflate level = %v", out.Filters[1].ClientData)
	}
	if !out.HasCompression() {
		t.Error("HasCompression should be true")
	}
}

func TestLZFFilterRoundTrip(t *testing.T) {
	// Filters above the reserved range carry their name on disk.
	in := NewFilterPipeline(NewLZFFilter())
	out, err := parseFilterPipeline(serialized(t, in), testReader())
	if err != nil {
		t.Fatalf("parseFilterPipeline: %v", err)
	}
	f := out.Filters[0]
	if f.ID != FilterLZF {
		t.Errorf("ID = %d", f.ID)
	}
	if f.Name != "lzf" {
		t.Errorf("Name = %q", f.Name)
	}
}

func mustParse(t *testing.T, typ Type, data []byte) Message {
	t.Helper()
	msg, err := Parse(typ, data, 0, testReader())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return msg
}
