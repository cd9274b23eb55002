package superblock

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fennelab/hdf5/internal/binary"
)

// fileBuf is a growable in-memory io.WriterAt for write/read round
// trips.
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

func writeAt(t *testing.T, sb *Superblock, offset int64) []byte {
	t.Helper()
	var f fileBuf
	w := binary.NewWriter(&f, binary.DefaultConfig()).At(offset)
	n, err := sb.Write(w)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if want := int64(sb.Size()); n != want {
		t.Fatalf("Write returned %d bytes, Size says %d", n, want)
	}
	return f.data
}

func TestClassicRoundTrip(t *testing.T) {
	sb := NewClassicSuperblock()
	sb.EOFAddress = 4096
	sb.RootGroupAddress = 0x60
	sb.RootGroupBTreeAddress = 0x400
	sb.RootGroupLocalHeapAddress = 0x800

	data := writeAt(t, sb, 0)
	if len(data) != 96 {
		t.Fatalf("version 0 superblock is %d bytes, want 96", len(data))
	}

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Version != 0 {
		t.Errorf("Version = %d, want 0", got.Version)
	}
	if got.OffsetSize != 8 || got.LengthSize != 8 {
		t.Errorf("field widths = %d/%d, want 8/8", got.OffsetSize, got.LengthSize)
	}
	if got.GroupLeafNodeK != 4 || got.GroupInternalNodeK != 16 {
		t.Errorf("group ranks = %d/%d, want 4/16", got.GroupLeafNodeK, got.GroupInternalNodeK)
	}
	if got.IndexedStorageK != 32 {
		t.Errorf("IndexedStorageK = %d, want 32", got.IndexedStorageK)
	}
	if got.EOFAddress != 4096 {
		t.Errorf("EOFAddress = %d, want 4096", got.EOFAddress)
	}
	if got.RootGroupAddress != 0x60 {
		t.Errorf("RootGroupAddress = %#x, want 0x60", got.RootGroupAddress)
	}
	if got.RootGroupBTreeAddress != 0x400 || got.RootGroupLocalHeapAddress != 0x800 {
		t.Errorf("root scratch = %#x/%#x, want 0x400/0x800",
			got.RootGroupBTreeAddress, got.RootGroupLocalHeapAddress)
	}
}

func TestVersion1RoundTrip(t *testing.T) {
	sb := NewClassicSuperblock()
	sb.SetIndexedStorageK(64)
	if sb.Version != 1 {
		t.Fatalf("non-default chunk rank should upgrade to version 1, got %d", sb.Version)
	}
	sb.EOFAddress = 2048
	sb.RootGroupAddress = 0x64

	data := writeAt(t, sb, 0)
	if len(data) != 100 {
		t.Fatalf("version 1 superblock is %d bytes, want 100", len(data))
	}

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.IndexedStorageK != 64 {
		t.Errorf("IndexedStorageK = %d, want 64", got.IndexedStorageK)
	}
}

func TestSetIndexedStorageKDefaultKeepsVersion0(t *testing.T) {
	sb := NewClassicSuperblock()
	sb.SetIndexedStorageK(32)
	if sb.Version != 0 {
		t.Fatalf("default rank should not upgrade, got version %d", sb.Version)
	}
}

func TestV2RoundTrip(t *testing.T) {
	sb := NewV2Superblock()
	sb.EOFAddress = 1024
	sb.RootGroupAddress = 48

	data := writeAt(t, sb, 0)
	if len(data) != 48 {
		t.Fatalf("version 2 superblock is %d bytes, want 48", len(data))
	}

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if got.EOFAddress != 1024 {
		t.Errorf("EOFAddress = %d, want 1024", got.EOFAddress)
	}
	if got.RootGroupAddress != 48 {
		t.Errorf("RootGroupAddress = %d, want 48", got.RootGroupAddress)
	}
	if got.SuperblockExtensionAddress != ^uint64(0) {
		t.Errorf("extension address = %#x, want undefined", got.SuperblockExtensionAddress)
	}
}

func TestV2ChecksumRejected(t *testing.T) {
	sb := NewV2Superblock()
	sb.EOFAddress = 1024
	sb.RootGroupAddress = 48

	data := writeAt(t, sb, 0)
	data[15] ^= 0x01 // flip a bit inside the base address

	_, err := Read(bytes.NewReader(data))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want checksum mismatch", err)
	}
}

func TestSignatureSearchPastUserBlock(t *testing.T) {
	sb := NewClassicSuperblock()
	sb.EOFAddress = 4096
	sb.RootGroupAddress = 0x60

	data := writeAt(t, sb, 512)
	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.BaseAddress != 512 {
		t.Errorf("BaseAddress = %d, want 512", got.BaseAddress)
	}
}

func TestReadNotHDF5(t *testing.T) {
	_, err := Read(bytes.NewReader(make([]byte, 4096)))
	if !errors.Is(err, ErrNotHDF5) {
		t.Fatalf("got %v, want ErrNotHDF5", err)
	}

	_, err = Read(bytes.NewReader([]byte("PK\x03\x04")))
	if !errors.Is(err, ErrNotHDF5) {
		t.Fatalf("short non-HDF5 file: got %v, want ErrNotHDF5", err)
	}
}

func TestReadUnsupportedVersion(t *testing.T) {
	data := make([]byte, 256)
	copy(data, Signature)
	data[8] = 99

	_, err := Read(bytes.NewReader(data))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("got %v, want ErrUnsupportedVersion", err)
	}
}

func TestReadRejectsBadFieldWidths(t *testing.T) {
	sb := NewClassicSuperblock()
	sb.EOFAddress = 4096
	data := writeAt(t, sb, 0)
	data[13] = 3 // offset size

	_, err := Read(bytes.NewReader(data))
	if !errors.Is(err, ErrInvalidSuperblock) {
		t.Fatalf("got %v, want ErrInvalidSuperblock", err)
	}
}

func TestReadRejectsZeroGroupRank(t *testing.T) {
	sb := NewClassicSuperblock()
	sb.GroupLeafNodeK = 0
	data := writeAt(t, sb, 0)

	_, err := Read(bytes.NewReader(data))
	if !errors.Is(err, ErrInvalidSuperblock) {
		t.Fatalf("got %v, want ErrInvalidSuperblock", err)
	}
}

func TestReaderConfig(t *testing.T) {
	sb := &Superblock{OffsetSize: 4, LengthSize: 8}
	cfg := sb.ReaderConfig()
	if cfg.OffsetSize != 4 || cfg.LengthSize != 8 {
		t.Fatalf("ReaderConfig widths = %d/%d, want 4/8", cfg.OffsetSize, cfg.LengthSize)
	}
}

func TestSizeByVersion(t *testing.T) {
	cases := []struct {
		version uint8
		want    int
	}{
		{0, 96},
		{1, 100},
		{2, 48},
		{3, 48},
	}
	for _, tc := range cases {
		sb := &Superblock{Version: tc.version, OffsetSize: 8, LengthSize: 8}
		if got := sb.Size(); got != tc.want {
			t.Errorf("version %d: Size = %d, want %d", tc.version, got, tc.want)
		}
	}
}
