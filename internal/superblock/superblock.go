package superblock

import (
	"bytes"
	stdbin "encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fennelab/hdf5/internal/binary"
)

// Signature opens every superblock: 0x89 'HDF' CR LF 0x1a LF.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock")
	ErrChecksumMismatch   = errors.New("superblock checksum mismatch")
)

// Superblock records a file's layout parameters and the location of its
// root group.
type Superblock struct {
	Version    uint8
	OffsetSize uint8 // width of file addresses in bytes
	LengthSize uint8 // width of length fields in bytes

	// BaseAddress is the file position every stored address is relative
	// to: where the signature was found, nonzero when a user block
	// precedes the superblock.
	BaseAddress uint64

	// EOFAddress is the first byte past the allocated contents,
	// relative to the base address.
	EOFAddress uint64

	// RootGroupAddress locates the root group's object header.
	RootGroupAddress uint64

	// RootGroupBTreeAddress and RootGroupLocalHeapAddress are cached in
	// the root symbol table entry's scratch pad. Classic superblocks
	// only; zero when the entry caches nothing.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	// Group B-tree half-ranks. Classic superblocks only; version 2
	// files leave readers on the library defaults.
	GroupLeafNodeK     uint16
	GroupInternalNodeK uint16

	// IndexedStorageK is the chunk B-tree half-rank. Only version 1
	// has a field for it; version 0 fixes it at 32.
	IndexedStorageK uint16

	// SuperblockExtensionAddress points at an object header carrying
	// file-wide messages. Version 2 and 3 only; undefined when absent.
	SuperblockExtensionAddress uint64

	// FileConsistencyFlags records the file's write-access state.
	// Version 2 and 3 only.
	FileConsistencyFlags uint8
}

// Read locates and parses a file's superblock. The signature may sit
// past a user block: the search starts at byte 0, then tries 512 and
// every doubling of it until the file ends.
func Read(src io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature))
	for offset := int64(0); ; offset = nextOffset(offset) {
		if _, err := src.ReadAt(sig, offset); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrNotHDF5
			}
			return nil, err
		}
		if bytes.Equal(sig, Signature) {
			return readAt(src, offset)
		}
	}
}

func nextOffset(offset int64) int64 {
	if offset == 0 {
		return 512
	}
	return offset * 2
}

func readAt(src io.ReaderAt, offset int64) (*Superblock, error) {
	r := binary.NewReader(src, binary.DefaultConfig()).At(offset + int64(len(Signature)))
	version, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}

	var sb *Superblock
	switch version {
	case 0, 1:
		sb, err = readClassic(src, r, version)
	case 2, 3:
		sb, err = readV2V3(src, r, offset, version)
	default:
		err = fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err != nil {
		return nil, fmt.Errorf("superblock at 0x%x: %w", offset, err)
	}

	// Whatever base the file records, addresses are relative to the
	// location the signature was found at.
	sb.BaseAddress = uint64(offset)
	return sb, nil
}

// ReaderConfig returns the binary encoding the superblock pins down for
// the rest of the file. Metadata is always little-endian; only dataset
// elements vary in byte order.
func (sb *Superblock) ReaderConfig() binary.Config {
	return binary.Config{
		ByteOrder:  stdbin.LittleEndian,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

func checkSizes(offsetSize, lengthSize uint8) error {
	for _, n := range []uint8{offsetSize, lengthSize} {
		switch n {
		case 2, 4, 8:
		default:
			return fmt.Errorf("%w: field width %d bytes", ErrInvalidSuperblock, n)
		}
	}
	return nil
}
