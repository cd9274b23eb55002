package superblock

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// Write writes the superblock at the writer's position and returns the
// byte count. The block is assembled in memory and committed with a
// single write, so an abort never leaves a truncated superblock on
// disk.
func (sb *Superblock) Write(w *binary.Writer) (int64, error) {
	bw, buf := binary.NewBuffered(w.Config())

	var err error
	if sb.Version <= 1 {
		err = sb.encodeClassic(bw)
	} else {
		err = sb.encodeV2(bw, buf)
	}
	if err != nil {
		return 0, err
	}

	if err := w.WriteBytes(buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// encodeClassic lays out a version 0 or 1 superblock. The root group
// symbol table entry rides along at the end, with the root B-tree and
// local heap addresses cached in its scratch pad.
func (sb *Superblock) encodeClassic(bw *binary.Writer) error {
	if err := bw.WriteBytes(Signature); err != nil {
		return err
	}
	if err := bw.WriteBytes([]byte{
		sb.Version,
		0, // free-space storage version
		0, // root group symbol table entry version
		0, // reserved
		0, // shared header message format version
		sb.OffsetSize,
		sb.LengthSize,
		0, // reserved
	}); err != nil {
		return err
	}
	if err := bw.WriteUint16(sb.GroupLeafNodeK); err != nil {
		return err
	}
	if err := bw.WriteUint16(sb.GroupInternalNodeK); err != nil {
		return err
	}
	if err := bw.WriteUint32(uint32(sb.FileConsistencyFlags)); err != nil {
		return err
	}
	if sb.Version == 1 {
		if err := bw.WriteUint16(sb.IndexedStorageK); err != nil {
			return err
		}
		if err := bw.WriteZeros(2); err != nil {
			return err
		}
	}

	if err := bw.WriteOffset(sb.BaseAddress); err != nil {
		return err
	}
	if err := bw.WriteUndefinedOffset(); err != nil { // free-space info
		return err
	}
	if err := bw.WriteOffset(sb.EOFAddress); err != nil {
		return err
	}
	if err := bw.WriteUndefinedOffset(); err != nil { // driver info block
		return err
	}

	// Root group symbol table entry: link name offset 0, cache type 1,
	// scratch pad holding the B-tree and heap addresses.
	if err := bw.WriteOffset(0); err != nil {
		return err
	}
	if err := bw.WriteOffset(sb.RootGroupAddress); err != nil {
		return err
	}
	if err := bw.WriteUint32(1); err != nil {
		return err
	}
	if err := bw.WriteUint32(0); err != nil { // reserved
		return err
	}
	if err := bw.WriteOffset(sb.RootGroupBTreeAddress); err != nil {
		return err
	}
	if err := bw.WriteOffset(sb.RootGroupLocalHeapAddress); err != nil {
		return err
	}
	return bw.WriteZeros(16 - 2*bw.OffsetSize())
}

// encodeV2 lays out a version 2 or 3 superblock and closes it with the
// Jenkins checksum of everything before the checksum field.
func (sb *Superblock) encodeV2(bw *binary.Writer, buf *binary.Buffer) error {
	if err := bw.WriteBytes(Signature); err != nil {
		return err
	}
	if err := bw.WriteBytes([]byte{
		sb.Version,
		sb.OffsetSize,
		sb.LengthSize,
		sb.FileConsistencyFlags,
	}); err != nil {
		return err
	}

	if err := bw.WriteOffset(sb.BaseAddress); err != nil {
		return err
	}
	extAddr := sb.SuperblockExtensionAddress
	if extAddr == 0 {
		extAddr = bw.UndefinedOffset()
	}
	if err := bw.WriteOffset(extAddr); err != nil {
		return err
	}
	if err := bw.WriteOffset(sb.EOFAddress); err != nil {
		return err
	}
	if err := bw.WriteOffset(sb.RootGroupAddress); err != nil {
		return err
	}

	return bw.WriteUint32(binary.Lookup3(buf.Bytes()))
}

// Size returns the superblock's encoded size in bytes.
func (sb *Superblock) Size() int {
	offsetSize := int(sb.OffsetSize)
	if offsetSize == 0 {
		offsetSize = 8
	}

	switch sb.Version {
	case 0:
		// Fixed header(24) + 4 addresses + root entry(2O + 24)
		return 24 + 4*offsetSize + 2*offsetSize + 24
	case 1:
		// Version 0 layout plus indexed storage K + reserved
		return 28 + 4*offsetSize + 2*offsetSize + 24
	default:
		// Signature(8) + version, sizes, flags(4) + 4 addresses +
		// checksum(4)
		return 12 + 4*offsetSize + 4
	}
}

// NewClassicSuperblock creates a version 0 superblock with the default
// B-tree ranks. Version 1 is only needed when a chunk index requires a
// larger rank than the default 32; SetIndexedStorageK upgrades for that.
func NewClassicSuperblock() *Superblock {
	return &Superblock{
		Version:            0,
		OffsetSize:         8,
		LengthSize:         8,
		GroupLeafNodeK:     4,
		GroupInternalNodeK: 16,
		IndexedStorageK:    32,
	}
}

// NewV2Superblock creates a version 2 superblock. The root group address
// points at an object header carrying a symbol table message; B-tree
// ranks are not recorded, readers fall back to the library defaults.
func NewV2Superblock() *Superblock {
	return &Superblock{
		Version:    2,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// SetIndexedStorageK raises the chunk B-tree rank. Version 0 superblocks
// have no field for a non-default rank, so this upgrades to version 1.
func (sb *Superblock) SetIndexedStorageK(k uint16) {
	sb.IndexedStorageK = k
	if k != 32 && sb.Version == 0 {
		sb.Version = 1
	}
}
