package superblock

import (
	"fmt"
	"io"

	"github.com/fennelab/hdf5/internal/binary"
)

/*
Classic superblock, versions 0 and 1:

	signature                8 bytes
	superblock version       1
	free-space version       1
	symbol table version     1
	reserved                 1
	shared header version    1
	size of offsets          1
	size of lengths          1
	reserved                 1
	group leaf node k        2
	group internal node k    2
	file consistency flags   4
	indexed storage k        2   version 1 only
	reserved                 2   version 1 only
	base address             O
	free-space address       O
	end of file address      O
	driver info address      O
	root group symbol table entry

O is the size of offsets. The root entry names the root group's object
header and, when its cache type is 1, carries the group's B-tree and
local heap addresses in its scratch pad.
*/

func readClassic(src io.ReaderAt, r *binary.Reader, version uint8) (*Superblock, error) {
	head, err := r.ReadBytes(7)
	if err != nil {
		return nil, err
	}
	// Free-space, symbol table entry, and shared header versions; all
	// three have only ever been zero.
	if head[0] != 0 || head[1] != 0 || head[3] != 0 {
		return nil, fmt.Errorf("%w: component versions %d/%d/%d",
			ErrInvalidSuperblock, head[0], head[1], head[3])
	}

	sb := &Superblock{
		Version:    version,
		OffsetSize: head[4],
		LengthSize: head[5],
		// Version 0 has no field for the chunk B-tree rank; the format
		// fixes it.
		IndexedStorageK: 32,
	}
	if err := checkSizes(sb.OffsetSize, sb.LengthSize); err != nil {
		return nil, err
	}

	if sb.GroupLeafNodeK, err = r.ReadUint16(); err != nil {
		return nil, err
	}
	if sb.GroupInternalNodeK, err = r.ReadUint16(); err != nil {
		return nil, err
	}
	if sb.GroupLeafNodeK == 0 || sb.GroupInternalNodeK == 0 {
		return nil, fmt.Errorf("%w: zero group B-tree rank", ErrInvalidSuperblock)
	}
	r.Skip(4) // file consistency flags, never consulted on read

	if version == 1 {
		k, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		if k == 0 {
			return nil, fmt.Errorf("%w: zero chunk B-tree rank", ErrInvalidSuperblock)
		}
		sb.IndexedStorageK = k
		r.Skip(2) // reserved
	}

	fr := binary.NewReader(src, sb.ReaderConfig()).At(r.Pos())
	fr.Skip(int64(sb.OffsetSize)) // stored base address; the signature location supersedes it
	fr.Skip(int64(sb.OffsetSize)) // free-space manager address
	if sb.EOFAddress, err = fr.ReadOffset(); err != nil {
		return nil, err
	}
	fr.Skip(int64(sb.OffsetSize)) // driver info block address

	if err := readRootEntry(fr, sb); err != nil {
		return nil, err
	}
	return sb, nil
}

// readRootEntry parses the root group symbol table entry. A cache type
// of 1 means the scratch pad holds the root B-tree and local heap
// addresses, saving a read of the root header's symbol table message.
func readRootEntry(r *binary.Reader, sb *Superblock) error {
	r.Skip(int64(sb.OffsetSize)) // link name offset, always 0 for the root

	var err error
	if sb.RootGroupAddress, err = r.ReadOffset(); err != nil {
		return err
	}
	cacheType, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if cacheType != 1 {
		return nil
	}
	r.Skip(4) // reserved
	if sb.RootGroupBTreeAddress, err = r.ReadOffset(); err != nil {
		return err
	}
	sb.RootGroupLocalHeapAddress, err = r.ReadOffset()
	return err
}
