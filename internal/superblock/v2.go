package superblock

import (
	"fmt"
	"io"

	"github.com/fennelab/hdf5/internal/binary"
)

/*
Version 2 and 3 superblock:

	signature               8 bytes
	superblock version      1
	size of offsets         1
	size of lengths         1
	file consistency flags  1
	base address            O
	extension address       O
	end of file address     O
	root group address      O
	checksum                4 bytes

O is the size of offsets. The checksum covers everything before it.
Version 3 shares the layout and marks revised consistency flag
semantics for single-writer multiple-reader access.
*/

func readV2V3(src io.ReaderAt, r *binary.Reader, offset int64, version uint8) (*Superblock, error) {
	head, err := r.ReadBytes(3)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:              version,
		OffsetSize:           head[0],
		LengthSize:           head[1],
		FileConsistencyFlags: head[2],
	}
	// The field widths fix where the checksum sits, so they are checked
	// before anything can be verified against it.
	if err := checkSizes(sb.OffsetSize, sb.LengthSize); err != nil {
		return nil, err
	}

	fr := binary.NewReader(src, sb.ReaderConfig()).At(r.Pos())
	fr.Skip(int64(sb.OffsetSize)) // stored base address; the signature location supersedes it
	if sb.SuperblockExtensionAddress, err = fr.ReadOffset(); err != nil {
		return nil, err
	}
	if sb.EOFAddress, err = fr.ReadOffset(); err != nil {
		return nil, err
	}
	if sb.RootGroupAddress, err = fr.ReadOffset(); err != nil {
		return nil, err
	}

	raw, err := fr.At(offset).ReadBytes(int(fr.Pos() - offset))
	if err != nil {
		return nil, err
	}
	stored, err := fr.ReadUint32()
	if err != nil {
		return nil, err
	}
	if computed := binary.Lookup3(raw); computed != stored {
		return nil, fmt.Errorf("%w: computed 0x%08x, stored 0x%08x",
			ErrChecksumMismatch, computed, stored)
	}
	return sb, nil
}
