package layout

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/btree"
)

// Array-shaped chunk index client IDs. The client ID decides the
// element encoding: plain chunk addresses, or address plus stored size
// and filter mask.
const (
	arrayClientChunks         = 0
	arrayClientFilteredChunks = 1
)

// readFixedArray reads a fixed array chunk index: a header naming one
// data block that holds an element per chunk, in row-major chunk order.
func (c *Chunked) readFixedArray(dims []uint64, shape []uint32) ([]btree.ChunkEntry, error) {
	nr := c.reader.At(int64(c.layout.ChunkIndexAddr))
	start := nr.Pos()

	if err := expectSignature(nr, "FAHD"); err != nil {
		return nil, err
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported fixed array version %d", version)
	}
	clientID, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	entrySize, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	pageBits, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	numEntries, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	dataBlockAddr, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if err := verifyBlockChecksum(c.reader, nr, start); err != nil {
		return nil, fmt.Errorf("fixed array header: %w", err)
	}

	if pageBits < 64 && numEntries > uint64(1)<<pageBits {
		return nil, fmt.Errorf("paged fixed array with %d entries not supported", numEntries)
	}
	if c.reader.IsUndefinedOffset(dataBlockAddr) {
		return nil, nil
	}
	return c.readFixedArrayBlock(dataBlockAddr, int(clientID), int(entrySize), numEntries, dims, shape)
}

// readFixedArrayBlock decodes the elements of an unpaged fixed array
// data block.
func (c *Chunked) readFixedArrayBlock(addr uint64, clientID, entrySize int, numEntries uint64, dims []uint64, shape []uint32) ([]btree.ChunkEntry, error) {
	nr := c.reader.At(int64(addr))
	start := nr.Pos()

	if err := expectSignature(nr, "FADB"); err != nil {
		return nil, err
	}
	nr.Skip(2) // version, client ID
	if _, err := nr.ReadOffset(); err != nil {
		return nil, err
	}

	grid := newChunkGrid(dims, shape)
	entries := make([]btree.ChunkEntry, 0, numEntries)
	for i := uint64(0); i < numEntries; i++ {
		entry, err := c.readArrayElement(nr, clientID, entrySize)
		if err != nil {
			return nil, fmt.Errorf("fixed array element %d: %w", i, err)
		}
		entry.Offset = grid.origin(i)
		entries = append(entries, entry)
	}

	if err := verifyBlockChecksum(c.reader, nr, start); err != nil {
		return nil, fmt.Errorf("fixed array data block: %w", err)
	}
	return entries, nil
}

// readExtensibleArray reads an extensible array chunk index. Only
// elements stored directly in the index block are supported; an array
// that has spilled into data blocks is beyond this reader.
func (c *Chunked) readExtensibleArray(dims []uint64, shape []uint32) ([]btree.ChunkEntry, error) {
	nr := c.reader.At(int64(c.layout.ChunkIndexAddr))
	start := nr.Pos()

	if err := expectSignature(nr, "EAHD"); err != nil {
		return nil, err
	}
	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported extensible array version %d", version)
	}
	clientID, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	elemSize, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	nr.Skip(1) // max element index bits
	idxBlkElmts, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	nr.Skip(3) // data block min elements, secondary block min pointers, page bits
	for i := 0; i < 4; i++ {
		// Secondary and data block counts and sizes.
		if _, err := nr.ReadLength(); err != nil {
			return nil, err
		}
	}
	maxIndexSet, err := nr.ReadLength()
	if err != nil {
		return nil, err
	}
	if _, err := nr.ReadLength(); err != nil { // elements realized
		return nil, err
	}
	indexBlockAddr, err := nr.ReadOffset()
	if err != nil {
		return nil, err
	}
	if err := verifyBlockChecksum(c.reader, nr, start); err != nil {
		return nil, fmt.Errorf("extensible array header: %w", err)
	}

	if maxIndexSet > uint64(idxBlkElmts) {
		return nil, fmt.Errorf("extensible array spilled %d elements into data blocks, only index block elements supported", maxIndexSet)
	}
	if c.reader.IsUndefinedOffset(indexBlockAddr) {
		return nil, nil
	}
	return c.readExtensibleArrayBlock(indexBlockAddr, int(clientID), int(elemSize), maxIndexSet, dims, shape)
}

// readExtensibleArrayBlock decodes the elements held directly in an
// extensible array index block. The data block pointer slots and the
// trailing checksum sit past the last element we touch.
func (c *Chunked) readExtensibleArrayBlock(addr uint64, clientID, elemSize int, count uint64, dims []uint64, shape []uint32) ([]btree.ChunkEntry, error) {
	nr := c.reader.At(int64(addr))

	if err := expectSignature(nr, "EAIB"); err != nil {
		return nil, err
	}
	nr.Skip(2) // version, client ID
	if _, err := nr.ReadOffset(); err != nil {
		return nil, err
	}

	grid := newChunkGrid(dims, shape)
	entries := make([]btree.ChunkEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		entry, err := c.readArrayElement(nr, clientID, elemSize)
		if err != nil {
			return nil, fmt.Errorf("extensible array element %d: %w", i, err)
		}
		entry.Offset = grid.origin(i)
		entries = append(entries, entry)
	}
	return entries, nil
}

// readArrayElement decodes one chunk element of an array index. A
// filtered element carries the stored size and filter mask after the
// address; the size field takes whatever width remains.
func (c *Chunked) readArrayElement(nr *binary.Reader, clientID, elemSize int) (btree.ChunkEntry, error) {
	var entry btree.ChunkEntry

	addr, err := nr.ReadOffset()
	if err != nil {
		return entry, err
	}
	entry.Address = addr

	switch clientID {
	case arrayClientChunks:
		// Address only. The stored size is a full chunk; the caller
		// fills it in.

	case arrayClientFilteredChunks:
		sizeWidth := elemSize - c.reader.OffsetSize() - 4
		if sizeWidth < 1 || sizeWidth > 8 {
			return entry, fmt.Errorf("element size %d does not fit a filtered chunk", elemSize)
		}
		size, err := nr.ReadUintN(sizeWidth)
		if err != nil {
			return entry, err
		}
		entry.Size = uint32(size)
		if entry.FilterMask, err = nr.ReadUint32(); err != nil {
			return entry, err
		}

	default:
		return entry, fmt.Errorf("unsupported array index client %d", clientID)
	}
	return entry, nil
}

// expectSignature consumes and checks a four-byte block signature.
func expectSignature(nr *binary.Reader, want string) error {
	sig, err := nr.ReadBytes(4)
	if err != nil {
		return fmt.Errorf("reading %s signature: %w", want, err)
	}
	if string(sig) != want {
		return fmt.Errorf("bad signature %q, want %q", sig, want)
	}
	return nil
}

// verifyBlockChecksum checks the Jenkins checksum that closes an array
// index block. nr must sit just past the covered bytes; the stored
// checksum is consumed.
func verifyBlockChecksum(r, nr *binary.Reader, start int64) error {
	covered := nr.Pos() - start
	raw, err := r.At(start).ReadBytes(int(covered))
	if err != nil {
		return err
	}
	stored, err := nr.ReadUint32()
	if err != nil {
		return err
	}
	if sum := binary.Lookup3(raw); sum != stored {
		return fmt.Errorf("checksum mismatch: computed 0x%08x, stored 0x%08x", sum, stored)
	}
	return nil
}
