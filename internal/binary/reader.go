// Package binary reads and writes the primitive encodings HDF5 metadata
// is built from: little-endian fixed-width integers plus the
// variable-width offset and length fields whose sizes the superblock
// declares. It also provides the two checksums the format uses, Jenkins
// lookup3 for metadata and Fletcher-32 for chunk data.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrOutOfBounds reports a read past the end of the backing file: some
// offset or size field promised bytes that are not there.
var ErrOutOfBounds = errors.New("read out of bounds")

// OutOfBoundsError records where a bounds-checked read failed.
type OutOfBoundsError struct {
	Offset int64 // file offset of the attempted read
	Size   int   // number of bytes requested
	Err    error // underlying I/O error, if any
}

func (e *OutOfBoundsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("read of %d bytes at offset %d out of bounds: %v", e.Size, e.Offset, e.Err)
	}
	return fmt.Sprintf("read of %d bytes at offset %d out of bounds", e.Size, e.Offset)
}

func (e *OutOfBoundsError) Unwrap() error { return e.Err }

// Is reports whether target is ErrOutOfBounds, so callers can match the
// whole class with errors.Is.
func (e *OutOfBoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// Config fixes the byte order and field widths used to decode metadata,
// normally taken from the superblock.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 2, 4, or 8 bytes
	LengthSize int // 2, 4, or 8 bytes
}

// DefaultConfig is what the format guarantees before any superblock has
// been parsed: little-endian with 8-byte offsets and lengths.
func DefaultConfig() Config {
	return Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: 8,
		LengthSize: 8,
	}
}

// Reader decodes metadata fields from an io.ReaderAt, tracking its own
// position. Readers derived with At or WithSizes share the file but not
// the position, so callers can parse nested structures independently.
type Reader struct {
	src   io.ReaderAt
	order binary.ByteOrder
	offSz int
	lenSz int
	pos   int64
}

// NewReader creates a reader positioned at offset 0. A nil byte order
// in cfg means little-endian.
func NewReader(src io.ReaderAt, cfg Config) *Reader {
	if cfg.ByteOrder == nil {
		cfg.ByteOrder = binary.LittleEndian
	}
	return &Reader{
		src:   src,
		order: cfg.ByteOrder,
		offSz: cfg.OffsetSize,
		lenSz: cfg.LengthSize,
	}
}

// At returns a new reader over the same file, positioned at offset.
func (r *Reader) At(offset int64) *Reader {
	clone := *r
	clone.pos = offset
	return &clone
}

// WithSizes returns a new reader using the given offset and length
// widths, keeping the position. Used once the superblock has told us
// the file's real field sizes.
func (r *Reader) WithSizes(offsetSize, lengthSize int) *Reader {
	clone := *r
	clone.offSz = offsetSize
	clone.lenSz = lengthSize
	return &clone
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 { return r.pos }

// readAt fetches exactly n bytes at pos. A short read means the file
// does not contain the bytes a metadata field promised, reported as an
// OutOfBoundsError.
func (r *Reader) readAt(pos int64, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if pos < 0 {
		return nil, &OutOfBoundsError{Offset: pos, Size: n}
	}
	buf := make([]byte, n)
	got, err := r.src.ReadAt(buf, pos)
	if got == n {
		return buf, nil
	}
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return nil, &OutOfBoundsError{Offset: pos, Size: n, Err: err}
}

// ReadBytes reads exactly n bytes and advances the position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf, err := r.readAt(r.pos, n)
	if err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// Peek reads n bytes without advancing the position.
func (r *Reader) Peek(n int) ([]byte, error) {
	return r.readAt(r.pos, n)
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	return r.ReadUintN(8)
}

// ReadUintN reads an unsigned integer n bytes wide.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	buf, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return r.decode(buf), nil
}

// ReadOffset reads a file address at the configured offset width.
func (r *Reader) ReadOffset() (uint64, error) {
	return r.ReadUintN(r.offSz)
}

// ReadLength reads a size field at the configured length width.
func (r *Reader) ReadLength() (uint64, error) {
	return r.ReadUintN(r.lenSz)
}

// decode assembles an unsigned integer from buf. Widths other than the
// standard ones fall back to byte-by-byte little-endian, which is the
// only order HDF5 stores metadata in.
func (r *Reader) decode(buf []byte) uint64 {
	switch len(buf) {
	case 2:
		return uint64(r.order.Uint16(buf))
	case 4:
		return uint64(r.order.Uint32(buf))
	case 8:
		return r.order.Uint64(buf)
	}
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// undefinedAt is the all-ones sentinel HDF5 stores for addresses and
// lengths that are not set, at the given field width.
func undefinedAt(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*width) - 1
}

// IsUndefinedOffset reports whether v is the undefined-address sentinel
// at the configured offset width.
func (r *Reader) IsUndefinedOffset(v uint64) bool { return v == undefinedAt(r.offSz) }

// IsUndefinedLength reports whether v is the undefined-length sentinel
// at the configured length width.
func (r *Reader) IsUndefinedLength(v uint64) bool { return v == undefinedAt(r.lenSz) }

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) {
	r.pos += n
}

// Align advances the position to the next multiple of alignment.
func (r *Reader) Align(alignment int64) {
	if alignment > 1 {
		if rem := r.pos % alignment; rem != 0 {
			r.pos += alignment - rem
		}
	}
}

// OffsetSize returns the configured offset width in bytes.
func (r *Reader) OffsetSize() int { return r.offSz }

// LengthSize returns the configured length width in bytes.
func (r *Reader) LengthSize() int { return r.lenSz }

// ByteOrder returns the configured byte order.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }
