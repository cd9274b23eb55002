package binary

import (
	"encoding/binary"
	"io"
)

// Writer encodes metadata fields into an io.WriterAt, tracking its own
// position the same way Reader does. Writers derived with At share the
// file but not the position.
type Writer struct {
	dst   io.WriterAt
	order binary.ByteOrder
	offSz int
	lenSz int
	pos   int64
}

// NewWriter creates a writer positioned at offset 0. A nil byte order
// in cfg means little-endian.
func NewWriter(dst io.WriterAt, cfg Config) *Writer {
	if cfg.ByteOrder == nil {
		cfg.ByteOrder = binary.LittleEndian
	}
	return &Writer{
		dst:   dst,
		order: cfg.ByteOrder,
		offSz: cfg.OffsetSize,
		lenSz: cfg.LengthSize,
	}
}

// At returns a new writer over the same file, positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	clone := *w
	clone.pos = offset
	return &clone
}

// WithSizes returns a new writer using the given offset and length
// widths, keeping the position.
func (w *Writer) WithSizes(offsetSize, lengthSize int) *Writer {
	clone := *w
	clone.offSz = offsetSize
	clone.lenSz = lengthSize
	return &clone
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 { return w.pos }

// WriteBytes writes data at the current position and advances it.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	return w.WriteUintN(uint64(v), 2)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	return w.WriteUintN(uint64(v), 4)
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	return w.WriteUintN(v, 8)
}

// WriteUintN writes an unsigned integer n bytes wide. Widths other than
// the standard ones are written byte-by-byte little-endian, matching
// Reader.decode.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	switch n {
	case 2:
		w.order.PutUint16(buf, uint16(v))
	case 4:
		w.order.PutUint32(buf, uint32(v))
	case 8:
		w.order.PutUint64(buf, v)
	default:
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
	}
	return w.WriteBytes(buf)
}

// WriteOffset writes a file address at the configured offset width.
func (w *Writer) WriteOffset(v uint64) error {
	return w.WriteUintN(v, w.offSz)
}

// WriteLength writes a size field at the configured length width.
func (w *Writer) WriteLength(v uint64) error {
	return w.WriteUintN(v, w.lenSz)
}

// UndefinedOffset returns the undefined-address sentinel at the
// configured offset width.
func (w *Writer) UndefinedOffset() uint64 { return undefinedAt(w.offSz) }

// UndefinedLength returns the undefined-length sentinel at the
// configured length width.
func (w *Writer) UndefinedLength() uint64 { return undefinedAt(w.lenSz) }

// WriteUndefinedOffset writes the undefined-address sentinel.
func (w *Writer) WriteUndefinedOffset() error {
	return w.WriteOffset(w.UndefinedOffset())
}

// WriteUndefinedLength writes the undefined-length sentinel.
func (w *Writer) WriteUndefinedLength() error {
	return w.WriteLength(w.UndefinedLength())
}

// Skip advances the position by n bytes without writing.
func (w *Writer) Skip(n int64) {
	w.pos += n
}

// Align advances the position to the next multiple of alignment.
func (w *Writer) Align(alignment int64) {
	if alignment > 1 {
		if rem := w.pos % alignment; rem != 0 {
			w.pos += alignment - rem
		}
	}
}

// WritePadding writes zero bytes up to the next multiple of alignment.
func (w *Writer) WritePadding(alignment int64) error {
	if alignment <= 1 {
		return nil
	}
	rem := w.pos % alignment
	if rem == 0 {
		return nil
	}
	return w.WriteZeros(int(alignment - rem))
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// Config returns the writer's encoding parameters, for deriving other
// writers over the same file.
func (w *Writer) Config() Config {
	return Config{ByteOrder: w.order, OffsetSize: w.offSz, LengthSize: w.lenSz}
}

// OffsetSize returns the configured offset width in bytes.
func (w *Writer) OffsetSize() int { return w.offSz }

// LengthSize returns the configured length width in bytes.
func (w *Writer) LengthSize() int { return w.lenSz }

// ByteOrder returns the configured byte order.
func (w *Writer) ByteOrder() binary.ByteOrder { return w.order }
