package binary

// Buffer is a growable in-memory io.WriterAt. Structures that end in a
// checksum are assembled in a Buffer, checksummed over Bytes, and
// flushed to the file in a single write.
type Buffer struct {
	buf []byte
}

// NewBuffered returns a Writer that collects into a fresh Buffer.
func NewBuffered(cfg Config) (*Writer, *Buffer) {
	buf := &Buffer{}
	return NewWriter(buf, cfg), buf
}

func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(b.buf) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[off:], p)
	return len(p), nil
}

// Bytes returns everything written so far. The slice aliases the
// buffer's storage.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.buf) }
