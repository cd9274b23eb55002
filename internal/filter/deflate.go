package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/fennelab/hdf5/internal/message"
)

// Deflate implements the DEFLATE filter (gzip/zlib compression).
type Deflate struct {
	level int
}

// NewDeflate creates a new DEFLATE filter.
// Client data: [0] = compression level (0-9, or default if empty)
func NewDeflate(clientData []uint32) *Deflate {
	level := 6 // Default compression level
	if len(clientData) > 0 {
		level = int(clientData[0])
	}
	return &Deflate{level: level}
}

func (f *Deflate) ID() uint16 {
	return message.FilterDeflate
}

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}

	return output, nil
}

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	if f.level < 0 || f.level > 9 {
		return nil, fmt.Errorf("zlib: invalid compression level %d", f.level)
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		w.Close()
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib flush: %w", err)
	}

	return buf.Bytes(), nil
}
