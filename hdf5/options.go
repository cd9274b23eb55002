package hdf5

import (
	"fmt"
	"math"
)

// Compression selects the codec applied to chunk data.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionLZF
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionLZF:
		return "lzf"
	case CompressionLZ4:
		return "lz4"
	}
	return "none"
}

// DefaultGzipLevel is used when WithCompression(CompressionGzip, 0) is
// requested.
const DefaultGzipLevel = 6

// FileOption configures a FileWriter at Create time.
type FileOption func(*fileConfig) error

type fileConfig struct {
	superblockVersion uint8
	offsetSize        int
	lengthSize        int
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		superblockVersion: 0,
		offsetSize:        8,
		lengthSize:        8,
	}
}

// WithSuperblockVersion selects the superblock version: 0 (classic,
// upgraded to 1 automatically when a chunk index needs a non-default
// B-tree rank) or 2 (checksummed).
func WithSuperblockVersion(v int) FileOption {
	return func(c *fileConfig) error {
		if v != 0 && v != 2 {
			return fmt.Errorf("superblock version %d: %w", v, ErrUnsupportedFeature)
		}
		c.superblockVersion = uint8(v)
		return nil
	}
}

// WithOffsetSize sets the width of file offsets in bytes (4 or 8).
func WithOffsetSize(n int) FileOption {
	return func(c *fileConfig) error {
		if n != 4 && n != 8 {
			return fmt.Errorf("offset size %d bytes: %w", n, ErrUnsupportedFeature)
		}
		c.offsetSize = n
		return nil
	}
}

// WithLengthSize sets the width of lengths in bytes (4 or 8).
func WithLengthSize(n int) FileOption {
	return func(c *fileConfig) error {
		if n != 4 && n != 8 {
			return fmt.Errorf("length size %d bytes: %w", n, ErrUnsupportedFeature)
		}
		c.lengthSize = n
		return nil
	}
}

// DatasetOption configures one dataset in a write plan.
type DatasetOption func(*datasetPlan) error

// WithChunks stores the dataset chunked with the given chunk shape, one
// extent per dataset dimension.
func WithChunks(dims ...int) DatasetOption {
	return func(p *datasetPlan) error {
		if len(dims) == 0 {
			return fmt.Errorf("empty chunk shape")
		}
		chunks := make([]uint32, len(dims))
		for i, d := range dims {
			if d < 1 {
				return fmt.Errorf("chunk dimension %d is %d, must be at least 1", i, d)
			}
			if int64(d) > math.MaxUint32 {
				return fmt.Errorf("chunk dimension %d is %d, exceeds the format's 32-bit limit", i, d)
			}
			chunks[i] = uint32(d)
		}
		p.chunkDims = chunks
		return nil
	}
}

// WithCompression compresses chunk data with the given codec. level is
// the gzip level 1-9, or 0 for the default; other codecs take no level.
// Requesting compression implies chunked storage.
func WithCompression(kind Compression, level int) DatasetOption {
	return func(p *datasetPlan) error {
		switch kind {
		case CompressionNone:
			if level != 0 {
				return fmt.Errorf("compression level %d given without a codec", level)
			}
		case CompressionGzip:
			if level == 0 {
				level = DefaultGzipLevel
			}
			if level < 1 || level > 9 {
				return fmt.Errorf("gzip level %d out of range 1-9", level)
			}
		case CompressionLZF, CompressionLZ4:
			if level != 0 {
				return fmt.Errorf("%s compression takes no level", kind)
			}
		default:
			return fmt.Errorf("compression kind %d: %w", kind, ErrUnsupportedFeature)
		}
		p.compression = kind
		p.gzipLevel = level
		return nil
	}
}

// WithShuffle adds the byte-shuffle filter ahead of compression.
// Implies chunked storage.
func WithShuffle() DatasetOption {
	return func(p *datasetPlan) error {
		p.shuffle = true
		return nil
	}
}

// WithFletcher32 appends a fletcher32 checksum to every stored chunk.
// Implies chunked storage.
func WithFletcher32() DatasetOption {
	return func(p *datasetPlan) error {
		p.fletcher32 = true
		return nil
	}
}

// WithAttribute attaches an attribute to the dataset. Supported values
// are ints, floats, strings, and slices of those.
func WithAttribute(name string, value any) DatasetOption {
	return func(p *datasetPlan) error {
		if name == "" {
			return fmt.Errorf("empty attribute name")
		}
		if p.attrs == nil {
			p.attrs = make(map[string]any)
		}
		p.attrs[name] = value
		return nil
	}
}
