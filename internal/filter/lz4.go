package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/fennelab/hdf5/internal/message"
)

// defaultLZ4BlockSize matches the reference filter's default, clamped to
// the chunk size at encode time.
const defaultLZ4BlockSize = 1 << 30

// LZ4 implements the registered LZ4 filter (ID 32004). The stored form
// is a big-endian header of original size (8 bytes) and block size
// (4 bytes), followed by one or more blocks of 4-byte compressed length
// plus block data. A block whose compressed length equals its original
// length is stored raw.
type LZ4 struct {
	blockSize int
}

// NewLZ4 creates a new LZ4 filter.
// Client data: [0] = block size in bytes (default if empty or zero)
func NewLZ4(clientData []uint32) *LZ4 {
	blockSize := defaultLZ4BlockSize
	if len(clientData) > 0 && clientData[0] > 0 {
		blockSize = int(clientData[0])
	}
	return &LZ4{blockSize: blockSize}
}

func (f *LZ4) ID() uint16 {
	return message.FilterLZ4
}

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: input too short for header")
	}

	origSize := binary.BigEndian.Uint64(input)
	blockSize := binary.BigEndian.Uint32(input[8:])
	if blockSize == 0 && origSize > 0 {
		return nil, fmt.Errorf("lz4: zero block size")
	}

	output := make([]byte, 0, origSize)
	pos := 12
	remaining := origSize
	for remaining > 0 {
		if pos+4 > len(input) {
			return nil, fmt.Errorf("lz4: truncated block header")
		}
		compSize := int(binary.BigEndian.Uint32(input[pos:]))
		pos += 4
		if compSize < 0 || pos+compSize > len(input) {
			return nil, fmt.Errorf("lz4: truncated block data")
		}

		blockOrig := uint64(blockSize)
		if remaining < blockOrig {
			blockOrig = remaining
		}
		block := input[pos : pos+compSize]
		pos += compSize

		if uint64(compSize) == blockOrig {
			output = append(output, block...)
		} else {
			dst := make([]byte, blockOrig)
			n, err := lz4.UncompressBlock(block, dst)
			if err != nil {
				return nil, fmt.Errorf("lz4 decompress: %w", err)
			}
			if uint64(n) != blockOrig {
				return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", n, blockOrig)
			}
			output = append(output, dst...)
		}
		remaining -= blockOrig
	}

	return output, nil
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	blockSize := f.blockSize
	if blockSize > len(input) {
		blockSize = len(input)
	}

	output := make([]byte, 12, 12+len(input)+4)
	binary.BigEndian.PutUint64(output, uint64(len(input)))
	binary.BigEndian.PutUint32(output[8:], uint32(blockSize))

	var hdr [4]byte
	for start := 0; start < len(input); start += blockSize {
		end := start + blockSize
		if end > len(input) {
			end = len(input)
		}
		block := input[start:end]

		dst := make([]byte, lz4.CompressBlockBound(len(block)))
		n, err := lz4.CompressBlock(block, dst, nil)
		if err != nil || n == 0 || n >= len(block) {
			// Store the block raw; equal lengths tell the decoder.
			binary.BigEndian.PutUint32(hdr[:], uint32(len(block)))
			output = append(output, hdr[:]...)
			output = append(output, block...)
			continue
		}

		binary.BigEndian.PutUint32(hdr[:], uint32(n))
		output = append(output, hdr[:]...)
		output = append(output, dst[:n]...)
	}

	return output, nil
}
