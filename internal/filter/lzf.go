package filter

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/message"
)

// LZF stream limits. A control byte below 32 introduces a literal run
// of up to 32 bytes; otherwise it opens a back reference of up to 264
// bytes reaching at most 8192 bytes behind the output position.
const (
	lzfMaxLiteral = 1 << 5
	lzfMaxOffset  = 1 << 13
	lzfMaxMatch   = (1 << 8) + (1 << 3)

	lzfTableBits = 14
)

// LZF implements the LZF filter as registered by h5py. The stream format
// is that of liblzf: raw control bytes with no container header, so the
// decoder runs until the input is exhausted.
type LZF struct{}

// NewLZF creates a new LZF filter. The filter takes no parameters; any
// client data in the pipeline message is ignored.
func NewLZF(clientData []uint32) *LZF {
	return &LZF{}
}

func (f *LZF) ID() uint16 {
	return message.FilterLZF
}

func (f *LZF) Decode(input []byte) ([]byte, error) {
	output := make([]byte, 0, 3*len(input))

	i := 0
	for i < len(input) {
		ctrl := int(input[i])
		i++

		if ctrl < lzfMaxLiteral {
			run := ctrl + 1
			if i+run > len(input) {
				return nil, fmt.Errorf("lzf: truncated literal run")
			}
			output = append(output, input[i:i+run]...)
			i += run
			continue
		}

		length := ctrl >> 5
		if length == 7 {
			if i >= len(input) {
				return nil, fmt.Errorf("lzf: truncated match length")
			}
			length += int(input[i])
			i++
		}
		length += 2

		if i >= len(input) {
			return nil, fmt.Errorf("lzf: truncated match offset")
		}
		ref := len(output) - ((ctrl & 0x1f) << 8) - int(input[i]) - 1
		i++
		if ref < 0 {
			return nil, fmt.Errorf("lzf: match before start of output")
		}

		// Byte-wise copy: overlapping references repeat recent output.
		for j := 0; j < length; j++ {
			output = append(output, output[ref+j])
		}
	}

	return output, nil
}

func (f *LZF) Encode(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	var htab [1 << lzfTableBits]int // position + 1, zero means empty
	output := make([]byte, 0, len(input))

	i := 0
	litStart := 0
	for i < len(input) {
		if i+2 < len(input) {
			h := lzfHash(input[i], input[i+1], input[i+2])
			cand := htab[h] - 1
			htab[h] = i + 1

			if cand >= 0 && i-cand <= lzfMaxOffset &&
				input[cand] == input[i] && input[cand+1] == input[i+1] && input[cand+2] == input[i+2] {
				maxLen := len(input) - i
				if maxLen > lzfMaxMatch {
					maxLen = lzfMaxMatch
				}
				matchLen := 3
				for matchLen < maxLen && input[cand+matchLen] == input[i+matchLen] {
					matchLen++
				}

				output = appendLiterals(output, input[litStart:i])
				off := i - cand - 1
				l := matchLen - 2
				if l < 7 {
					output = append(output, byte(l<<5|off>>8), byte(off))
				} else {
					output = append(output, byte(7<<5|off>>8), byte(l-7), byte(off))
				}

				i += matchLen
				litStart = i
				continue
			}
		}
		i++
	}

	return appendLiterals(output, input[litStart:]), nil
}

// appendLiterals emits pending literals as runs of at most 32 bytes,
// each prefixed by a control byte holding the run length minus one.
func appendLiterals(output, lit []byte) []byte {
	for len(lit) > 0 {
		run := len(lit)
		if run > lzfMaxLiteral {
			run = lzfMaxLiteral
		}
		output = append(output, byte(run-1))
		output = append(output, lit[:run]...)
		lit = lit[run:]
	}
	return output
}

func lzfHash(a, b, c byte) uint32 {
	h := uint32(a)<<16 | uint32(b)<<8 | uint32(c)
	return ((h >> (24 - lzfTableBits)) - h*5) & (1<<lzfTableBits - 1)
}
