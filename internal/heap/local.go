package heap

import (
	"bytes"
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

var localHeapSignature = []byte("HEAP")

// LocalHeap holds the data segment of one local heap, the per-group
// string pool where old-style groups keep their link names. Symbol
// table entries refer to names by byte offset into this segment.
type LocalHeap struct {
	DataSize    uint64
	FreeOffset  uint64
	DataAddress uint64
	data        []byte
}

// ReadLocalHeap parses the heap header at address and loads the data
// segment it points to.
func ReadLocalHeap(r *binary.Reader, address uint64) (*LocalHeap, error) {
	hr := r.At(int64(address))

	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading local heap signature: %w", err)
	}
	if !bytes.Equal(sig, localHeapSignature) {
		return nil, fmt.Errorf("invalid local heap signature: got %q, expected \"HEAP\"", sig)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported local heap version: %d", version)
	}
	hr.Skip(3)

	h := &LocalHeap{}
	if h.DataSize, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.FreeOffset, err = hr.ReadLength(); err != nil {
		return nil, err
	}
	if h.DataAddress, err = hr.ReadOffset(); err != nil {
		return nil, err
	}

	h.data, err = r.At(int64(h.DataAddress)).ReadBytes(int(h.DataSize))
	if err != nil {
		return nil, fmt.Errorf("reading local heap data: %w", err)
	}
	return h, nil
}

// GetString returns the null-terminated string at offset in the data
// segment, or "" when the offset is past the end. A string running to
// the end of the segment without a terminator is returned whole.
func (h *LocalHeap) GetString(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}
