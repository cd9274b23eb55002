package heap

import (
	"bytes"
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

var globalHeapSignature = []byte("GCOL")

// GlobalHeap holds one parsed global heap collection. Collections store
// the payloads of variable-length data, keyed by a small object index;
// the dataset or attribute element keeps only a (collection address,
// index) reference.
type GlobalHeap struct {
	CollectionSize uint64
	objects        map[uint16][]byte
}

// GlobalHeapID locates one object inside a global heap collection.
type GlobalHeapID struct {
	CollectionAddress uint64
	ObjectIndex       uint32
}

// ReadGlobalHeap parses the collection at address, indexing every
// object up to the free-space marker (index 0) or the end of the
// collection, whichever comes first.
func ReadGlobalHeap(r *binary.Reader, address uint64) (*GlobalHeap, error) {
	if address == 0 || r.IsUndefinedOffset(address) {
		return nil, fmt.Errorf("invalid global heap address")
	}

	hr := r.At(int64(address))
	sig, err := hr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading global heap signature: %w", err)
	}
	if !bytes.Equal(sig, globalHeapSignature) {
		return nil, fmt.Errorf("invalid global heap signature: %q", sig)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("unsupported global heap version: %d", version)
	}
	hr.Skip(3)

	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	h := &GlobalHeap{
		CollectionSize: size,
		objects:        make(map[uint16][]byte),
	}

	// The collection size counts from the signature, so the object
	// region ends at address+size. Each object is a fixed prefix
	// followed by its data padded to 8 bytes.
	end := int64(address + size)
	prefix := int64(8 + r.LengthSize())
	for hr.Pos()+prefix <= end {
		index, err := hr.ReadUint16()
		if err != nil || index == 0 {
			break
		}
		hr.Skip(2 + 4) // reference count, reserved
		objectSize, err := hr.ReadLength()
		if err != nil {
			break
		}
		if hr.Pos()+int64(objectSize) > end {
			return nil, fmt.Errorf("global heap object %d overruns collection", index)
		}
		data, err := hr.ReadBytes(int(objectSize))
		if err != nil {
			break
		}
		h.objects[index] = data
		hr.Skip(int64((8 - objectSize%8) % 8))
	}
	return h, nil
}

// GetObject returns a copy of the object stored at index.
func (h *GlobalHeap) GetObject(index uint16) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("nil global heap")
	}
	data, ok := h.objects[index]
	if !ok {
		return nil, fmt.Errorf("object index %d not found in global heap", index)
	}
	return bytes.Clone(data), nil
}

// GetString returns the object at index as a string, stopping at the
// first null byte if present.
func (h *GlobalHeap) GetString(index uint16) (string, error) {
	data, err := h.GetObject(index)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}

// ParseGlobalHeapID decodes the reference stored in a variable-length
// element: a little-endian collection address of offsetSize bytes
// followed by a 4-byte object index.
func ParseGlobalHeapID(data []byte, offsetSize int) (GlobalHeapID, error) {
	switch offsetSize {
	case 2, 4, 8:
	default:
		return GlobalHeapID{}, fmt.Errorf("unsupported offset size: %d", offsetSize)
	}
	if len(data) < offsetSize+4 {
		return GlobalHeapID{}, fmt.Errorf("global heap ID too short: need %d bytes, have %d", offsetSize+4, len(data))
	}

	var addr uint64
	for i := offsetSize - 1; i >= 0; i-- {
		addr = addr<<8 | uint64(data[i])
	}
	index := uint32(data[offsetSize]) | uint32(data[offsetSize+1])<<8 |
		uint32(data[offsetSize+2])<<16 | uint32(data[offsetSize+3])<<24

	return GlobalHeapID{CollectionAddress: addr, ObjectIndex: index}, nil
}
