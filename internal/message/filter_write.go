package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Filter flag bits.
const (
	FilterFlagOptional uint16 = 0x0001
)

// NewDeflateFilter builds a deflate (gzip) pipeline entry. The filter is
// optional so that incompressible chunks can be stored raw with the
// corresponding bit set in the chunk's filter mask.
func NewDeflateFilter(level uint32) FilterInfo {
	return FilterInfo{
		ID:         FilterDeflate,
		Flags:      FilterFlagOptional,
		ClientData: []uint32{level},
	}
}

// NewShuffleFilter builds a byte-shuffle pipeline entry.
func NewShuffleFilter(elementSize uint32) FilterInfo {
	return FilterInfo{
		ID:         FilterShuffle,
		ClientData: []uint32{elementSize},
	}
}

// NewFletcher32Filter builds a fletcher32 checksum pipeline entry.
func NewFletcher32Filter() FilterInfo {
	return FilterInfo{ID: FilterFletcher32}
}

// NewLZFFilter builds an LZF pipeline entry matching what h5py registers.
func NewLZFFilter() FilterInfo {
	return FilterInfo{
		ID:    FilterLZF,
		Flags: FilterFlagOptional,
		Name:  "lzf",
	}
}

// NewLZ4Filter builds an LZ4 pipeline entry.
func NewLZ4Filter() FilterInfo {
	return FilterInfo{
		ID:    FilterLZ4,
		Flags: FilterFlagOptional,
		Name:  "lz4",
	}
}

// NewFilterPipeline creates a version 1 filter pipeline message.
func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 1, Filters: filters}
}

// Serialize writes the filter pipeline message in version 1 format.
func (m *FilterPipeline) Serialize(w *binary.Writer) error {
	if m.Version != 1 {
		return fmt.Errorf("cannot serialize filter pipeline version %d", m.Version)
	}
	if len(m.Filters) > 32 {
		return fmt.Errorf("too many filters: %d", len(m.Filters))
	}

	if err := w.WriteBytes([]byte{m.Version, uint8(len(m.Filters))}); err != nil {
		return err
	}
	if err := w.WriteZeros(6); err != nil {
		return err
	}

	for i := range m.Filters {
		if err := serializeFilterInfo(w, &m.Filters[i]); err != nil {
			return fmt.Errorf("serializing filter %d: %w", i, err)
		}
	}
	return nil
}

// SerializedSize returns the encoded size of the filter pipeline message.
func (m *FilterPipeline) SerializedSize(w *binary.Writer) int {
	size := 8
	for i := range m.Filters {
		size += serializedFilterInfoSize(&m.Filters[i])
	}
	return size
}

func serializeFilterInfo(w *binary.Writer, f *FilterInfo) error {
	name := filterNameBytes(f)

	if err := w.WriteUint16(f.ID); err != nil {
		return err
	}
	// Version 1 stores the name length rounded up to eight bytes.
	if err := w.WriteUint16(uint16(len(name))); err != nil {
		return err
	}
	if err := w.WriteUint16(f.Flags); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(len(f.ClientData))); err != nil {
		return err
	}
	if err := w.WriteBytes(name); err != nil {
		return err
	}
	for _, cd := range f.ClientData {
		if err := w.WriteUint32(cd); err != nil {
			return err
		}
	}
	if len(f.ClientData)%2 != 0 {
		return w.WriteZeros(4)
	}
	return nil
}

func serializedFilterInfoSize(f *FilterInfo) int {
	size := 8 + len(filterNameBytes(f)) + 4*len(f.ClientData)
	if len(f.ClientData)%2 != 0 {
		size += 4
	}
	return size
}

// filterNameBytes returns the stored filter name, null terminated and
// padded to an eight byte boundary, or nil for unnamed filters.
func filterNameBytes(f *FilterInfo) []byte {
	if f.Name == "" {
		return nil
	}
	buf := make([]byte, pad8(len(f.Name)+1))
	copy(buf, f.Name)
	return buf
}
