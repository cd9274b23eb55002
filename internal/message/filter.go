package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Filter identifiers. The first block is reserved by the format; the
// rest are registered third-party filters we understand.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6

	FilterLZF uint16 = 32000 // h5py's default non-gzip compressor
	FilterLZ4 uint16 = 32004
)

// FilterInfo is one entry of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16 // bit 0: filter is optional
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a chunk may skip this filter.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline lists the filters applied to every chunk of a
// dataset, in application order.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// HasFilter reports whether the pipeline contains id.
func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// HasCompression reports whether any filter in the pipeline compresses
// data, as opposed to transforming or checksumming it.
func (m *FilterPipeline) HasCompression() bool {
	for _, f := range m.Filters {
		switch f.ID {
		case FilterDeflate, FilterSZIP, FilterLZF, FilterLZ4:
			return true
		}
	}
	return false
}

func parseFilterPipeline(data []byte, r *binary.Reader) (*FilterPipeline, error) {
	c := cursor{buf: data}
	fp := &FilterPipeline{Version: c.u8()}
	n := int(c.u8())
	if fp.Version == 1 {
		c.skip(6) // reserved
	}
	if c.bad {
		return nil, fmt.Errorf("filter pipeline message too short")
	}

	fp.Filters = make([]FilterInfo, 0, n)
	for i := 0; i < n; i++ {
		f, err := parseFilterInfo(&c, fp.Version)
		if err != nil {
			return nil, fmt.Errorf("parsing filter %d: %w", i, err)
		}
		fp.Filters = append(fp.Filters, f)
	}
	return fp, nil
}

func parseFilterInfo(c *cursor, version uint8) (FilterInfo, error) {
	var f FilterInfo
	f.ID = c.u16()

	// v2 drops the name for the built-in filters.
	var nameLen int
	if version == 1 || f.ID >= 256 {
		nameLen = int(c.u16())
	}
	f.Flags = c.u16()
	numValues := int(c.u16())
	if c.bad {
		return f, fmt.Errorf("filter info too short")
	}

	if nameLen > 0 {
		f.Name = c.stringIn(nameLen)
		if version == 1 {
			c.pad8()
		}
		if c.bad {
			return f, fmt.Errorf("filter name truncated")
		}
	}

	f.ClientData = make([]uint32, 0, numValues)
	for j := 0; j < numValues && c.remaining() >= 4; j++ {
		f.ClientData = append(f.ClientData, c.u32())
	}
	if version == 1 && numValues%2 != 0 {
		c.skip(4) // pad to an even count
	}
	return f, nil
}
