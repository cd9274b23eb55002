package layout

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/message"
)

// Compact reads compact storage, where the raw data travels inside the
// object header's layout message.
type Compact struct {
	data      []byte
	dataspace *message.Dataspace
	datatype  *message.Datatype
}

// NewCompact creates a compact layout handler.
func NewCompact(layout *message.DataLayout, dataspace *message.Dataspace, datatype *message.Datatype) *Compact {
	return &Compact{
		data:      layout.CompactData,
		dataspace: dataspace,
		datatype:  datatype,
	}
}

func (c *Compact) Class() message.LayoutClass {
	return message.LayoutCompact
}

// Read returns a copy of the stored data. The header message owns the
// original bytes.
func (c *Compact) Read() ([]byte, error) {
	return append([]byte(nil), c.data...), nil
}

// Size returns the stored data size in bytes.
func (c *Compact) Size() int {
	return len(c.data)
}

// ReadSlice extracts a hyperslab from the stored data. A scalar dataset
// admits only the empty selection.
func (c *Compact) ReadSlice(start, count []uint64) ([]byte, error) {
	dims := c.dataspace.Dimensions
	if len(dims) == 0 {
		if len(start) == 0 && len(count) == 0 {
			return c.Read()
		}
		return nil, fmt.Errorf("cannot slice scalar dataset with non-empty start/count")
	}

	if err := checkSelection(dims, start, count); err != nil {
		return nil, err
	}
	return extractRegion(c.data, dims, start, count, uint64(c.datatype.Size))
}
