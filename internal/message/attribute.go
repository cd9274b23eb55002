package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// Attribute is an attribute message: a name, the type and shape of the
// value, and the raw value bytes, all inline in the object header.
type Attribute struct {
	Version       uint8
	Name          string
	DatatypeSize  uint16
	DataspaceSize uint16
	Datatype      *Datatype
	Dataspace     *Dataspace
	Data          []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// parseAttribute decodes attribute message versions 1 through 3. The
// versions share one layout; v1 pads the embedded fields to 8 bytes
// and v3 appends a name-encoding byte to the fixed header.
func parseAttribute(data []byte, r *binary.Reader) (*Attribute, error) {
	c := cursor{buf: data}
	attr := &Attribute{Version: c.u8()}
	c.skip(1) // reserved in v1, flags afterwards
	nameSize := int(c.u16())
	attr.DatatypeSize = c.u16()
	attr.DataspaceSize = c.u16()
	if c.bad {
		return nil, fmt.Errorf("attribute message too short")
	}
	if attr.Version < 1 || attr.Version > 3 {
		return nil, fmt.Errorf("unsupported attribute version: %d", attr.Version)
	}
	padded := attr.Version == 1
	if attr.Version == 3 {
		c.skip(1) // name character set
	}

	attr.Name = c.stringIn(nameSize)
	if padded {
		c.pad8()
	}

	dtField := c.take(int(attr.DatatypeSize))
	if padded {
		c.pad8()
	}
	dsField := c.take(int(attr.DataspaceSize))
	if padded {
		c.pad8()
	}
	if c.bad {
		return nil, fmt.Errorf("attribute %q truncated", attr.Name)
	}

	// A malformed datatype or dataspace leaves the field nil rather
	// than failing the whole header; the value is unreadable but the
	// attribute still lists.
	if dt, err := parseDatatype(dtField, r); err == nil {
		attr.Datatype = dt
	}
	if ds, err := parseDataspace(dsField, r); err == nil {
		attr.Dataspace = ds
	}

	if rest := c.rest(); len(rest) > 0 {
		attr.Data = append([]byte(nil), rest...)
	}
	return attr, nil
}
