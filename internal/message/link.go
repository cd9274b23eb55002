package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// LinkType distinguishes the link kinds a Link message can carry.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0  // object header address
	LinkTypeSoft     LinkType = 1  // path within this file
	LinkTypeExternal LinkType = 64 // file name plus path in that file
)

// Link is a link message, the new-style group equivalent of a symbol
// table entry. Exactly one of the target fields is meaningful
// depending on LinkType.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       uint8

	ObjectAddress uint64 // hard

	SoftLinkValue string // soft

	ExternalFile string // external
	ExternalPath string
}

func (m *Link) Type() Type { return TypeLink }

// IsHard reports whether the link holds an object header address.
func (m *Link) IsHard() bool { return m.LinkType == LinkTypeHard }

// IsSoft reports whether the link holds a path in this file.
func (m *Link) IsSoft() bool { return m.LinkType == LinkTypeSoft }

// IsExternal reports whether the link points into another file.
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func parseLink(data []byte, r *binary.Reader) (*Link, error) {
	c := cursor{buf: data}
	link := &Link{Version: c.u8()}
	flags := c.u8()
	if c.bad {
		return nil, fmt.Errorf("link message too short")
	}

	// Flag bits: 0-1 select the width of the name length field, 2-4
	// mark optional fields as present. An absent type field means hard.
	if flags&0x08 != 0 {
		link.LinkType = LinkType(c.u8())
	}
	if flags&0x04 != 0 {
		link.CreationOrder = c.u64()
	}
	if flags&0x10 != 0 {
		link.Charset = c.u8()
	}

	nameLen := int(c.uintN(1 << (flags & 0x03)))
	name := c.take(nameLen)
	if c.bad {
		return nil, fmt.Errorf("link message truncated reading name")
	}
	link.Name = string(name)

	switch link.LinkType {
	case LinkTypeHard:
		link.ObjectAddress = c.uintN(r.OffsetSize())
		if c.bad {
			return nil, fmt.Errorf("hard link %q truncated", link.Name)
		}

	case LinkTypeSoft:
		target := c.take(int(c.u16()))
		if c.bad {
			return nil, fmt.Errorf("soft link %q truncated", link.Name)
		}
		link.SoftLinkValue = string(target)

	case LinkTypeExternal:
		// The payload is its own little structure: a version/flags
		// byte, then the file name and object path, null-terminated.
		payload := cursor{buf: c.take(int(c.u16()))}
		payload.skip(1)
		link.ExternalFile = payload.cstring()
		if c.bad || payload.bad {
			return nil, fmt.Errorf("external link %q truncated", link.Name)
		}
		rest := payload.rest()
		for i, b := range rest {
			if b == 0 {
				rest = rest[:i]
				break
			}
		}
		link.ExternalPath = string(rest)

	default:
		// User-defined link class: keep the name so the link can be
		// listed, with no target to resolve.
	}
	return link, nil
}
