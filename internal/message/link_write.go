package message

import (
	"github.com/fennelab/hdf5/internal/binary"
)

// NewHardLink returns a link message pointing at an object header in
// this file.
func NewHardLink(name string, objectAddress uint64) *Link {
	return &Link{
		Version:       1,
		LinkType:      LinkTypeHard,
		Name:          name,
		ObjectAddress: objectAddress,
	}
}

// NewSoftLink returns a link message holding a path to resolve within
// this file.
func NewSoftLink(name string, targetPath string) *Link {
	return &Link{
		Version:       1,
		LinkType:      LinkTypeSoft,
		Name:          name,
		SoftLinkValue: targetPath,
	}
}

// NewExternalLink returns a link message naming an object in another
// file.
func NewExternalLink(name string, externalFile, externalPath string) *Link {
	return &Link{
		Version:      1,
		LinkType:     LinkTypeExternal,
		Name:         name,
		ExternalFile: externalFile,
		ExternalPath: externalPath,
	}
}

// nameLenWidth returns the narrowest width that can hold a link name
// length, and the flag bits that announce it.
func nameLenWidth(nameLen int) (int, uint8) {
	switch {
	case nameLen <= 0xFF:
		return 1, 0
	case nameLen <= 0xFFFF:
		return 2, 1
	case nameLen <= 0xFFFFFFFF:
		return 4, 2
	default:
		return 8, 3
	}
}

// Serialize writes the link message in version 1 form.
func (m *Link) Serialize(w *binary.Writer) error {
	if err := w.WriteUint8(1); err != nil {
		return err
	}

	width, flags := nameLenWidth(len(m.Name))
	if m.LinkType != LinkTypeHard {
		flags |= 0x08
	}
	if m.Charset != 0 {
		flags |= 0x10
	}
	if err := w.WriteUint8(flags); err != nil {
		return err
	}
	if m.LinkType != LinkTypeHard {
		if err := w.WriteUint8(uint8(m.LinkType)); err != nil {
			return err
		}
	}
	if m.Charset != 0 {
		if err := w.WriteUint8(m.Charset); err != nil {
			return err
		}
	}
	if err := w.WriteUintN(uint64(len(m.Name)), width); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(m.Name)); err != nil {
		return err
	}

	switch m.LinkType {
	case LinkTypeHard:
		return w.WriteOffset(m.ObjectAddress)

	case LinkTypeSoft:
		if err := w.WriteUint16(uint16(len(m.SoftLinkValue))); err != nil {
			return err
		}
		return w.WriteBytes([]byte(m.SoftLinkValue))

	case LinkTypeExternal:
		// Version/flags byte, then file and path, null-terminated.
		payload := make([]byte, 0, 3+len(m.ExternalFile)+len(m.ExternalPath))
		payload = append(payload, 0)
		payload = append(payload, m.ExternalFile...)
		payload = append(payload, 0)
		payload = append(payload, m.ExternalPath...)
		payload = append(payload, 0)
		if err := w.WriteUint16(uint16(len(payload))); err != nil {
			return err
		}
		return w.WriteBytes(payload)
	}
	return nil
}

// SerializedSize returns the encoded size of the link message.
func (m *Link) SerializedSize(w *binary.Writer) int {
	width, _ := nameLenWidth(len(m.Name))
	size := 2 + width + len(m.Name)
	if m.LinkType != LinkTypeHard {
		size++
	}
	if m.Charset != 0 {
		size++
	}

	switch m.LinkType {
	case LinkTypeHard:
		size += w.OffsetSize()
	case LinkTypeSoft:
		size += 2 + len(m.SoftLinkValue)
	case LinkTypeExternal:
		size += 2 + 3 + len(m.ExternalFile) + len(m.ExternalPath)
	}
	return size
}
