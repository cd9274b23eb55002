package message

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/binary"
)

// NewAttribute creates a new attribute message. Version 1 is the encoding
// used inside classic (v1) object headers and is readable by every HDF5
// implementation.
func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{
		Version:   1,
		Name:      name,
		Datatype:  datatype,
		Dataspace: dataspace,
		Data:      data,
	}
}

// NewScalarAttribute creates a new scalar attribute (no dimensions).
func NewScalarAttribute(name string, datatype *Datatype, data []byte) *Attribute {
	return &Attribute{
		Version:   1,
		Name:      name,
		Datatype:  datatype,
		Dataspace: NewScalarDataspace(),
		Data:      data,
	}
}

// Serialize writes the Attribute message to the writer.
func (m *Attribute) Serialize(w *binary.Writer) error {
	switch m.Version {
	case 1:
		return m.serializeV1(w)
	case 3:
		return m.serializeV3(w)
	default:
		return fmt.Errorf("cannot serialize attribute version %d", m.Version)
	}
}

// serializeV1 writes the version 1 encoding: the declared sizes are the
// unpadded sizes, but the name, datatype, and dataspace sections are each
// padded to a multiple of 8 bytes.
func (m *Attribute) serializeV1(w *binary.Writer) error {
	nameSize := len(m.Name) + 1
	datatypeSize := m.Datatype.SerializedSize(w)
	dataspaceSize := m.Dataspace.SerializedSize(w)

	if err := w.WriteUint8(1); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil { // reserved
		return err
	}
	if err := w.WriteUint16(uint16(nameSize)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(datatypeSize)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(dataspaceSize)); err != nil {
		return err
	}

	if err := w.WriteBytes([]byte(m.Name)); err != nil {
		return err
	}
	if err := w.WriteZeros(pad8(nameSize) - nameSize + 1); err != nil {
		return err
	}

	if err := m.Datatype.Serialize(w); err != nil {
		return err
	}
	if err := w.WriteZeros(pad8(datatypeSize) - datatypeSize); err != nil {
		return err
	}

	if err := m.Dataspace.Serialize(w); err != nil {
		return err
	}
	if err := w.WriteZeros(pad8(dataspaceSize) - dataspaceSize); err != nil {
		return err
	}

	return w.WriteBytes(m.Data)
}

func (m *Attribute) serializeV3(w *binary.Writer) error {
	nameSize := uint16(len(m.Name) + 1)
	datatypeSize := m.Datatype.SerializedSize(w)
	dataspaceSize := m.Dataspace.SerializedSize(w)

	if err := w.WriteUint8(3); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil { // flags
		return err
	}
	if err := w.WriteUint16(nameSize); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(datatypeSize)); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(dataspaceSize)); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil { // encoding: ASCII
		return err
	}

	// Version 3 sections are not padded.
	if err := w.WriteBytes([]byte(m.Name)); err != nil {
		return err
	}
	if err := w.WriteUint8(0); err != nil {
		return err
	}
	if err := m.Datatype.Serialize(w); err != nil {
		return err
	}
	if err := m.Dataspace.Serialize(w); err != nil {
		return err
	}
	return w.WriteBytes(m.Data)
}

// SerializedSize returns the size in bytes when serialized.
func (m *Attribute) SerializedSize(w *binary.Writer) int {
	nameSize := len(m.Name) + 1
	datatypeSize := m.Datatype.SerializedSize(w)
	dataspaceSize := m.Dataspace.SerializedSize(w)

	if m.Version == 1 {
		// version(1) + reserved(1) + three u16 sizes, then 8-padded sections.
		return 8 + pad8(nameSize) + pad8(datatypeSize) + pad8(dataspaceSize) + len(m.Data)
	}
	// version(1) + flags(1) + three u16 sizes + encoding(1), unpadded sections.
	return 9 + nameSize + datatypeSize + dataspaceSize + len(m.Data)
}

// pad8 rounds n up to the next multiple of 8.
func pad8(n int) int {
	return (n + 7) &^ 7
}
