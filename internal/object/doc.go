// Package object reads and writes HDF5 object headers, the containers
// that hold a group's or dataset's metadata messages.
//
// Version 1 headers, the classic form, start with a bare version byte
// and keep messages 8-byte aligned. Version 2 headers start with an
// "OHDR" signature, pack messages tightly, and close each block with a
// Jenkins checksum. Read detects the form, follows continuation blocks,
// and returns every message; WriteHeaderV1 and WriteHeader produce the
// two forms.
package object
