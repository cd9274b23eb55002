// Package message decodes and encodes HDF5 object header messages.
//
// An object header is a sequence of typed messages that together
// describe one object: a dataspace and datatype and data layout for a
// dataset, link storage for a group, attributes for either. [Parse]
// turns one raw message into a concrete type based on its type code;
// unrecognized codes come back as [Unknown] so a header with messages
// we do not understand still loads.
//
// Messages that the library writes also satisfy [Serializable], which
// pairs Serialize with an exact SerializedSize so object headers can
// be laid out before any bytes are written.
//
// Message content is little-endian throughout. The file's offset and
// length widths reach parsers through the [binary.Reader], which is
// the only superblock state they depend on.
//
// The decoded message set covers what h5py and MATLAB emit for
// ordinary files: Dataspace, Datatype (all ten classes), FillValue,
// Link, LinkInfo, GroupInfo, DataLayout (versions 1 through 4),
// FilterPipeline, Attribute, Continuation, SymbolTable, and
// ObjectRefCount. The encoded set is the subset the writer needs,
// which serializes at the earliest message versions libhdf5 itself
// would pick.
package message
