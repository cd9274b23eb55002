// Package dtype converts between HDF5 datatypes and Go values.
//
// The message package describes stored elements: class, size, byte
// order, compound members. This package gives those descriptions
// behavior. [Convert] and [ConvertWithReader] decode raw element
// bytes into Go slices, maps and scalars, resolving variable-length
// values through the file's global heap collections. [Encode] turns
// Go values into raw element bytes for writing, and
// [GoTypeToDatatype] picks the datatype a Go type is stored as.
//
// Numeric destinations need not match the stored width. Reading
// int16 data into a []int64 widens each element; narrowing reports an
// error whenever a value would not survive the round trip, instead of
// truncating silently. Enums decode through their integer base type
// and bitfields as unsigned words, so both work with any integer
// destination.
//
// Compound elements decode to map[string]any keyed by member name.
// Fixed arrays flatten to a slice of their base type, and
// variable-length sequences decode to one slice per element. [GoType]
// reports the Go type a datatype naturally maps to, and [Describe]
// renders a short name like "int32" or "compound{x: int32, y:
// float64}" for listings.
package dtype
