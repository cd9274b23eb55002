// Package heap reads and writes the two HDF5 heap structures that back
// variable-length storage.
//
// A local heap ("HEAP") is the per-group string pool of the old-style
// group format: symbol table entries name their links by byte offset
// into the heap's data segment. [ReadLocalHeap] loads a heap and
// [LocalHeap.GetString] resolves offsets; [LocalHeapWriter] builds the
// segment for groups this package writes, keeping offset 0 reserved so
// no name is ever stored there.
//
// A global heap collection ("GCOL") holds the payloads of
// variable-length data such as vlen strings. The element stored in a
// dataset or attribute is only a reference, decoded by
// [ParseGlobalHeapID] into a collection address and object index;
// [ReadGlobalHeap] then loads the collection and [GlobalHeap.GetObject]
// or [GlobalHeap.GetString] returns the payload. [GlobalHeapWriter]
// produces collections with the layout the reference library insists
// on: objects padded to 8 bytes, a trailing free-space object, and a
// 4096-byte minimum collection size.
package heap
