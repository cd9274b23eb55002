// Package layout reads and writes the raw element storage of HDF5
// datasets.
//
// A dataset's layout message selects one of three storage classes.
// Compact data travels inside the object header itself. Contiguous data
// occupies one flat block. Chunked data is split into fixed-shape
// pieces, each run through the filter pipeline and located by a chunk
// index: a version 1 tree in classic files, or a single chunk, implicit
// block, fixed array, extensible array or version 2 tree in files
// written with the later format.
//
// Reading goes through the [Layout] interface, which hides the storage
// class behind Read and ReadSlice. Whatever the index flavour, chunked
// reading resolves the index to a flat entry list and then fetches,
// decodes and places chunks concurrently. [ChunkWriter] and
// [WriteContiguous] cover the writing side; new files index chunks with
// a version 1 tree only.
package layout
