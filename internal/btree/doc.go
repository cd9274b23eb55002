// Package btree reads and writes the tree indexes HDF5 builds over
// group links and dataset chunks.
//
// Version 1 trees (signature "TREE") index group symbol tables and the
// chunks of version 1 superblock files. [ReadGroupEntries] flattens a
// group tree into its links, [FindEntry] resolves a single name without
// loading every symbol table node, and [ReadChunkIndex] collects the
// chunks of a dataset. [WriteGroupTree] and [WriteChunkTree] produce
// the same structures when writing.
//
// Version 2 trees (signature "BTHD") index chunks in files written with
// the newer layout message. [ReadChunkIndexV2] handles record types 10
// and 11 and returns the same [ChunkIndex] shape as the version 1
// reader, with stored chunk indices already scaled back to element
// coordinates.
package btree
