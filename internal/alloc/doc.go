// Package alloc hands out file addresses during writing.
//
// A file is laid out in a single pass: chunk data first, then object
// headers, then group storage, with the superblock patched last. Every
// structure asks the shared [Allocator] for its address, so the
// end-of-file watermark is always the sum of what has been reserved and
// nothing can overlap.
//
// Allocation is append-only. Nothing is ever freed; a writer that needs
// to abandon its output deletes the file rather than reclaiming space.
package alloc
