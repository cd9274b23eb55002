// Package superblock reads and writes the block that anchors an HDF5
// file.
//
// The superblock starts with an 8-byte signature, normally at byte 0
// but possibly after a user block at 512 bytes or any doubling of that.
// It fixes the widths used for file addresses and lengths, the
// B-tree ranks of the classic group format, and the location of the
// root group. [Read] searches out the signature and parses whichever
// version it finds; everything downstream takes its decoding parameters
// from [Superblock.ReaderConfig].
//
// Versions 0 and 1 embed the root group's symbol table entry, caching
// its B-tree and local heap addresses in the scratch pad. Versions 2
// and 3 shrink to a handful of addresses, point at the root object
// header directly, and close with a Jenkins checksum.
//
// The writing side mirrors this: [NewClassicSuperblock] for the classic
// layout, [NewV2Superblock] for the checksummed one, and
// [Superblock.Write] to lay either out. A classic superblock upgrades
// itself from version 0 to 1 when a non-default chunk tree rank needs
// recording.
package superblock
