// Package filter implements the HDF5 filter pipeline for chunked data.
//
// HDF5 uses filters to compress and transform chunked data. Filters run
// forward when writing and in reverse order when reading. Each chunk
// carries a filter mask that records pipeline stages skipped for that
// chunk.
//
// # Supported Filters
//
// This package implements the following filters:
//
//   - DEFLATE (ID 1): Zlib compression via [Deflate], levels 1-9, using
//     github.com/klauspost/compress/zlib.
//
//   - Shuffle (ID 2): Byte shuffling via [Shuffle]. Rearranges bytes to
//     improve compression by grouping similar byte positions together
//     (e.g., all MSBs, then all second bytes, etc.).
//
//   - Fletcher32 (ID 3): Checksum via [Fletcher32Filter]. A 32-bit
//     Fletcher checksum is appended on encode and verified on decode.
//
//   - LZF (ID 32000): The liblzf-format filter h5py registers, via
//     [LZF]. Fast with modest ratios; the codec here is self-contained.
//
//   - LZ4 (ID 32004): Block LZ4 in the registered filter's framing via
//     [LZ4], using github.com/pierrec/lz4/v4.
//
// # Unsupported Filters
//
// The following filters are recognized but not implemented:
//
//   - SZIP (ID 4): Proprietary compression algorithm
//   - N-bit (ID 5): Bit-level packing
//   - Scale-offset (ID 6): Integer scaling and offset
//
// Datasets using unsupported filters cannot be read. However, optional
// filters (marked in the filter pipeline) can be skipped if not available.
//
// # Filter Pipeline
//
// The [Pipeline] type manages a sequence of filters for a dataset:
//
//	pipeline, err := filter.NewPipeline(filterPipelineMsg)
//	decodedData, err := pipeline.Decode(storedData, filterMask)
//	storedData, mask, err := pipeline.Encode(rawData)
//
// Decoding applies filters in reverse order. For example, if a dataset
// was written with filters [Shuffle, DEFLATE], decoding applies DEFLATE
// first (to decompress), then Shuffle (to unshuffle bytes).
//
// # Filter Mask
//
// Each chunk has a filter mask naming pipeline stages to skip: bit i set
// means stage i was not applied to this chunk. The encoder sets a
// stage's bit when an optional filter fails or leaves the data at 90%
// or more of its input size, storing that stage's input unfiltered
// instead of spending space on compression that did not pay off.
//
// # Key Types
//
//   - [Filter]: Interface implemented by all filters (ID, Decode, Encode)
//   - [Pipeline]: Manages a sequence of filters
//   - [Deflate], [Shuffle], [Fletcher32Filter], [LZF], [LZ4]
package filter
