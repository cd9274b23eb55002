package hdf5

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/fennelab/hdf5/internal/binary"
	"github.com/fennelab/hdf5/internal/dtype"
	"github.com/fennelab/hdf5/internal/filter"
	"github.com/fennelab/hdf5/internal/layout"
	"github.com/fennelab/hdf5/internal/message"
)

// autoChunkTarget is the byte size the automatic chunk shape aims for.
const autoChunkTarget = 1 << 20

// datasetPlan holds one planned dataset until Close writes it.
type datasetPlan struct {
	path   string
	data   []byte
	dims   []uint64
	dtype  *message.Datatype
	scalar bool

	chunkDims   []uint32
	compression Compression
	gzipLevel   int
	shuffle     bool
	fletcher32  bool
	attrs       map[string]any

	// resolved during Close
	layoutMsg   *message.DataLayout
	pipelineMsg *message.FilterPipeline
	messages    []message.Message
	headerAddr  uint64
	refCount    uint32
}

// newDatasetPlan validates values against shape, encodes the payload, and
// applies the dataset options. values must be []int64 or []float64; a
// scalar dataset is an empty shape with exactly one value.
func newDatasetPlan(path string, values any, shape []int, opts ...DatasetOption) (*datasetPlan, error) {
	p := &datasetPlan{path: path, refCount: 1}

	dims := make([]uint64, len(shape))
	n := uint64(1)
	for i, s := range shape {
		if s < 0 {
			return nil, fmt.Errorf("shape[%d] is %d, must not be negative", i, s)
		}
		dims[i] = uint64(s)
		n *= uint64(s)
	}
	p.dims = dims
	p.scalar = len(shape) == 0

	var count int
	switch v := values.(type) {
	case []int64:
		count = len(v)
		p.dtype = message.NewFixedPointDatatype(8, true, message.OrderLE)
	case []float64:
		count = len(v)
		p.dtype = message.NewFloatDatatype(8, message.OrderLE)
	default:
		return nil, fmt.Errorf("values type %T, want []int64 or []float64", values)
	}

	if uint64(count) != n {
		return nil, fmt.Errorf("%d values for shape %v (%d elements)", count, shape, n)
	}

	data, err := dtype.Encode(p.dtype, values)
	if err != nil {
		return nil, fmt.Errorf("encoding values: %w", err)
	}
	p.data = data

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.scalar && p.chunked() {
		return nil, fmt.Errorf("scalar datasets cannot be chunked or filtered")
	}
	if p.chunkDims != nil {
		if len(p.chunkDims) != len(dims) {
			return nil, fmt.Errorf("chunk shape has %d dimensions, dataset has %d",
				len(p.chunkDims), len(dims))
		}
		for i, c := range p.chunkDims {
			if dims[i] > 0 && uint64(c) > dims[i] {
				return nil, fmt.Errorf("chunk dimension %d is %d, exceeds extent %d", i, c, dims[i])
			}
		}
	}

	return p, nil
}

// chunked reports whether the dataset stores chunked. Any filter forces
// chunked storage, since filters apply per chunk.
func (p *datasetPlan) chunked() bool {
	return p.chunkDims != nil || p.hasFilters()
}

func (p *datasetPlan) hasFilters() bool {
	return p.compression != CompressionNone || p.shuffle || p.fletcher32
}

// resolveStorage fixes the dataset's chunk shape and filter pipeline.
// Called once per dataset before any data is written.
func (p *datasetPlan) resolveStorage() {
	if p.chunked() && p.chunkDims == nil {
		p.chunkDims = autoChunkShape(p.dims, p.dtype.Size)
	}
	p.pipelineMsg = p.buildPipeline()
}

// numChunks returns how many chunks the resolved geometry produces.
func (p *datasetPlan) numChunks() uint64 {
	if !p.chunked() {
		return 0
	}
	total := uint64(1)
	for i, d := range p.dims {
		total *= (d + uint64(p.chunkDims[i]) - 1) / uint64(p.chunkDims[i])
	}
	return total
}

// autoChunkShape picks a chunk shape targeting about one MiB per chunk:
// every dimension scales down by the same ratio, clamped to [1, extent].
func autoChunkShape(dims []uint64, elemSize uint32) []uint32 {
	total := uint64(elemSize)
	for _, d := range dims {
		total *= d
	}

	ratio := 1.0
	if total > autoChunkTarget {
		ratio = math.Pow(float64(autoChunkTarget)/float64(total), 1.0/float64(len(dims)))
	}

	chunks := make([]uint32, len(dims))
	for i, d := range dims {
		c := uint64(math.Ceil(float64(d) * ratio))
		if c < 1 {
			c = 1
		}
		if d > 0 && c > d {
			c = d
		}
		if c > math.MaxUint32 {
			c = math.MaxUint32
		}
		chunks[i] = uint32(c)
	}
	return chunks
}

// buildPipeline returns the filter pipeline message, filters in the
// order they run when writing: shuffle, then compression, then
// fletcher32. Returns nil when the dataset is unfiltered.
func (p *datasetPlan) buildPipeline() *message.FilterPipeline {
	if !p.hasFilters() {
		return nil
	}

	var infos []message.FilterInfo
	if p.shuffle {
		infos = append(infos, message.NewShuffleFilter(p.dtype.Size))
	}
	switch p.compression {
	case CompressionGzip:
		infos = append(infos, message.NewDeflateFilter(uint32(p.gzipLevel)))
	case CompressionLZF:
		infos = append(infos, message.NewLZFFilter())
	case CompressionLZ4:
		infos = append(infos, message.NewLZ4Filter())
	}
	if p.fletcher32 {
		infos = append(infos, message.NewFletcher32Filter())
	}
	return message.NewFilterPipeline(infos...)
}

// writeData writes the dataset payload and fills in the layout message:
// contiguous bytes, or filtered chunks plus their B-tree index of rank k.
// Datasets with no elements get an undefined data address.
func (p *datasetPlan) writeData(w *binary.Writer, allocFn func(int64) uint64, k int) error {
	if !p.chunked() {
		if len(p.data) == 0 {
			p.layoutMsg = message.NewContiguousLayout(w.UndefinedOffset(), 0)
			return nil
		}
		addr, err := layout.WriteContiguous(w, allocFn, p.data)
		if err != nil {
			return err
		}
		p.layoutMsg = message.NewContiguousLayout(addr, uint64(len(p.data)))
		return nil
	}

	p.layoutMsg = message.NewChunkedLayout(p.chunkDims, p.dtype.Size)
	if len(p.data) == 0 {
		p.layoutMsg.ChunkIndexAddr = w.UndefinedOffset()
		return nil
	}

	pipeline, err := filter.NewPipeline(p.pipelineMsg)
	if err != nil {
		return err
	}

	cw := layout.NewChunkWriter(w, p.chunkDims, p.dtype.Size, pipeline, allocFn)
	records, err := cw.WriteChunks(p.data, p.dims)
	if err != nil {
		return err
	}
	btreeAddr, err := cw.WriteIndex(records, k)
	if err != nil {
		return err
	}
	p.layoutMsg.ChunkIndexAddr = btreeAddr
	return nil
}

// buildMessages assembles the dataset's object header messages. writeData
// must have run first so the layout message carries real addresses.
func (p *datasetPlan) buildMessages() ([]message.Message, error) {
	var dataspace *message.Dataspace
	if p.scalar {
		dataspace = message.NewScalarDataspace()
	} else {
		dataspace = message.NewDataspace(p.dims, nil)
	}

	allocTime := message.AllocTimeLate
	if p.chunked() {
		allocTime = message.AllocTimeIncremental
	}

	msgs := []message.Message{
		dataspace,
		p.dtype,
		message.NewFillValue(allocTime),
		p.layoutMsg,
	}
	if p.pipelineMsg != nil {
		msgs = append(msgs, p.pipelineMsg)
	}

	attrMsgs, err := attributeMessages(p.attrs)
	if err != nil {
		return nil, err
	}
	return append(msgs, attrMsgs...), nil
}

// attributeMessages builds Attribute messages for a name-keyed value map,
// in name order so header layout does not depend on map iteration.
func attributeMessages(attrs map[string]any) ([]message.Message, error) {
	if len(attrs) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]message.Message, 0, len(names))
	for _, name := range names {
		m, err := createAttributeMessage(name, attrs[name])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// createAttributeMessage builds the Attribute message for one value.
// Strings are stored as fixed-length ASCII cells sized to the longest
// value, matching what h5py emits for a str dtype; everything else
// encodes through the Go-to-datatype mapping of the value itself.
func createAttributeMessage(name string, value any) (*message.Attribute, error) {
	val := reflect.ValueOf(value)
	for val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	if !val.IsValid() {
		return nil, fmt.Errorf("nil attribute value")
	}

	isSlice := val.Kind() == reflect.Slice || val.Kind() == reflect.Array
	switch {
	case val.Kind() == reflect.String:
		return stringAttribute(name, message.NewScalarDataspace(), []string{val.String()})

	case isSlice && val.Type().Elem().Kind() == reflect.String:
		n := val.Len()
		if n == 0 {
			return nil, fmt.Errorf("empty string array not supported")
		}
		values := make([]string, n)
		for i := range values {
			values[i] = val.Index(i).String()
		}
		return stringAttribute(name, message.NewDataspace([]uint64{uint64(n)}, nil), values)
	}

	space := message.NewScalarDataspace()
	elem := val.Type()
	if isSlice {
		space = message.NewDataspace([]uint64{uint64(val.Len())}, nil)
		elem = val.Type().Elem()
	}

	dt, err := dtype.GoTypeToDatatype(elem)
	if err != nil {
		return nil, fmt.Errorf("unsupported attribute type %s: %w", elem, err)
	}
	data, err := dtype.Encode(dt, value)
	if err != nil {
		return nil, fmt.Errorf("encoding attribute value: %w", err)
	}
	return message.NewAttribute(name, dt, space, data), nil
}

// stringAttribute encodes values as fixed-length, null-terminated ASCII
// cells, one per element, sized to the longest value.
func stringAttribute(name string, space *message.Dataspace, values []string) (*message.Attribute, error) {
	width := 1
	for _, s := range values {
		if len(s)+1 > width {
			width = len(s) + 1
		}
	}

	dt := message.NewStringDatatype(uint32(width), message.PadNullTerm, message.CharsetASCII)
	data, err := dtype.Encode(dt, values)
	if err != nil {
		return nil, fmt.Errorf("encoding string attribute: %w", err)
	}
	return message.NewAttribute(name, dt, space, data), nil
}
