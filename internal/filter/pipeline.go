package filter

import (
	"fmt"

	"github.com/fennelab/hdf5/internal/message"
)

// Pipeline applies a dataset's filter sequence to chunk data. Slots are
// kept in message order so that bit i of a chunk's filter mask always
// refers to pipeline stage i, even when an optional stage has no
// implementation available.
type Pipeline struct {
	stages []stage
}

type stage struct {
	info message.FilterInfo
	impl Filter // nil when an optional filter is unavailable
}

// NewPipeline creates a filter pipeline from a FilterPipeline message.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	if fp == nil || len(fp.Filters) == 0 {
		return &Pipeline{}, nil
	}

	p := &Pipeline{
		stages: make([]stage, 0, len(fp.Filters)),
	}

	for _, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, fmt.Errorf("creating filter %d: %w", info.ID, err)
		}
		p.stages = append(p.stages, stage{info: info, impl: f})
	}

	return p, nil
}

// Decode applies the filter pipeline to encoded data.
// The filterMask specifies which filters to skip (bit i = skip filter i).
// Filters are applied in reverse order (last filter first).
func (p *Pipeline) Decode(input []byte, filterMask uint32) ([]byte, error) {
	if len(p.stages) == 0 {
		return input, nil
	}

	data := input

	// Apply filters in reverse order
	for i := len(p.stages) - 1; i >= 0; i-- {
		if filterMask&(1<<uint(i)) != 0 {
			continue
		}

		s := &p.stages[i]
		if s.impl == nil {
			return nil, fmt.Errorf("filter %d required by chunk but not available", s.info.ID)
		}

		var err error
		data, err = s.impl.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d decode: %w", s.info.ID, err)
		}
	}

	return data, nil
}

// Encode applies the filter pipeline to raw chunk data in forward order
// and returns the stored bytes plus the chunk's filter mask. An optional
// stage whose output is not meaningfully smaller than its input (at
// least 90% of the original size), or that fails outright, is skipped
// with its mask bit set; the chunk then stores the unfiltered bytes for
// that stage.
func (p *Pipeline) Encode(input []byte) ([]byte, uint32, error) {
	data := input
	var mask uint32

	for i := range p.stages {
		s := &p.stages[i]
		if s.impl == nil {
			return nil, 0, fmt.Errorf("filter %d has no encoder", s.info.ID)
		}

		out, err := s.impl.Encode(data)
		if s.info.IsOptional() {
			if err != nil || len(out)*10 >= len(data)*9 {
				mask |= 1 << uint(i)
				continue
			}
		} else if err != nil {
			return nil, 0, fmt.Errorf("filter %d encode: %w", s.info.ID, err)
		}
		data = out
	}

	return data, mask, nil
}

// Empty returns true if the pipeline has no filters.
func (p *Pipeline) Empty() bool {
	return len(p.stages) == 0
}

// Len returns the number of filters in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.stages)
}
