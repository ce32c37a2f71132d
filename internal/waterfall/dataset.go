package waterfall

import (
	"github.com/banshee-data/capture.gateway/internal/monitoring"
)

var logf = monitoring.Tagged("Waterfall")

// Slice is one power-spectrum frame as delivered by the gateway.
type Slice struct {
	Index      int
	Payload    string
	SampleRate float64
}

// SampleSource is anything that can hand out decoded samples by slice index.
// A nil or empty result means the slice contributes nothing.
type SampleSource interface {
	Len() int
	Samples(i int) []float32
}

// Dataset is an immutable, index-ordered sequence of slices together with
// their decoded samples. Slices whose payload fails to decode keep a nil
// sample array and are skipped by rendering and scale estimation.
type Dataset struct {
	slices  []Slice
	samples [][]float32
	failed  int
	widest  int
}

// NewDataset copies slices, assigns indices in insertion order and decodes
// every payload once. Decode failures are logged and recorded per slice.
func NewDataset(slices []Slice) *Dataset {
	ds := &Dataset{
		slices:  make([]Slice, len(slices)),
		samples: make([][]float32, len(slices)),
	}
	for i, s := range slices {
		s.Index = i
		ds.slices[i] = s

		samples, err := DecodeSlice(s.Payload)
		if err != nil {
			logf("slice %d: decode failed, treating as empty: %v", i, err)
			ds.failed++
			continue
		}
		ds.samples[i] = samples
		if len(samples) > ds.widest {
			ds.widest = len(samples)
		}
	}
	return ds
}

// Len returns the total number of slices.
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.slices)
}

// Slice returns the slice metadata at i.
func (ds *Dataset) Slice(i int) (Slice, bool) {
	if ds == nil || i < 0 || i >= len(ds.slices) {
		return Slice{}, false
	}
	return ds.slices[i], true
}

// Samples returns the decoded samples for slice i, or nil when the slice is
// out of range or failed to decode. Callers must not modify the result.
func (ds *Dataset) Samples(i int) []float32 {
	if ds == nil || i < 0 || i >= len(ds.samples) {
		return nil
	}
	return ds.samples[i]
}

// Failed reports how many slices failed to decode.
func (ds *Dataset) Failed() int {
	if ds == nil {
		return 0
	}
	return ds.failed
}

// MaxSamples returns the widest decoded slice length.
func (ds *Dataset) MaxSamples() int {
	if ds == nil {
		return 0
	}
	return ds.widest
}
