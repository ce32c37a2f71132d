package waterfall

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return math.NaN() }

// memSource is an in-memory SampleSource.
type memSource [][]float32

func (m memSource) Len() int { return len(m) }
func (m memSource) Samples(i int) []float32 {
	if i < 0 || i >= len(m) {
		return nil
	}
	return m[i]
}

func TestEstimateColorScaleMargin(t *testing.T) {
	src := memSource{{-10, -3}, {0, 5}, nil}
	got := EstimateColorScale(src, PaletteJet)

	assert.InDelta(t, -10.75, got.Min, 1e-9)
	assert.InDelta(t, 5.75, got.Max, 1e-9)
	assert.Equal(t, PaletteJet, got.Palette)
}

func TestEstimateColorScaleSkipsNonFinite(t *testing.T) {
	src := memSource{{float32(math.NaN()), -20, float32(math.Inf(1))}, {-10}}
	got := EstimateColorScale(src, DefaultPalette)

	assert.InDelta(t, -20.5, got.Min, 1e-9)
	assert.InDelta(t, -9.5, got.Max, 1e-9)
}

func TestEstimateColorScaleFallback(t *testing.T) {
	for name, src := range map[string]SampleSource{
		"empty":        memSource{},
		"all failed":   memSource{nil, nil},
		"all nan":      memSource{{float32(math.NaN())}},
		"nil dataset":  (*Dataset)(nil),
		"decode fails": NewDataset([]Slice{{Payload: "@@"}}),
	} {
		got := EstimateColorScale(src, DefaultPalette)
		assert.Equal(t, FallbackMinDB, got.Min, name)
		assert.Equal(t, FallbackMaxDB, got.Max, name)
	}
}

func TestEstimateColorScaleFlat(t *testing.T) {
	got := EstimateColorScale(memSource{{-50, -50}}, DefaultPalette)
	assert.Equal(t, -51.0, got.Min)
	assert.Equal(t, -49.0, got.Max)
}

func TestWithPaletteKeepsBounds(t *testing.T) {
	s := ColorScale{Min: -80, Max: -20, Palette: PaletteViridis}
	got := s.WithPalette(PaletteMagma)
	assert.Equal(t, -80.0, got.Min)
	assert.Equal(t, -20.0, got.Max)
	assert.Equal(t, PaletteMagma, got.Palette)
	assert.Equal(t, PaletteViridis, s.Palette)
}

func TestNormalize(t *testing.T) {
	s := ColorScale{Min: -100, Max: 0}
	tests := []struct {
		in, want float64
	}{
		{-150, 0},
		{-100, 0},
		{-50, 0.5},
		{0, 1},
		{20, 1},
		{nan(), 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, s.Normalize(tt.in), 1e-12, "in=%v", tt.in)
	}

	require.Equal(t, 0.0, ColorScale{Min: 1, Max: 1}.Normalize(1))
}
