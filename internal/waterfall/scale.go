package waterfall

import "math"

// Fallback color scale bounds used when a dataset has no valid samples.
const (
	FallbackMinDB = -130.0
	FallbackMaxDB = 0.0

	// scaleMargin is the fraction of the observed span added on each side.
	scaleMargin = 0.05
)

// ColorScale is the dB range used to normalise power before color mapping.
type ColorScale struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Palette Palette `json:"palette"`
}

// EstimateColorScale scans every slice once and returns the observed range
// widened by 5% of its span on each side. Non-finite samples are ignored.
// With no valid samples the fixed fallback range is returned. A flat dataset
// (every sample equal) is widened by 1 dB on each side so it still normalises.
func EstimateColorScale(src SampleSource, palette Palette) ColorScale {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < src.Len(); i++ {
		for _, s := range src.Samples(i) {
			v := float64(s)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}

	if math.IsInf(lo, 1) {
		return ColorScale{Min: FallbackMinDB, Max: FallbackMaxDB, Palette: palette}
	}

	span := hi - lo
	if span == 0 {
		return ColorScale{Min: lo - 1, Max: hi + 1, Palette: palette}
	}
	margin := span * scaleMargin
	return ColorScale{Min: lo - margin, Max: hi + margin, Palette: palette}
}

// WithPalette returns a copy of the scale using another palette. Bounds are
// independent of the palette and stay unchanged.
func (s ColorScale) WithPalette(p Palette) ColorScale {
	s.Palette = p
	return s
}

// Normalize clamps v to [Min, Max] and rescales it linearly to [0,1].
func (s ColorScale) Normalize(v float64) float64 {
	if s.Max <= s.Min || math.IsNaN(v) {
		return 0
	}
	if v <= s.Min {
		return 0
	}
	if v >= s.Max {
		return 1
	}
	return (v - s.Min) / (s.Max - s.Min)
}
