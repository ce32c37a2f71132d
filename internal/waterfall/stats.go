package waterfall

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SliceStats summarises one decoded slice for the selected-slice readout.
type SliceStats struct {
	Samples      int     `json:"samples"`
	Valid        int     `json:"valid"`
	MinDB        float64 `json:"min_db"`
	MaxDB        float64 `json:"max_db"`
	MeanDB       float64 `json:"mean_db"`
	MedianDB     float64 `json:"median_db"`
	StdDevDB     float64 `json:"stddev_db"`
	NoiseFloorDB float64 `json:"noise_floor_db"`
	PeakBin      int     `json:"peak_bin"`
	PeakOffsetHz float64 `json:"peak_offset_hz"`
}

// noiseFloorQuantile is the quantile reported as the slice's noise floor.
const noiseFloorQuantile = 0.1

// ComputeSliceStats summarises samples. It reports false when the slice has
// no finite samples.
func ComputeSliceStats(samples []float32, sampleRate float64) (SliceStats, bool) {
	st := SliceStats{Samples: len(samples)}

	values := make([]float64, 0, len(samples))
	bins := make([]int, 0, len(samples))
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		values = append(values, v)
		bins = append(bins, i)
	}
	st.Valid = len(values)
	if st.Valid == 0 {
		return st, false
	}

	peak := floats.MaxIdx(values)
	st.PeakBin = bins[peak]
	st.PeakOffsetHz = BinOffsetHz(st.PeakBin, len(samples), sampleRate)
	st.MaxDB = values[peak]
	st.MinDB = floats.Min(values)
	st.MeanDB, st.StdDevDB = stat.MeanStdDev(values, nil)
	if st.Valid < 2 {
		st.StdDevDB = 0
	}

	sort.Float64s(values)
	st.MedianDB = stat.Quantile(0.5, stat.Empirical, values, nil)
	st.NoiseFloorDB = stat.Quantile(noiseFloorQuantile, stat.Empirical, values, nil)
	return st, true
}

// BinOffsetHz returns the frequency offset of bin within an n-bin spectrum
// centred on the tuned frequency, spanning [-fs/2, +fs/2).
func BinOffsetHz(bin, n int, sampleRate float64) float64 {
	if n <= 0 || sampleRate <= 0 {
		return 0
	}
	return float64(bin)*sampleRate/float64(n) - sampleRate/2
}
