package viewer

import (
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

// RowSummary is the power envelope of one visible row.
type RowSummary struct {
	Index  int     `json:"index"`
	Valid  bool    `json:"valid"`
	PeakDB float64 `json:"peak_db"`
	MeanDB float64 `json:"mean_db"`
}

// WindowProfile summarises every slice in the visible window, bottom row
// first.
func (v *Visualization) WindowProfile() ([]RowSummary, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return nil, err
	}
	out := make([]RowSummary, 0, v.viewport.VisibleRows())
	for row := 0; row < v.viewport.VisibleRows(); row++ {
		idx := v.viewport.WindowStart() + row
		s, _ := v.dataset.Slice(idx)
		st, ok := waterfall.ComputeSliceStats(v.dataset.Samples(idx), s.SampleRate)
		out = append(out, RowSummary{Index: idx, Valid: ok, PeakDB: st.MaxDB, MeanDB: st.MeanDB})
	}
	return out, nil
}
