package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/capture.gateway/internal/httputil"
	"github.com/banshee-data/capture.gateway/internal/viewer"
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

// handleSliceHTML renders an interactive page with the selected slice's
// spectrum and the peak/mean profile of the visible window.
func (s *Server) handleSliceHTML(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	sel, err := sess.Selected()
	if err != nil {
		s.writeError(w, err)
		return
	}
	rows, err := sess.WindowProfile()
	if err != nil {
		s.writeError(w, err)
		return
	}

	page := components.NewPage()
	page.AddCharts(sliceLineChart(sess.CaptureID(), sel), windowProfileChart(rows, sel.Scale))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func sliceLineChart(captureID string, sel viewer.SelectedSlice) *charts.Line {
	pts := waterfall.SliceChartPoints(sel.Samples, sel.SampleRate)
	x := make([]string, 0, len(pts))
	y := make([]opts.LineData, 0, len(pts))
	for _, p := range pts {
		x = append(x, fmt.Sprintf("%.0f", p.X))
		y = append(y, opts.LineData{Value: p.Y})
	}

	xName := "Bin"
	if sel.SampleRate > 0 {
		xName = "Offset (Hz)"
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Selected slice", Subtitle: fmt.Sprintf("capture=%s index=%d samples=%d", captureID, sel.Index, len(sel.Samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dB", Min: sel.Scale.Min, Max: sel.Scale.Max}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(x).AddSeries("power", y)
	return line
}

func windowProfileChart(rows []viewer.RowSummary, scale waterfall.ColorScale) *charts.Line {
	x := make([]string, 0, len(rows))
	peak := make([]opts.LineData, 0, len(rows))
	mean := make([]opts.LineData, 0, len(rows))
	for _, r := range rows {
		x = append(x, fmt.Sprintf("%d", r.Index))
		if !r.Valid || math.IsNaN(r.PeakDB) {
			peak = append(peak, opts.LineData{Value: "-"})
			mean = append(mean, opts.LineData{Value: "-"})
			continue
		}
		peak = append(peak, opts.LineData{Value: r.PeakDB})
		mean = append(mean, opts.LineData{Value: r.MeanDB})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Visible window", Subtitle: fmt.Sprintf("rows=%d", len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slice", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dB", Min: scale.Min, Max: scale.Max}),
	)
	line.SetXAxis(x).
		AddSeries("peak", peak).
		AddSeries("mean", mean)
	return line
}
