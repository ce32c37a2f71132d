package waterfall

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoSamples is returned when a slice has nothing to chart.
var ErrNoSamples = errors.New("slice has no valid samples")

// Chart dimensions for the selected-slice spectrum PNG.
const (
	sliceChartWidth  = 10 * vg.Inch
	sliceChartHeight = 4 * vg.Inch
)

// SliceChartPoints converts samples to (frequency offset, dB) points,
// skipping non-finite values. Without a sample rate the x axis is the bin.
func SliceChartPoints(samples []float32, sampleRate float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(samples))
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x := float64(i)
		if sampleRate > 0 {
			x = BinOffsetHz(i, len(samples), sampleRate)
		}
		pts = append(pts, plotter.XY{X: x, Y: v})
	}
	return pts
}

// RenderSliceChart plots one slice's power spectrum and returns PNG bytes.
// The y axis is pinned to the dataset color scale so charts of different
// slices are comparable.
func RenderSliceChart(title string, samples []float32, sampleRate float64, scale ColorScale) ([]byte, error) {
	pts := SliceChartPoints(samples, sampleRate)
	if len(pts) == 0 {
		return nil, ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Bin"
	if sampleRate > 0 {
		p.X.Label.Text = "Frequency offset (Hz)"
	}
	p.Y.Label.Text = "Power (dB)"
	if scale.Max > scale.Min {
		p.Y.Min = scale.Min
		p.Y.Max = scale.Max
	}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = scale.Palette.Color(0.75)
	p.Add(line)

	wt, err := p.WriterTo(sliceChartWidth, sliceChartHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create chart writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
