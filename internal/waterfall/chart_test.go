package waterfall

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceChartPoints(t *testing.T) {
	pts := SliceChartPoints([]float32{-10, float32(math.NaN()), -30, -40}, 4000)
	require.Len(t, pts, 3)
	assert.Equal(t, -2000.0, pts[0].X)
	assert.Equal(t, 0.0, pts[1].X)
	assert.Equal(t, -30.0, pts[1].Y)

	pts = SliceChartPoints([]float32{-1, -2}, 0)
	assert.Equal(t, 1.0, pts[1].X, "bin index without sample rate")
}

func TestRenderSliceChartPNG(t *testing.T) {
	samples := make([]float32, 64)
	for i := range samples {
		samples[i] = float32(-100 + i)
	}
	data, err := RenderSliceChart("Slice 3", samples, 2e6, ColorScale{Min: -110, Max: -20})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestRenderSliceChartEmpty(t *testing.T) {
	_, err := RenderSliceChart("empty", []float32{float32(math.NaN())}, 1e6, ColorScale{})
	assert.ErrorIs(t, err, ErrNoSamples)
}
