package viewer

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

func TestNewRejectsBadGeometry(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = opts.LeftLegendWidth + opts.RightLegendWidth
	_, err := New("cap", opts)
	assert.ErrorIs(t, err, waterfall.ErrInvalidGeometry)
}

func TestLoadReady(t *testing.T) {
	v, _ := loadedViz(t, 250)
	s := v.State()

	assert.Equal(t, StateReady, s.Status)
	assert.Equal(t, 250, s.TotalSlices)
	assert.Equal(t, 0, s.SelectedIndex)
	assert.Equal(t, 1, s.IndexInput)
	assert.Equal(t, 100, s.WindowSize)
	assert.Equal(t, 4.0, s.RowHeight)
	assert.True(t, s.CanScrollUp)
	assert.False(t, s.CanScrollDown)
	assert.False(t, s.Playing)
	assert.Equal(t, waterfall.PaletteViridis, s.Palette)

	// ramp spans -100 .. -100+249+15
	span := 264.0
	assert.InDelta(t, -100-0.05*span, s.Scale.Min, 1e-9)
	assert.InDelta(t, 164+0.05*span, s.Scale.Max, 1e-9)
}

func TestLoadFailureLeavesEmptyFailedState(t *testing.T) {
	v, err := New("cap", testOptions(newClock()))
	require.NoError(t, err)

	loadErr := &gateway.APIError{StatusCode: http.StatusNotFound}
	err = v.Load(context.Background(), &fakeFetcher{err: loadErr})
	require.Error(t, err)

	s := v.State()
	assert.Equal(t, StateFailed, s.Status)
	assert.Equal(t, "Capture not found or you do not have permission to view it.", s.Error)
	assert.Equal(t, 0, s.TotalSlices)

	_, err = v.Frame()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = v.Click(10)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, v.Play(), ErrNotReady)
}

func TestReloadReplacesDatasetWholesale(t *testing.T) {
	v, _ := loadedViz(t, 250)
	require.NoError(t, v.Select(200))
	require.NoError(t, v.LoadEntries(rampEntries(5, 4, 0)))

	s := v.State()
	assert.Equal(t, 5, s.TotalSlices)
	assert.Equal(t, 0, s.SelectedIndex)
	assert.Equal(t, 0, s.WindowStart)
}

func TestAllSlicesFailingUsesFallbackScale(t *testing.T) {
	v, err := New("cap", testOptions(newClock()))
	require.NoError(t, err)
	defer v.Close()
	require.NoError(t, v.LoadEntries([]gateway.WaterfallEntry{{Data: "###"}, {Data: "@@"}}))

	s := v.State()
	assert.Equal(t, StateReady, s.Status)
	assert.Equal(t, 2, s.FailedSlices)
	assert.Equal(t, waterfall.FallbackMinDB, s.Scale.Min)
	assert.Equal(t, waterfall.FallbackMaxDB, s.Scale.Max)

	_, err = v.FramePNG()
	assert.NoError(t, err)
}

func TestFramePNGIsRepeatable(t *testing.T) {
	v, _ := loadedViz(t, 120)

	first, err := v.FramePNG()
	require.NoError(t, err)
	second, err := v.FramePNG()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	img, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, 1000, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestResizeKeepsViewport(t *testing.T) {
	v, _ := loadedViz(t, 250)
	require.NoError(t, v.Select(180))
	before := v.State()

	require.NoError(t, v.Resize(800, 200))
	after := v.State()
	assert.Equal(t, before.WindowStart, after.WindowStart)
	assert.Equal(t, before.SelectedIndex, after.SelectedIndex)
	assert.Equal(t, 2.0, after.RowHeight)
	assert.Greater(t, after.Version, before.Version)

	assert.ErrorIs(t, v.Resize(100, 200), waterfall.ErrInvalidGeometry)
	assert.Equal(t, 800, v.State().Width)
}

func TestSetPaletteKeepsBounds(t *testing.T) {
	v, _ := loadedViz(t, 20)
	before := v.State().Scale

	assert.Equal(t, waterfall.PaletteMagma, v.SetPalette("magma"))
	after := v.State().Scale
	assert.Equal(t, before.Min, after.Min)
	assert.Equal(t, before.Max, after.Max)
	assert.Equal(t, waterfall.PaletteMagma, after.Palette)

	assert.Equal(t, waterfall.DefaultPalette, v.SetPalette("no-such-palette"))
}

func TestCloseReleasesAndIsIdempotent(t *testing.T) {
	v, _ := loadedViz(t, 10)
	require.NoError(t, v.Play())
	v.Close()
	v.Close()

	s := v.State()
	assert.Equal(t, StateClosed, s.Status)
	assert.False(t, s.Playing)
	assert.Equal(t, 0, s.TotalSlices)
	assert.True(t, errors.Is(v.Play(), ErrNotReady))
	assert.ErrorIs(t, v.Load(context.Background(), &fakeFetcher{}), ErrNotReady)
}

func TestWindowProfile(t *testing.T) {
	v, _ := loadedViz(t, 150)
	_, err := v.Scroll(waterfall.ScrollUp)
	require.NoError(t, err)

	rows, err := v.WindowProfile()
	require.NoError(t, err)
	require.Len(t, rows, 100)
	assert.Equal(t, 50, rows[0].Index)
	assert.True(t, rows[0].Valid)
	// slice 50 spans -50 .. -35
	assert.Equal(t, -35.0, rows[0].PeakDB)
	assert.InDelta(t, -42.5, rows[0].MeanDB, 1e-9)
}

func TestResizeRejectsOversizedCanvas(t *testing.T) {
	opts := testOptions(newClock())
	opts.MaxWidth, opts.MaxHeight = 1200, 600
	v, err := New("cap", opts)
	require.NoError(t, err)
	defer v.Close()

	assert.ErrorIs(t, v.Resize(1201, 200), waterfall.ErrInvalidGeometry)
	assert.ErrorIs(t, v.Resize(800, 601), waterfall.ErrInvalidGeometry)
	assert.ErrorIs(t, v.Resize(1<<30, 1<<30), waterfall.ErrInvalidGeometry)
	assert.Equal(t, 1000, v.State().Width)

	require.NoError(t, v.Resize(1200, 600))
	assert.Equal(t, 1200, v.State().Width)
}

func TestNewRejectsCanvasAboveMaximum(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWidth = 500
	_, err := New("cap", opts)
	assert.ErrorIs(t, err, waterfall.ErrInvalidGeometry)
}
