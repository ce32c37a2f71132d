// Package viewer hosts waterfall visualizations: one owned context object per
// viewer session that loads a capture's dataset and maps user input onto the
// waterfall engine.
package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/monitoring"
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

var logf = monitoring.Tagged("Waterfall")

var (
	// ErrNotReady is returned by operations that need a loaded dataset.
	ErrNotReady = errors.New("visualization is not ready")
	// ErrInvalidIndex is returned for rejected index input.
	ErrInvalidIndex = errors.New("invalid slice index")
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("session not found")
)

// LoadState is the lifecycle of a visualization.
type LoadState string

const (
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateFailed  LoadState = "failed"
	StateClosed  LoadState = "closed"
)

// Fetcher downloads a capture's waterfall slices.
type Fetcher interface {
	FetchWaterfall(ctx context.Context, captureID string) ([]gateway.WaterfallEntry, error)
}

// Visualization is the orchestrator for one capture. Every exported method
// takes mu, and so does the playback ticker, so state changes are applied one
// at a time.
type Visualization struct {
	mu sync.Mutex

	captureID string
	opts      Options
	state     LoadState
	loadErr   error

	dataset  *waterfall.Dataset
	viewport *waterfall.Viewport
	scale    waterfall.ColorScale
	renderer *waterfall.Renderer
	playback *waterfall.PlaybackController

	palette waterfall.Palette
	rate    float64
	version uint64
}

// New validates the canvas geometry and returns a visualization in the
// loading state. Geometry errors surface here, before any control is wired.
func New(captureID string, opts Options) (*Visualization, error) {
	if opts.WindowSize <= 0 {
		opts.WindowSize = waterfall.DefaultWindowSize
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	if opts.MaxRate < opts.Rate {
		opts.MaxRate = opts.Rate
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxCanvasSize
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultMaxCanvasSize
	}
	if err := opts.checkCanvas(opts.Width, opts.Height); err != nil {
		return nil, err
	}
	r, err := waterfall.NewRenderer(opts.Width, opts.Height, opts.LeftLegendWidth, opts.RightLegendWidth)
	if err != nil {
		return nil, err
	}
	return &Visualization{
		captureID: captureID,
		opts:      opts,
		state:     StateLoading,
		renderer:  r,
		palette:   opts.Palette,
		rate:      opts.Rate,
	}, nil
}

// CaptureID returns the capture this visualization shows.
func (v *Visualization) CaptureID() string { return v.captureID }

// Load fetches the dataset and installs it. The fetch runs without holding
// the lock so State keeps answering "loading" meanwhile. A failed fetch leaves
// the visualization empty in the failed state.
func (v *Visualization) Load(ctx context.Context, f Fetcher) error {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return ErrNotReady
	}
	v.state = StateLoading
	v.mu.Unlock()

	entries, err := f.FetchWaterfall(ctx, v.captureID)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return ErrNotReady
	}
	if err != nil {
		v.releaseLocked()
		v.state = StateFailed
		v.loadErr = err
		logf("capture %s: load failed: %v", v.captureID, err)
		return err
	}
	return v.installLocked(entries)
}

// LoadEntries installs an already-fetched dataset, replacing any previous one.
func (v *Visualization) LoadEntries(entries []gateway.WaterfallEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return ErrNotReady
	}
	return v.installLocked(entries)
}

func (v *Visualization) installLocked(entries []gateway.WaterfallEntry) error {
	slices := make([]waterfall.Slice, len(entries))
	for i, e := range entries {
		slices[i] = waterfall.Slice{Payload: e.Data, SampleRate: e.SampleRate}
	}
	ds := waterfall.NewDataset(slices)
	vp := waterfall.NewViewport(ds.Len(), v.opts.WindowSize)
	// Frames are rendered on request, so a tick only invalidates the current
	// one by bumping the version.
	pc, err := waterfall.NewPlaybackController(v.opts.Clock, &v.mu, vp, v.rate, v.redrawLocked)
	if err != nil {
		return err
	}

	v.releaseLocked()
	v.dataset = ds
	v.viewport = vp
	v.playback = pc
	v.scale = waterfall.EstimateColorScale(ds, v.palette)
	v.state = StateReady
	v.loadErr = nil
	v.redrawLocked()

	if ds.Len() > 0 && ds.Failed() == ds.Len() {
		logf("capture %s: all %d slices failed to decode, using fallback scale", v.captureID, ds.Len())
	}
	logf("capture %s: loaded %d slices (%d failed), scale [%.2f, %.2f] dB",
		v.captureID, ds.Len(), ds.Failed(), v.scale.Min, v.scale.Max)
	return nil
}

// releaseLocked stops playback and drops the dataset and sample buffers.
func (v *Visualization) releaseLocked() {
	if v.playback != nil {
		v.playback.Close()
		v.playback = nil
	}
	v.dataset = nil
	v.viewport = nil
}

// redrawLocked marks the current frame stale; the next Frame call renders it.
func (v *Visualization) redrawLocked() { v.version++ }

func (v *Visualization) readyLocked() error {
	if v.state != StateReady {
		return fmt.Errorf("%w (state %s)", ErrNotReady, v.state)
	}
	return nil
}

// Close stops playback and releases the dataset. It is idempotent.
func (v *Visualization) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return
	}
	v.releaseLocked()
	v.state = StateClosed
}

// Snapshot is the externally visible state, the Go analogue of the bound
// controls: slider, index field, scroll buttons, play button and dropdowns.
type Snapshot struct {
	SessionID     string               `json:"session_id,omitempty"`
	CaptureID     string               `json:"capture_id"`
	Status        LoadState            `json:"status"`
	Error         string               `json:"error,omitempty"`
	TotalSlices   int                  `json:"total_slices"`
	FailedSlices  int                  `json:"failed_slices"`
	WindowStart   int                  `json:"window_start"`
	WindowSize    int                  `json:"window_size"`
	SelectedIndex int                  `json:"selected_index"`
	IndexInput    int                  `json:"index_input"`
	CanScrollUp   bool                 `json:"can_scroll_up"`
	CanScrollDown bool                 `json:"can_scroll_down"`
	Playing       bool                 `json:"playing"`
	Rate          float64              `json:"rate"`
	MaxRate       float64              `json:"max_rate"`
	Palette       waterfall.Palette    `json:"palette"`
	Scale         waterfall.ColorScale `json:"scale"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	RowHeight     float64              `json:"row_height"`
	Version       uint64               `json:"version"`
}

// State returns a snapshot of the current state.
func (v *Visualization) State() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := Snapshot{
		CaptureID:  v.captureID,
		Status:     v.state,
		WindowSize: v.opts.WindowSize,
		Rate:       v.rate,
		MaxRate:    v.opts.MaxRate,
		Palette:    v.palette,
		Scale:      v.scale,
		Width:      v.renderer.Width,
		Height:     v.renderer.Height,
		Version:    v.version,
	}
	if v.loadErr != nil {
		s.Error = gateway.UserMessage(v.loadErr)
	}
	if v.viewport != nil {
		s.TotalSlices = v.viewport.Total()
		s.FailedSlices = v.dataset.Failed()
		s.WindowStart = v.viewport.WindowStart()
		s.SelectedIndex = v.viewport.Selected()
		s.IndexInput = v.viewport.Selected() + 1
		s.CanScrollUp = v.viewport.CanScrollUp()
		s.CanScrollDown = v.viewport.CanScrollDown()
		s.RowHeight = v.renderer.RowHeight(v.viewport)
	}
	if v.playback != nil {
		s.Playing = v.playback.Playing()
	}
	return s
}

// Frame renders the current window into a fresh raster.
func (v *Visualization) Frame() (*image.RGBA, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return nil, err
	}
	return v.renderer.Render(v.viewport, v.dataset, v.scale), nil
}

// WritePNG renders the current frame as PNG to w.
func (v *Visualization) WritePNG(w io.Writer) error {
	img, err := v.Frame()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// FramePNG renders the current frame as PNG bytes.
func (v *Visualization) FramePNG() ([]byte, error) {
	img, err := v.Frame()
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resize swaps the canvas geometry. The viewport is left untouched; only row
// and column geometry change. Canvases above the configured maximum are
// rejected with ErrInvalidGeometry.
func (v *Visualization) Resize(width, height int) error {
	if err := v.opts.checkCanvas(width, height); err != nil {
		return err
	}
	r, err := waterfall.NewRenderer(width, height, v.opts.LeftLegendWidth, v.opts.RightLegendWidth)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renderer = r
	v.redrawLocked()
	return nil
}

// SetPalette switches the palette by name. Unknown names select the default
// palette. The scale bounds are kept.
func (v *Visualization) SetPalette(name string) waterfall.Palette {
	p := waterfall.PaletteByName(name)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.palette = p
	v.scale = v.scale.WithPalette(p)
	v.redrawLocked()
	return p
}
