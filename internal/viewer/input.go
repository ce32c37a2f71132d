package viewer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

// Key is a navigation key understood by HandleKey.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyPageUp
	KeyPageDown
)

// ParseKey accepts DOM key names ("ArrowUp", "PageDown") and their short
// forms ("up", "pagedown"), case-insensitively.
func ParseKey(name string) Key {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "arrowup", "up":
		return KeyUp
	case "arrowdown", "down":
		return KeyDown
	case "arrowleft", "left":
		return KeyLeft
	case "arrowright", "right":
		return KeyRight
	case "pageup":
		return KeyPageUp
	case "pagedown":
		return KeyPageDown
	}
	return KeyNone
}

// Cursor affordances reported by Hover.
const (
	CursorPointer = "pointer"
	CursorDefault = "default"
)

// HoverInfo describes what lies under the pointer. Hover never changes state.
type HoverInfo struct {
	Slice  int    `json:"slice"`
	Valid  bool   `json:"valid"`
	Cursor string `json:"cursor"`
}

// Hover maps pixel row y to the slice under it.
func (v *Visualization) Hover(y int) (HoverInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return HoverInfo{}, err
	}
	idx, ok := v.renderer.SliceAt(v.viewport, y)
	if !ok {
		return HoverInfo{Slice: -1, Cursor: CursorDefault}, nil
	}
	return HoverInfo{Slice: idx, Valid: true, Cursor: CursorPointer}, nil
}

// Click selects the slice drawn at pixel row y. Clicks that land outside the
// dataset are ignored and report false.
func (v *Visualization) Click(y int) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return false, err
	}
	idx, ok := v.renderer.SliceAt(v.viewport, y)
	if !ok {
		return false, nil
	}
	v.viewport.SetSelectedIndex(idx)
	v.redrawLocked()
	return true, nil
}

// HandleKey applies a navigation key: Up/Left step back one slice, Down/Right
// step forward, PageUp/PageDown scroll the window. It reports whether state
// changed; unknown keys are ignored.
func (v *Visualization) HandleKey(k Key) (bool, error) {
	switch k {
	case KeyUp, KeyLeft:
		return v.Decrement()
	case KeyDown, KeyRight:
		return v.Increment()
	case KeyPageUp:
		return v.Scroll(waterfall.ScrollUp)
	case KeyPageDown:
		return v.Scroll(waterfall.ScrollDown)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return false, v.readyLocked()
}

// Increment selects the next slice. At the last slice it is a no-op.
func (v *Visualization) Increment() (bool, error) { return v.step(1) }

// Decrement selects the previous slice. At slice 0 it is a no-op.
func (v *Visualization) Decrement() (bool, error) { return v.step(-1) }

func (v *Visualization) step(delta int) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return false, err
	}
	moved := v.viewport.Step(delta)
	if moved {
		v.redrawLocked()
	}
	return moved, nil
}

// Scroll pages the window in dir.
func (v *Visualization) Scroll(dir waterfall.ScrollDirection) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return false, err
	}
	moved := v.viewport.ScrollWindow(dir)
	if moved {
		v.redrawLocked()
	}
	return moved, nil
}

// Select sets the selection from the 0-based slider value, clamped to the
// dataset.
func (v *Visualization) Select(index int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	v.viewport.SetSelectedIndex(index)
	v.redrawLocked()
	return nil
}

// SetIndexInput applies the 1-based index field. Non-numeric or out-of-range
// input is rejected without touching state. The returned value is what the
// field should show afterwards: the 1-based current selection.
func (v *Visualization) SetIndexInput(text string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return 0, err
	}
	current := v.viewport.Selected() + 1

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return current, fmt.Errorf("%w: %q is not a number", ErrInvalidIndex, text)
	}
	if n < 1 || n > v.viewport.Total() {
		return current, fmt.Errorf("%w: %d is outside 1..%d", ErrInvalidIndex, n, v.viewport.Total())
	}
	v.viewport.SetSelectedIndex(n - 1)
	v.redrawLocked()
	return n, nil
}

// Play starts playback from the current selection.
func (v *Visualization) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	v.playback.Play()
	return nil
}

// Pause stops playback. Pausing when idle is a no-op.
func (v *Visualization) Pause() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return err
	}
	v.playback.Pause()
	return nil
}

// TogglePlayback flips between playing and paused, reporting the new state.
func (v *Visualization) TogglePlayback() (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return false, err
	}
	if v.playback.Playing() {
		v.playback.Pause()
	} else {
		v.playback.Play()
	}
	return v.playback.Playing(), nil
}

// SetRate changes the playback rate in slices per second. Rates above the
// configured maximum are rejected. The rate is kept across reloads.
func (v *Visualization) SetRate(rate float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if rate > v.opts.MaxRate {
		return fmt.Errorf("%w: %v exceeds maximum %v", waterfall.ErrInvalidRate, rate, v.opts.MaxRate)
	}
	if err := waterfall.ValidateRate(rate); err != nil {
		return err
	}
	if v.playback != nil {
		if err := v.playback.SetRate(rate); err != nil {
			return err
		}
	}
	v.rate = rate
	return nil
}

// SelectedSlice is a copy of the selected slice's data.
type SelectedSlice struct {
	Index      int
	SampleRate float64
	Samples    []float32
	Scale      waterfall.ColorScale
}

// Selected returns a copy of the selected slice's samples.
func (v *Visualization) Selected() (SelectedSlice, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return SelectedSlice{}, err
	}
	if v.viewport.Total() == 0 {
		return SelectedSlice{}, waterfall.ErrNoSamples
	}
	idx := v.viewport.Selected()
	s, _ := v.dataset.Slice(idx)
	return SelectedSlice{
		Index:      idx,
		SampleRate: s.SampleRate,
		Samples:    append([]float32(nil), v.dataset.Samples(idx)...),
		Scale:      v.scale,
	}, nil
}

// SelectedStats summarises the selected slice.
func (v *Visualization) SelectedStats() (int, waterfall.SliceStats, error) {
	sel, err := v.Selected()
	if err != nil {
		return 0, waterfall.SliceStats{}, err
	}
	st, ok := waterfall.ComputeSliceStats(sel.Samples, sel.SampleRate)
	if !ok {
		return sel.Index, st, waterfall.ErrNoSamples
	}
	return sel.Index, st, nil
}

// SliceChartPNG plots the selected slice's spectrum. The chart is drawn
// outside the lock from a copy of the samples.
func (v *Visualization) SliceChartPNG() ([]byte, error) {
	sel, err := v.Selected()
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("%s slice %d", v.captureID, sel.Index)
	return waterfall.RenderSliceChart(title, sel.Samples, sel.SampleRate, sel.Scale)
}
