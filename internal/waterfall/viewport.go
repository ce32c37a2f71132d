package waterfall

// DefaultWindowSize is the number of slices visible at once.
const DefaultWindowSize = 100

// ScrollDirection selects which way ScrollWindow pages.
type ScrollDirection int

const (
	// ScrollUp pages towards higher slice indices (rows fill upward).
	ScrollUp ScrollDirection = iota
	// ScrollDown pages towards slice 0.
	ScrollDown
)

// Viewport tracks the contiguous window of visible slice indices and the
// single selected index.
//
// windowStart stays within [0, max(0, total-windowSize)] and selected within
// [0, total) after every operation. Selecting an index always nudges the
// window so the selection is visible; scrolling moves the window by a full
// page and pulls the selection to the nearest window edge if it would fall
// outside.
type Viewport struct {
	total       int
	windowSize  int
	windowStart int
	selected    int
}

// NewViewport creates a viewport over total slices, selecting slice 0.
// A non-positive windowSize uses DefaultWindowSize.
func NewViewport(total, windowSize int) *Viewport {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if total < 0 {
		total = 0
	}
	return &Viewport{total: total, windowSize: windowSize}
}

// Total returns the number of slices in the dataset.
func (v *Viewport) Total() int { return v.total }

// WindowSize returns the fixed window length.
func (v *Viewport) WindowSize() int { return v.windowSize }

// WindowStart returns the first visible slice index.
func (v *Viewport) WindowStart() int { return v.windowStart }

// Selected returns the selected slice index.
func (v *Viewport) Selected() int { return v.selected }

// MaxWindowStart is the largest valid windowStart.
func (v *Viewport) MaxWindowStart() int {
	return max(0, v.total-v.windowSize)
}

// DisplayRows is the row count used for geometry: min(total, windowSize).
func (v *Viewport) DisplayRows() int {
	return min(v.total, v.windowSize)
}

// VisibleRows is the number of rows that map to real slices.
func (v *Viewport) VisibleRows() int {
	return max(0, min(v.windowSize, v.total-v.windowStart))
}

// Contains reports whether slice i lies inside the current window.
func (v *Viewport) Contains(i int) bool {
	return i >= v.windowStart && i < v.windowStart+v.windowSize && i < v.total
}

// SetSelectedIndex selects slice i, clamped to the dataset. If i is outside
// the window, the window moves by the minimal shift that brings it into view.
func (v *Viewport) SetSelectedIndex(i int) {
	if v.total == 0 {
		return
	}
	i = clampInt(i, 0, v.total-1)
	v.selected = i

	if i < v.windowStart {
		v.windowStart = i
	} else if i >= v.windowStart+v.windowSize {
		v.windowStart = i - v.windowSize + 1
	}
	v.windowStart = clampInt(v.windowStart, 0, v.MaxWindowStart())
}

// Step moves the selection by delta. It is a no-op (returning false) when the
// selection is already at the edge in that direction.
func (v *Viewport) Step(delta int) bool {
	if v.total == 0 || delta == 0 {
		return false
	}
	next := clampInt(v.selected+delta, 0, v.total-1)
	if next == v.selected {
		return false
	}
	v.SetSelectedIndex(next)
	return true
}

// ScrollWindow pages the window by windowSize in dir, clamped to the valid
// range. A selection left outside the new window is pulled to its nearest
// edge. It reports whether the window moved.
func (v *Viewport) ScrollWindow(dir ScrollDirection) bool {
	if v.total == 0 {
		return false
	}
	prev := v.windowStart
	switch dir {
	case ScrollUp:
		v.windowStart += v.windowSize
	case ScrollDown:
		v.windowStart -= v.windowSize
	}
	v.windowStart = clampInt(v.windowStart, 0, v.MaxWindowStart())

	last := min(v.windowStart+v.windowSize, v.total) - 1
	if v.selected < v.windowStart {
		v.selected = v.windowStart
	} else if v.selected > last {
		v.selected = last
	}
	return v.windowStart != prev
}

// CanScrollUp reports whether ScrollUp would move the window.
func (v *Viewport) CanScrollUp() bool {
	return v.windowStart < v.MaxWindowStart()
}

// CanScrollDown reports whether ScrollDown would move the window.
func (v *Viewport) CanScrollDown() bool {
	return v.windowStart > 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
