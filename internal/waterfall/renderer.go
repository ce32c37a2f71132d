package waterfall

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// indexLabelEvery labels every Nth row in the left legend.
	indexLabelEvery = 5
	// dbTickStep is the spacing of the color legend's dB labels.
	dbTickStep    = 20.0
	colorBarWidth = 14
	legendPad     = 4
)

var (
	backgroundColor = color.RGBA{16, 16, 20, 255}
	legendTextColor = color.RGBA{210, 210, 210, 255}
	selectedColor   = color.RGBA{255, 255, 255, 255}
	selectedText    = color.RGBA{255, 220, 0, 255}
)

// ErrInvalidGeometry is returned for canvases that cannot host the plot.
var ErrInvalidGeometry = errors.New("invalid canvas geometry")

// Renderer draws a viewport onto a raster. Row 0 of the window sits at the
// bottom of the canvas and rows fill upward.
type Renderer struct {
	Width            int
	Height           int
	LeftLegendWidth  int
	RightLegendWidth int
}

// NewRenderer validates the geometry and returns a renderer.
func NewRenderer(width, height, leftLegend, rightLegend int) (*Renderer, error) {
	r := &Renderer{Width: width, Height: height, LeftLegendWidth: leftLegend, RightLegendWidth: rightLegend}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the canvas leaves a positive plot area.
func (r *Renderer) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidGeometry, r.Width, r.Height)
	}
	if r.LeftLegendWidth < 0 || r.RightLegendWidth < 0 {
		return fmt.Errorf("%w: negative legend width", ErrInvalidGeometry)
	}
	if r.PlotWidth() <= 0 {
		return fmt.Errorf("%w: legends (%d+%d) fill canvas width %d",
			ErrInvalidGeometry, r.LeftLegendWidth, r.RightLegendWidth, r.Width)
	}
	return nil
}

// PlotWidth is the horizontal space between the two legends.
func (r *Renderer) PlotWidth() int {
	return r.Width - r.LeftLegendWidth - r.RightLegendWidth
}

// RowHeight is canvasHeight / min(total, windowSize), or 0 for an empty dataset.
func (r *Renderer) RowHeight(vp *Viewport) float64 {
	rows := vp.DisplayRows()
	if rows == 0 {
		return 0
	}
	return float64(r.Height) / float64(rows)
}

// SampleWidth is the horizontal width of one sample in a slice of n samples.
func (r *Renderer) SampleWidth(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(r.PlotWidth()) / float64(n)
}

// SliceAt maps a pixel row y to the slice drawn there. Pixel y covers
// [y, y+1), so the bottom pixel row is y = Height-1.
func (r *Renderer) SliceAt(vp *Viewport, y int) (int, bool) {
	rowH := r.RowHeight(vp)
	if rowH == 0 || y < 0 || y >= r.Height {
		return 0, false
	}
	row := int(math.Floor(float64(r.Height-1-y) / rowH))
	if row < 0 || row >= vp.WindowSize() {
		return 0, false
	}
	idx := vp.WindowStart() + row
	if idx < 0 || idx >= vp.Total() {
		return 0, false
	}
	return idx, true
}

// rowBounds returns the pixel span [y0, y1) of window row.
func (r *Renderer) rowBounds(row int, rowH float64) (int, int) {
	y0 := int(math.Round(float64(r.Height) - float64(row+1)*rowH))
	y1 := int(math.Round(float64(r.Height) - float64(row)*rowH))
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return y0, y1
}

// Render draws the visible window into a fresh raster. It reads the viewport,
// the samples and the scale but mutates none of them, so repeated calls for
// the same state produce identical images.
func (r *Renderer) Render(vp *Viewport, src SampleSource, scale ColorScale) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	rowH := r.RowHeight(vp)
	if rowH > 0 {
		r.drawRows(img, vp, src, scale, rowH)
		r.drawSelection(img, vp, rowH)
		r.drawIndexLegend(img, vp, rowH)
	}
	r.drawColorLegend(img, scale)
	return img
}

func (r *Renderer) drawRows(img *image.RGBA, vp *Viewport, src SampleSource, scale ColorScale, rowH float64) {
	left := r.LeftLegendWidth
	for row := 0; row < vp.VisibleRows(); row++ {
		samples := src.Samples(vp.WindowStart() + row)
		if len(samples) == 0 {
			continue
		}
		y0, y1 := r.rowBounds(row, rowH)
		sw := r.SampleWidth(len(samples))
		for j, s := range samples {
			v := float64(s)
			if math.IsNaN(v) {
				continue
			}
			x0 := left + int(float64(j)*sw)
			x1 := left + int(float64(j+1)*sw)
			if x1 <= x0 {
				x1 = x0 + 1
			}
			c := scale.Palette.Color(scale.Normalize(v))
			fillRect(img, image.Rect(x0, y0, x1, y1), c)
		}
	}
}

func (r *Renderer) drawSelection(img *image.RGBA, vp *Viewport, rowH float64) {
	sel := vp.Selected()
	if !vp.Contains(sel) {
		return
	}
	y0, y1 := r.rowBounds(sel-vp.WindowStart(), rowH)
	rect := image.Rect(r.LeftLegendWidth, y0, r.LeftLegendWidth+r.PlotWidth(), y1)
	strokeRect(img, rect, selectedColor)
}

func (r *Renderer) drawIndexLegend(img *image.RGBA, vp *Viewport, rowH float64) {
	face := basicfont.Face7x13
	for row := 0; row < vp.VisibleRows(); row++ {
		idx := vp.WindowStart() + row
		isSelected := idx == vp.Selected()
		if row%indexLabelEvery != 0 && !isSelected {
			continue
		}
		label := strconv.Itoa(idx)
		y0, y1 := r.rowBounds(row, rowH)
		baseline := (y0+y1)/2 + face.Ascent/2
		x := r.LeftLegendWidth - legendPad - font.MeasureString(face, label).Round()
		c := legendTextColor
		if isSelected {
			c = selectedText
		}
		drawText(img, face, x, baseline, label, c)
	}
}

func (r *Renderer) drawColorLegend(img *image.RGBA, scale ColorScale) {
	if r.RightLegendWidth < colorBarWidth+legendPad {
		return
	}
	x0 := r.Width - r.RightLegendWidth + legendPad
	x1 := x0 + colorBarWidth
	h := r.Height

	for y := 0; y < h; y++ {
		v := 1.0
		if h > 1 {
			v = 1 - float64(y)/float64(h-1)
		}
		fillRect(img, image.Rect(x0, y, x1, y+1), scale.Palette.Color(v))
	}

	face := basicfont.Face7x13
	span := scale.Max - scale.Min
	for _, db := range legendTicks(scale, h/face.Height) {
		y := int(math.Round((scale.Max - db) / span * float64(h-1)))
		fillRect(img, image.Rect(x1, y, x1+3, y+1), legendTextColor)
		baseline := clampInt(y+face.Ascent/2, face.Ascent, h-1)
		drawText(img, face, x1+5, baseline, dbLabel(db), legendTextColor)
	}
}

// legendTicks returns the dB values labelled on the color legend, from
// scale.Max downwards. Ticks are dbTickStep apart unless more than maxTicks
// would fit in the span, in which case the step widens to a multiple of
// dbTickStep so at most maxTicks+1 labels are produced.
func legendTicks(scale ColorScale, maxTicks int) []float64 {
	span := scale.Max - scale.Min
	if !(span > 0) || math.IsInf(span, 0) {
		return nil
	}
	maxTicks = max(maxTicks, 1)
	step := dbTickStep
	if span/step > float64(maxTicks) {
		step = math.Ceil(span/float64(maxTicks)/dbTickStep) * dbTickStep
	}
	n := min(int(math.Floor(span/step)), maxTicks)
	ticks := make([]float64, 0, n+1)
	for k := 0; k <= n; k++ {
		ticks = append(ticks, scale.Max-float64(k)*step)
	}
	return ticks
}

func dbLabel(db float64) string {
	if math.Abs(db) >= 1e6 {
		return strconv.FormatFloat(db, 'g', 3, 64)
	}
	return strconv.FormatFloat(math.Round(db), 'f', 0, 64)
}

func fillRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	draw.Draw(img, rect.Intersect(img.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1), c)
	fillRect(img, image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y), c)
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+1, rect.Max.Y), c)
	fillRect(img, image.Rect(rect.Max.X-1, rect.Min.Y, rect.Max.X, rect.Max.Y), c)
}

func drawText(img *image.RGBA, face font.Face, x, baseline int, s string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: c},
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(baseline)},
	}
	d.DrawString(s)
}
