package viewer

import (
	"fmt"

	"github.com/banshee-data/capture.gateway/internal/config"
	"github.com/banshee-data/capture.gateway/internal/timeutil"
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

// DefaultMaxCanvasSize bounds both canvas dimensions when Options leaves
// MaxWidth or MaxHeight unset.
const DefaultMaxCanvasSize = 4096

// Options configures a new visualization.
type Options struct {
	WindowSize       int
	Width            int
	Height           int
	MaxWidth         int
	MaxHeight        int
	LeftLegendWidth  int
	RightLegendWidth int
	Palette          waterfall.Palette
	Rate             float64
	MaxRate          float64
	Clock            timeutil.Clock
}

// checkCanvas rejects canvases larger than the configured maximum.
func (o Options) checkCanvas(width, height int) error {
	if width > o.MaxWidth || height > o.MaxHeight {
		return fmt.Errorf("%w: canvas %dx%d exceeds maximum %dx%d",
			waterfall.ErrInvalidGeometry, width, height, o.MaxWidth, o.MaxHeight)
	}
	return nil
}

// DefaultOptions matches the defaults of config.ViewerConfig.
func DefaultOptions() Options {
	return OptionsFromConfig(&config.ViewerConfig{})
}

// OptionsFromConfig reads the waterfall settings of cfg.
func OptionsFromConfig(cfg *config.ViewerConfig) Options {
	return Options{
		WindowSize:       cfg.GetWindowSize(),
		Width:            cfg.GetCanvasWidth(),
		Height:           cfg.GetCanvasHeight(),
		MaxWidth:         cfg.GetMaxCanvasWidth(),
		MaxHeight:        cfg.GetMaxCanvasHeight(),
		LeftLegendWidth:  cfg.GetLeftLegendWidth(),
		RightLegendWidth: cfg.GetRightLegendWidth(),
		Palette:          waterfall.PaletteByName(cfg.GetDefaultPalette()),
		Rate:             cfg.GetDefaultRate(),
		MaxRate:          cfg.GetMaxRate(),
		Clock:            timeutil.RealClock{},
	}
}
