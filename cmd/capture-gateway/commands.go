package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/capture.gateway/internal/config"
	"github.com/banshee-data/capture.gateway/internal/viewer"
)

// overrides holds command-line values that take precedence over the config
// file. Empty fields leave the config untouched.
type overrides struct {
	Listen     string
	GRPCListen string
	GatewayURL string
	DBPath     string
	ExportDir  string
}

// loadConfig reads path. A missing file is only an error when the path was
// given explicitly; otherwise built-in defaults apply.
func loadConfig(path string, explicit bool) (*config.ViewerConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return &config.ViewerConfig{}, nil
	}
	return config.LoadViewerConfig(path)
}

func applyFlagOverrides(cfg *config.ViewerConfig, o overrides) {
	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&cfg.Listen, o.Listen)
	set(&cfg.GRPCListen, o.GRPCListen)
	set(&cfg.GatewayURL, o.GatewayURL)
	set(&cfg.DBPath, o.DBPath)
	set(&cfg.ExportDir, o.ExportDir)
}

// renderOptions are the flags of the render subcommand.
type renderOptions struct {
	CaptureID string
	Index     int
	Output    string
	Palette   string
	Timeout   time.Duration
}

func parseRenderFlags(args []string) (renderOptions, error) {
	var o renderOptions
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.StringVar(&o.CaptureID, "capture", "", "Capture ID to render")
	fs.IntVar(&o.Index, "index", 1, "1-based slice index to select")
	fs.StringVar(&o.Output, "o", "", "Output PNG path (default: waterfall_<capture>_<time>.png)")
	fs.StringVar(&o.Palette, "palette", "", "Palette name (default from config)")
	fs.DurationVar(&o.Timeout, "timeout", 2*time.Minute, "Overall fetch timeout")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.CaptureID == "" {
		return o, errors.New("-capture is required")
	}
	return o, nil
}

// runRender fetches one capture and writes a single frame, selecting the
// requested slice first.
func runRender(cfg *config.ViewerConfig, args []string) error {
	o, err := parseRenderFlags(args)
	if err != nil {
		return err
	}

	opts := viewer.OptionsFromConfig(cfg)
	v, err := viewer.New(o.CaptureID, opts)
	if err != nil {
		return err
	}
	defer v.Close()
	if o.Palette != "" {
		v.SetPalette(o.Palette)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.Timeout)
	defer cancel()
	if err := v.Load(ctx, newGatewayClient(cfg)); err != nil {
		return fmt.Errorf("loading capture: %w", err)
	}
	if v.State().TotalSlices > 0 {
		if _, err := v.SetIndexInput(fmt.Sprint(o.Index)); err != nil {
			return err
		}
	}

	out := o.Output
	if out == "" {
		out = viewer.ExportFilename(o.CaptureID, time.Now())
	}
	data, err := v.FramePNG()
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
	return nil
}
