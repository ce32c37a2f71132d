package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical viewer defaults file.
const DefaultConfigPath = "config/viewer.defaults.json"

// ViewerConfig represents the root configuration for the capture gateway.
// Every field is optional; the Get* accessors supply defaults for omitted
// fields so partial configs are safe.
type ViewerConfig struct {
	// Upstream dataset gateway
	GatewayURL     *string `json:"gateway_url,omitempty"`
	APIKey         *string `json:"api_key,omitempty"`
	CapturePath    *string `json:"capture_path,omitempty"`    // fmt template taking the capture ID
	RequestTimeout *string `json:"request_timeout,omitempty"` // duration string like "30s"

	// Waterfall engine
	WindowSize       *int     `json:"window_size,omitempty"`
	CanvasWidth      *int     `json:"canvas_width,omitempty"`
	CanvasHeight     *int     `json:"canvas_height,omitempty"`
	MaxCanvasWidth   *int     `json:"max_canvas_width,omitempty"`
	MaxCanvasHeight  *int     `json:"max_canvas_height,omitempty"`
	LeftLegendWidth  *int     `json:"left_legend_width,omitempty"`
	RightLegendWidth *int     `json:"right_legend_width,omitempty"`
	DefaultPalette   *string  `json:"default_palette,omitempty"`
	DefaultRate      *float64 `json:"default_rate,omitempty"`
	MaxRate          *float64 `json:"max_rate,omitempty"`

	// Spectrogram jobs
	SpectrogramPollInterval *string `json:"spectrogram_poll_interval,omitempty"`

	// Service
	ExportDir  *string `json:"export_dir,omitempty"`
	DBPath     *string `json:"db_path,omitempty"`
	Listen     *string `json:"listen,omitempty"`
	GRPCListen *string `json:"grpc_listen,omitempty"`
}

// LoadViewerConfig loads a ViewerConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ViewerConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ViewerConfig) Validate() error {
	if c.WindowSize != nil && *c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", *c.WindowSize)
	}
	if c.CanvasWidth != nil && *c.CanvasWidth <= 0 {
		return fmt.Errorf("canvas_width must be positive, got %d", *c.CanvasWidth)
	}
	if c.CanvasHeight != nil && *c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas_height must be positive, got %d", *c.CanvasHeight)
	}
	if c.MaxCanvasWidth != nil && *c.MaxCanvasWidth <= 0 {
		return fmt.Errorf("max_canvas_width must be positive, got %d", *c.MaxCanvasWidth)
	}
	if c.MaxCanvasHeight != nil && *c.MaxCanvasHeight <= 0 {
		return fmt.Errorf("max_canvas_height must be positive, got %d", *c.MaxCanvasHeight)
	}
	if c.GetCanvasWidth() > c.GetMaxCanvasWidth() || c.GetCanvasHeight() > c.GetMaxCanvasHeight() {
		return fmt.Errorf("canvas %dx%d exceeds max_canvas %dx%d",
			c.GetCanvasWidth(), c.GetCanvasHeight(), c.GetMaxCanvasWidth(), c.GetMaxCanvasHeight())
	}
	if c.LeftLegendWidth != nil && *c.LeftLegendWidth < 0 {
		return fmt.Errorf("left_legend_width must be non-negative, got %d", *c.LeftLegendWidth)
	}
	if c.RightLegendWidth != nil && *c.RightLegendWidth < 0 {
		return fmt.Errorf("right_legend_width must be non-negative, got %d", *c.RightLegendWidth)
	}
	if c.GetLeftLegendWidth()+c.GetRightLegendWidth() >= c.GetCanvasWidth() {
		return fmt.Errorf("legend widths (%d + %d) leave no room in canvas_width %d",
			c.GetLeftLegendWidth(), c.GetRightLegendWidth(), c.GetCanvasWidth())
	}
	if c.DefaultRate != nil && *c.DefaultRate <= 0 {
		return fmt.Errorf("default_rate must be positive, got %f", *c.DefaultRate)
	}
	if c.MaxRate != nil && *c.MaxRate <= 0 {
		return fmt.Errorf("max_rate must be positive, got %f", *c.MaxRate)
	}
	if c.GetDefaultRate() > c.GetMaxRate() {
		return fmt.Errorf("default_rate %f exceeds max_rate %f", c.GetDefaultRate(), c.GetMaxRate())
	}
	for name, v := range map[string]*string{
		"request_timeout":           c.RequestTimeout,
		"spectrogram_poll_interval": c.SpectrogramPollInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}
	return nil
}

// GetGatewayURL returns the upstream gateway base URL.
func (c *ViewerConfig) GetGatewayURL() string {
	if c.GatewayURL == nil || *c.GatewayURL == "" {
		return "http://localhost:8000"
	}
	return *c.GatewayURL
}

// GetAPIKey returns the gateway API key, empty when unauthenticated.
func (c *ViewerConfig) GetAPIKey() string {
	if c.APIKey == nil {
		return ""
	}
	return *c.APIKey
}

// GetCapturePath returns the per-capture path template (one %s verb).
func (c *ViewerConfig) GetCapturePath() string {
	if c.CapturePath == nil || *c.CapturePath == "" {
		return "/api/latest/assets/captures/%s/"
	}
	return *c.CapturePath
}

// GetRequestTimeout returns the upstream request timeout. Zero means the
// platform default (no explicit timeout).
func (c *ViewerConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == nil || *c.RequestTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.RequestTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetWindowSize returns the number of slices visible at once.
func (c *ViewerConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 100
	}
	return *c.WindowSize
}

// GetCanvasWidth returns the raster width in pixels.
func (c *ViewerConfig) GetCanvasWidth() int {
	if c.CanvasWidth == nil {
		return 1000
	}
	return *c.CanvasWidth
}

// GetCanvasHeight returns the raster height in pixels.
func (c *ViewerConfig) GetCanvasHeight() int {
	if c.CanvasHeight == nil {
		return 400
	}
	return *c.CanvasHeight
}

// GetMaxCanvasWidth returns the largest raster width a resize may request.
func (c *ViewerConfig) GetMaxCanvasWidth() int {
	if c.MaxCanvasWidth == nil {
		return 4096
	}
	return *c.MaxCanvasWidth
}

// GetMaxCanvasHeight returns the largest raster height a resize may request.
func (c *ViewerConfig) GetMaxCanvasHeight() int {
	if c.MaxCanvasHeight == nil {
		return 4096
	}
	return *c.MaxCanvasHeight
}

// GetLeftLegendWidth returns the width reserved for the index legend.
func (c *ViewerConfig) GetLeftLegendWidth() int {
	if c.LeftLegendWidth == nil {
		return 50
	}
	return *c.LeftLegendWidth
}

// GetRightLegendWidth returns the width reserved for the color legend.
func (c *ViewerConfig) GetRightLegendWidth() int {
	if c.RightLegendWidth == nil {
		return 70
	}
	return *c.RightLegendWidth
}

// GetDefaultPalette returns the palette name new sessions start with.
func (c *ViewerConfig) GetDefaultPalette() string {
	if c.DefaultPalette == nil || *c.DefaultPalette == "" {
		return "viridis"
	}
	return *c.DefaultPalette
}

// GetDefaultRate returns the initial playback rate in slices per second.
func (c *ViewerConfig) GetDefaultRate() float64 {
	if c.DefaultRate == nil {
		return 1
	}
	return *c.DefaultRate
}

// GetMaxRate returns the highest accepted playback rate.
func (c *ViewerConfig) GetMaxRate() float64 {
	if c.MaxRate == nil {
		return 60
	}
	return *c.MaxRate
}

// GetSpectrogramPollInterval returns how often spectrogram job status is polled.
func (c *ViewerConfig) GetSpectrogramPollInterval() time.Duration {
	if c.SpectrogramPollInterval == nil || *c.SpectrogramPollInterval == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.SpectrogramPollInterval)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetExportDir returns the directory saved PNG frames are written to.
func (c *ViewerConfig) GetExportDir() string {
	if c.ExportDir == nil || *c.ExportDir == "" {
		return "exports"
	}
	return *c.ExportDir
}

// GetDBPath returns the SQLite export ledger path.
func (c *ViewerConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "capture_gateway.db"
	}
	return *c.DBPath
}

// GetListen returns the HTTP listen address.
func (c *ViewerConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8081"
	}
	return *c.Listen
}

// GetGRPCListen returns the gRPC health listen address; empty disables it.
func (c *ViewerConfig) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return ""
	}
	return *c.GRPCListen
}
