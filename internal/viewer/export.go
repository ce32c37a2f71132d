package viewer

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/capture.gateway/internal/db"
	"github.com/banshee-data/capture.gateway/internal/fsutil"
	"github.com/banshee-data/capture.gateway/internal/monitoring"
	"github.com/banshee-data/capture.gateway/internal/security"
	"github.com/banshee-data/capture.gateway/internal/timeutil"
)

var exportLogf = monitoring.Tagged("Export")

// exportTimeLayout is the timestamp part of export file names.
const exportTimeLayout = "20060102T150405.000Z"

// ExportStore records saved frames.
type ExportStore interface {
	RecordExport(rec *db.ExportRecord) error
}

// Exporter writes saved frames below Dir and records them in Store.
type Exporter struct {
	FS    fsutil.FileSystem
	Dir   string
	Store ExportStore
	Clock timeutil.Clock
}

// NewExporter creates an exporter. store may be nil to skip the ledger.
func NewExporter(fs fsutil.FileSystem, dir string, store ExportStore, clock timeutil.Clock) *Exporter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Exporter{FS: fs, Dir: dir, Store: store, Clock: clock}
}

// ExportFilename returns waterfall_<captureId>_<timestamp>.png with the
// capture ID made safe for use in a file name.
func ExportFilename(captureID string, t time.Time) string {
	return fmt.Sprintf("waterfall_%s_%s.png", security.SanitizeFilename(captureID), t.UTC().Format(exportTimeLayout))
}

// Write stores data as a new export and returns its ledger record.
func (e *Exporter) Write(rec db.ExportRecord, data []byte) (*db.ExportRecord, error) {
	now := e.Clock.Now().UTC()
	rec.Filename = ExportFilename(rec.CaptureID, now)
	rec.Path = filepath.Join(e.Dir, rec.Filename)
	rec.SizeBytes = int64(len(data))
	rec.CreatedAt = now

	if err := security.ValidatePathWithinDirectory(rec.Path, e.Dir); err != nil {
		return nil, fmt.Errorf("invalid export path: %w", err)
	}
	if err := e.FS.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	if err := e.FS.WriteFile(rec.Path, data, os.FileMode(0o644)); err != nil {
		return nil, fmt.Errorf("writing export: %w", err)
	}
	exportLogf("saved %s (%d bytes)", rec.Path, rec.SizeBytes)

	if e.Store != nil {
		if err := e.Store.RecordExport(&rec); err != nil {
			return &rec, fmt.Errorf("export saved but not recorded: %w", err)
		}
	}
	return &rec, nil
}

// Save renders the current frame and hands it to e. Failures are returned to
// the caller and leave the visualization untouched.
func (v *Visualization) Save(e *Exporter) (*db.ExportRecord, error) {
	img, rec, err := v.exportFrame()
	if err != nil {
		return nil, err
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return e.Write(rec, data)
}

// exportFrame renders the frame and describes it for the ledger under one
// hold of mu. Encoding and writing happen after the lock is released.
func (v *Visualization) exportFrame() (*image.RGBA, db.ExportRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return nil, db.ExportRecord{}, err
	}
	img := v.renderer.Render(v.viewport, v.dataset, v.scale)
	rec := db.ExportRecord{
		CaptureID:     v.captureID,
		SelectedIndex: v.viewport.Selected(),
		WindowStart:   v.viewport.WindowStart(),
		Palette:       v.palette.String(),
		ScaleMinDB:    v.scale.Min,
		ScaleMaxDB:    v.scale.Max,
	}
	return img, rec, nil
}
