package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrExportNotFound is returned by GetExport for unknown IDs.
var ErrExportNotFound = errors.New("export not found")

// DefaultExportListLimit caps ListExports when no limit is given.
const DefaultExportListLimit = 50

// ExportRecord is one saved waterfall frame.
type ExportRecord struct {
	ID            string    `json:"id"`
	CaptureID     string    `json:"capture_id"`
	Filename      string    `json:"filename"`
	Path          string    `json:"path"`
	SizeBytes     int64     `json:"size_bytes"`
	SelectedIndex int       `json:"selected_index"`
	WindowStart   int       `json:"window_start"`
	Palette       string    `json:"palette"`
	ScaleMinDB    float64   `json:"scale_min_db"`
	ScaleMaxDB    float64   `json:"scale_max_db"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecordExport inserts rec, filling in ID and CreatedAt when unset.
func (db *DB) RecordExport(rec *ExportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO waterfall_exports (
			export_id, capture_id, filename, path, size_bytes,
			selected_index, window_start, palette,
			scale_min_db, scale_max_db, created_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CaptureID, rec.Filename, rec.Path, rec.SizeBytes,
		rec.SelectedIndex, rec.WindowStart, rec.Palette,
		rec.ScaleMinDB, rec.ScaleMaxDB, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	logf("recorded export %s for capture %s (%s)", rec.ID, rec.CaptureID, rec.Filename)
	return nil
}

const exportColumns = `export_id, capture_id, filename, path, size_bytes,
	selected_index, window_start, palette, scale_min_db, scale_max_db, created_unix_nanos`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExport(row rowScanner) (ExportRecord, error) {
	var rec ExportRecord
	var created int64
	err := row.Scan(&rec.ID, &rec.CaptureID, &rec.Filename, &rec.Path, &rec.SizeBytes,
		&rec.SelectedIndex, &rec.WindowStart, &rec.Palette,
		&rec.ScaleMinDB, &rec.ScaleMaxDB, &created)
	if err != nil {
		return ExportRecord{}, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

// GetExport looks up one export by ID.
func (db *DB) GetExport(id string) (*ExportRecord, error) {
	row := db.QueryRow(`SELECT `+exportColumns+` FROM waterfall_exports WHERE export_id = ?`, id)
	rec, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}
	return &rec, nil
}

// ListExports returns the newest exports first. An empty captureID lists
// every capture; limit <= 0 uses DefaultExportListLimit.
func (db *DB) ListExports(captureID string, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = DefaultExportListLimit
	}
	query := `SELECT ` + exportColumns + ` FROM waterfall_exports`
	args := []interface{}{}
	if captureID != "" {
		query += ` WHERE capture_id = ?`
		args = append(args, captureID)
	}
	query += ` ORDER BY created_unix_nanos DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	out := []ExportRecord{}
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
