// Package db stores the waterfall export ledger in SQLite. The schema is
// owned by the embedded migrations; OpenDB never creates tables itself.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/capture.gateway/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsEmbed embed.FS

// MigrationsFS returns the embedded migration files, rooted at the directory
// that holds the .sql files.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsEmbed, "migrations")
	if err != nil {
		// the embed pattern guarantees the directory exists
		panic(err)
	}
	return sub
}

var logf = monitoring.Tagged("Export")

// DB wraps the SQLite handle.
type DB struct {
	*sql.DB
}

// OpenDB opens (or creates) the database at path and applies connection
// pragmas. It does not run migrations.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer keeps WAL and busy_timeout semantics predictable
	sqlDB.SetMaxOpenConns(1)
	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}
