package db

import (
	"testing"
)

// TestPragmasAppliedToExistingDB verifies PRAGMAs are set when reopening a
// database without migrating it again.
func TestPragmasAppliedToExistingDB(t *testing.T) {
	testDB := t.TempDir() + "/test_pragmas_existing.db"

	db1, err := NewDB(testDB)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	db1.Close()

	db2, err := OpenDB(testDB)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db2.Close()

	var journalMode string
	if err := db2.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db2.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	version, dirty, err := db2.MigrateVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("Failed to read migration version: %v", err)
	}
	latest, err := LatestMigrationVersion(MigrationsFS())
	if err != nil {
		t.Fatalf("Failed to read latest migration: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("Expected version %d clean, got %d (dirty=%v)", latest, version, dirty)
	}
}
