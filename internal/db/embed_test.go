package db

import (
	"io/fs"
	"strings"
	"testing"
)

// TestEmbeddedMigrationsFS checks every embedded up migration has a down pair.
func TestEmbeddedMigrationsFS(t *testing.T) {
	entries, err := fs.ReadDir(MigrationsFS(), ".")
	if err != nil {
		t.Fatalf("Failed to read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations")
	}

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if !names[down] {
			t.Errorf("%s has no matching %s", name, down)
		}
	}
}
