// Package security guards the export directory against path traversal and
// keeps user-supplied capture identifiers safe to embed in file names.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that filePath resolves inside safeDir.
// The check is lexical: both paths are made absolute and cleaned, so it works
// for files that do not exist yet (exports are validated before writing).
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(filepath.Clean(safeDir))
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	relPath, err := filepath.Rel(absSafeDir, absPath)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) || filepath.IsAbs(relPath) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, safeDir)
	}
	return nil
}

// SanitizeFilename makes a safe filename component from an arbitrary string.
// Characters other than ASCII letters, digits, dot, underscore and dash become
// a single underscore. A dot survives only directly after a letter or digit,
// so the result is never hidden or a parent reference.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	prevAlnum := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		switch {
		case alnum || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
			prevAlnum = alnum
		case r == '.' && prevAlnum:
			b.WriteRune(r)
			lastUnderscore = false
			prevAlnum = false
		default:
			prevAlnum = false
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
