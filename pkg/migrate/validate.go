package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks migration filenames and the goose section markers.
// Runs against the repo checkout, no DB needed.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		full := filepath.Join(dir, name)
		b, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read file %q: %w", full, err)
		}

		txt := string(b)
		up := strings.Index(txt, "-- +goose Up")
		down := strings.Index(txt, "-- +goose Down")
		if up < 0 {
			return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
		}
		if down < 0 {
			return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
		}
		if down < up {
			return fmt.Errorf("migration %q has Down section before Up", name)
		}
	}

	return nil
}
