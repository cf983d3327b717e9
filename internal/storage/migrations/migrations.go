// Package migrations applies the embedded, versioned schema for both storage backends.
// Files are named NNN_description.sql and applied once each in version order;
// applied versions are recorded in a schema_migrations table.
package migrations

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrBadFileName is returned for files not named NNN_description.sql.
	ErrBadFileName = errors.New("migration file must be named NNN_description.sql")

	// ErrDuplicateVersion is returned when two files share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
)

// Migration is one versioned SQL file.
type Migration struct {
	Version int
	Name    string // file name without extension
	SQL     string
}

// Load reads every .sql file in dir, ordered by version.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".sql")
		version, err := parseVersion(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("%w: %d in %s and %s", ErrDuplicateVersion, version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(data)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Pending returns the migrations whose version is not in applied, in order.
func Pending(all []Migration, applied map[int]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok || prefix == "" {
		return 0, ErrBadFileName
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, ErrBadFileName
	}
	return v, nil
}
