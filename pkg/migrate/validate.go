package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// guardedTables hold money movement state; an Up section may never drop them.
var guardedTables = []string{"payment_intent", "payment_attempt", "captures", "process_tracker", "outbox_events"}

// ValidateDir validates the migrations in dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateEmbedded validates the migrations compiled into the binary.
func ValidateEmbedded() error {
	sub, err := fs.Sub(embedded, embeddedDir)
	if err != nil {
		return err
	}
	return ValidateFS(sub)
}

// ValidateFS checks filenames, version uniqueness, goose annotations and that no
// Up section drops a guarded table.
func ValidateFS(fsys fs.FS) error {
	versions, err := listVersions(fsys)
	if err != nil {
		return err
	}
	for _, v := range versions {
		b, err := fs.ReadFile(fsys, v.name)
		if err != nil {
			return fmt.Errorf("read file %q: %w", v.name, err)
		}
		if err := validateBody(v.name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func validateBody(name, txt string) error {
	upIdx := strings.Index(txt, "-- +goose Up")
	if upIdx < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	downIdx := strings.Index(txt, "-- +goose Down")
	if downIdx < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	if downIdx < upIdx {
		return fmt.Errorf("migration %q has Down before Up", name)
	}
	up := strings.ToLower(txt[upIdx:downIdx])
	for _, table := range guardedTables {
		if strings.Contains(up, "drop table if exists "+table+";") || strings.Contains(up, "drop table "+table+";") {
			return fmt.Errorf("migration %q drops %s in its Up section", name, table)
		}
	}
	return nil
}

type migrationFile struct {
	version string
	name    string
}

func listVersions(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	seen := map[string]string{}
	var out []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		if prev, ok := seen[m[1]]; ok {
			return nil, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, e.Name())
		}
		seen[m[1]] = e.Name()
		out = append(out, migrationFile{version: m[1], name: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
