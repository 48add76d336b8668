// Package cratedb implements the persistent crate version database:
// a flat text file mapping "name@compat-version" keys to the exact
// version last seen for that compatibility series. Merging a freshly
// resolved dependency set against the database yields the entries that
// are new or upgraded and therefore need packaging action.
package cratedb

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/semver"
)

// CompatVersion returns the coarsened version string used to decide
// whether two versions may share one downstream package:
//
//   - pre-release versions keep the full "major.minor.patch-pre" string,
//     since pre-releases are never compatible with anything
//   - major >= 1: "major.0" (one package per major series)
//   - 0.x: "0.minor" (one package per minor series)
//   - 0.0.x: "0.0.patch" (every patch its own package)
func CompatVersion(v semver.Version) string {
	switch {
	case v.Pre != "":
		return fmt.Sprintf("%d.%d.%d-%s", v.Major, v.Minor, v.Patch, v.Pre)
	case v.Major != 0:
		return fmt.Sprintf("%d.0", v.Major)
	case v.Minor != 0:
		return fmt.Sprintf("0.%d", v.Minor)
	default:
		return fmt.Sprintf("0.0.%d", v.Patch)
	}
}

// Entry is one crate version tracked by the database. Entries are
// immutable; a newer version for the same key supersedes the old entry
// rather than mutating it.
type Entry struct {
	// Name keeps the crate's original casing and separators.
	Name string
	// Version is the full exact version.
	Version semver.Version
	// Compatible is false for versions outside standard compatibility
	// rules (currently: versions with a pre-release tag).
	Compatible bool
}

// NewEntry creates an Entry, detecting compatibility from the version.
func NewEntry(name string, version semver.Version) Entry {
	return Entry{
		Name:       name,
		Version:    version,
		Compatible: version.Pre == "",
	}
}

// CompatVersion returns the compatibility series of the entry's version.
func (e Entry) CompatVersion() string { return CompatVersion(e.Version) }

// Key returns the database key: "{name}@{compat_version}".
func (e Entry) Key() string { return e.Name + "@" + e.CompatVersion() }

// Line renders the entry in the database text format:
// "name version" with a trailing "false" token for incompatible entries.
func (e Entry) Line() string {
	if e.Compatible {
		return fmt.Sprintf("%s %s", e.Name, e.Version)
	}
	return fmt.Sprintf("%s %s false", e.Name, e.Version)
}

// ParseLine parses one database line. Blank lines and '#' comments are
// not entries and return an error; callers decide whether that error is
// worth a warning.
func ParseLine(line string) (Entry, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, errors.New(errors.ErrCodeInvalidDatabase, "empty or comment line")
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return Entry{}, errors.New(errors.ErrCodeInvalidDatabase, "invalid line format: %q", line)
	}

	version, err := semver.Parse(parts[1])
	if err != nil {
		return Entry{}, errors.Wrap(errors.ErrCodeInvalidVersion, err,
			"failed to parse version %q for crate %q", parts[1], parts[0])
	}

	compatible := true
	if len(parts) > 2 && parts[2] == "false" {
		compatible = false
	}
	return Entry{Name: parts[0], Version: version, Compatible: compatible}, nil
}

// DB is the in-memory form of the database. It is owned by a single call
// stack; no internal locking.
type DB struct {
	entries map[string]Entry
}

// New creates an empty database.
func New() *DB {
	return &DB{entries: map[string]Entry{}}
}

// Len returns the number of entries.
func (db *DB) Len() int { return len(db.entries) }

// Add inserts or replaces the entry at its key.
func (db *DB) Add(e Entry) {
	db.entries[e.Key()] = e
}

// Get returns the entry covering the given name and version's
// compatibility series, if present.
func (db *DB) Get(name string, version semver.Version) (Entry, bool) {
	e, ok := db.entries[NewEntry(name, version).Key()]
	return e, ok
}

// Entries returns all entries sorted by key.
func (db *DB) Entries() []Entry {
	keys := make([]string, 0, len(db.entries))
	for k := range db.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, db.entries[k])
	}
	return out
}

// Merge folds other into db. For each entry of other: a missing key is
// inserted, a key with a lower stored version is replaced, an equal or
// higher stored version is left alone. The returned entries are the ones
// inserted or replaced, i.e. the crates that need packaging action.
// Merge never downgrades an entry.
func (db *DB) Merge(other *DB) []Entry {
	var needsAction []Entry
	for _, e := range other.Entries() {
		existing, ok := db.entries[e.Key()]
		if ok && !existing.Version.Less(e.Version) {
			continue
		}
		db.entries[e.Key()] = e
		needsAction = append(needsAction, e)
	}
	return needsAction
}

// Load reads a database file. Malformed lines are skipped with a warning
// rather than failing the load; the database survives hand edits.
func Load(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database %s: %w", path, err)
	}

	db := New()
	for i, line := range strings.Split(string(data), "\n") {
		e, err := ParseLine(line)
		if err != nil {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
				logger.Warnf("skipping invalid database line %d: %s", i+1, line)
			}
			continue
		}
		db.Add(e)
	}
	return db, nil
}

// LoadOrEmpty is Load, except a missing file yields an empty database.
func LoadOrEmpty(path string, logger *log.Logger) (*DB, error) {
	db, err := Load(path, logger)
	if stderrors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	return db, err
}

// Save writes the database as sorted lines with a trailing newline,
// rewriting the whole file.
func (db *DB) Save(path string) error {
	lines := make([]string, 0, len(db.entries))
	for _, e := range db.entries {
		lines = append(lines, e.Line())
	}
	sort.Strings(lines)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write database %s: %w", path, err)
	}
	return nil
}

// DefaultPath returns the standard database location,
// ~/.config/cratepack/crate_db.txt (or the platform equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "cratepack", "crate_db.txt")
}
