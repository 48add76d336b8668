package cratedb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cratepack/cratepack/pkg/semver"
)

func TestCompatVersion(t *testing.T) {
	tests := []struct{ version, want string }{
		{"2.1.4", "2.0"},
		{"1.0.0", "1.0"},
		{"0.9.1", "0.9"},
		{"0.0.7", "0.0.7"},
		{"0.26.0-beta.1", "0.26.0-beta.1"},
	}
	for _, tt := range tests {
		if got := CompatVersion(semver.MustParse(tt.version)); got != tt.want {
			t.Errorf("CompatVersion(%s) = %s, want %s", tt.version, got, tt.want)
		}
	}
}

func TestEntryKeyAndLine(t *testing.T) {
	e := NewEntry("serde", semver.MustParse("1.0.200"))
	if got := e.Key(); got != "serde@1.0" {
		t.Errorf("Key = %q", got)
	}
	if got := e.Line(); got != "serde 1.0.200" {
		t.Errorf("Line = %q", got)
	}

	pre := NewEntry("zerocopy", semver.MustParse("0.8.0-alpha.1"))
	if pre.Compatible {
		t.Error("pre-release entry should be marked incompatible")
	}
	if got := pre.Line(); got != "zerocopy 0.8.0-alpha.1 false" {
		t.Errorf("Line = %q", got)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    Entry
		wantErr bool
	}{
		{line: "serde 1.0.200", want: Entry{Name: "serde", Version: semver.MustParse("1.0.200"), Compatible: true}},
		{line: "  libc 0.2.150  ", want: Entry{Name: "libc", Version: semver.MustParse("0.2.150"), Compatible: true}},
		{line: "zerocopy 0.8.0-alpha.1 false", want: Entry{Name: "zerocopy", Version: semver.MustParse("0.8.0-alpha.1")}},
		{line: "", wantErr: true},
		{line: "# comment", wantErr: true},
		{line: "lonely", wantErr: true},
		{line: "broken not-a-version", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLine(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLine(%q) succeeded, want error", tt.line)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLine(%q): %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestMerge(t *testing.T) {
	db := New()
	db.Add(NewEntry("serde", semver.MustParse("1.0.100")))
	db.Add(NewEntry("libc", semver.MustParse("0.2.150")))

	incoming := New()
	incoming.Add(NewEntry("serde", semver.MustParse("1.0.200")))  // upgrade
	incoming.Add(NewEntry("libc", semver.MustParse("0.2.150")))   // identical
	incoming.Add(NewEntry("tokio", semver.MustParse("1.38.0")))   // new key
	incoming.Add(NewEntry("serde", semver.MustParse("2.0.0")))    // new series

	actions := db.Merge(incoming)
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3: %v", len(actions), actions)
	}
	// Entries() sorts by key, so actions are deterministic too.
	wantKeys := []string{"serde@1.0", "serde@2.0", "tokio@1.0"}
	for i, k := range wantKeys {
		if actions[i].Key() != k {
			t.Errorf("action %d = %s, want %s", i, actions[i].Key(), k)
		}
	}
	if e, _ := db.Get("serde", semver.MustParse("1.0.0")); e.Version != semver.MustParse("1.0.200") {
		t.Errorf("serde@1.0 = %s, want 1.0.200", e.Version)
	}
}

func TestMergeNeverDowngrades(t *testing.T) {
	db := New()
	db.Add(NewEntry("serde", semver.MustParse("1.0.200")))

	stale := New()
	stale.Add(NewEntry("serde", semver.MustParse("1.0.100")))

	if actions := db.Merge(stale); len(actions) != 0 {
		t.Fatalf("downgrade produced actions: %v", actions)
	}
	if e, _ := db.Get("serde", semver.MustParse("1.0.0")); e.Version != semver.MustParse("1.0.200") {
		t.Errorf("stored version regressed to %s", e.Version)
	}
}

func TestMergeSelfIsNoOp(t *testing.T) {
	db := New()
	db.Add(NewEntry("serde", semver.MustParse("1.0.200")))
	if actions := db.Merge(db); len(actions) != 0 {
		t.Fatalf("self merge produced actions: %v", actions)
	}
}

func TestLoadLenient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crate_db.txt")
	content := "# tracked crates\n" +
		"serde 1.0.200\n" +
		"this line is broken beyond repair ???\n" +
		"\n" +
		"zerocopy 0.8.0-alpha.1 false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	db, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if db.Len() != 2 {
		t.Fatalf("Len = %d, want 2: %v", db.Len(), db.Entries())
	}
	if _, ok := db.Get("serde", semver.MustParse("1.0.0")); !ok {
		t.Error("serde entry missing after lenient load")
	}
}

func TestLoadOrEmptyMissingFile(t *testing.T) {
	db, err := LoadOrEmpty(filepath.Join(t.TempDir(), "nope.txt"), nil)
	if err != nil {
		t.Fatalf("LoadOrEmpty: %v", err)
	}
	if db.Len() != 0 {
		t.Errorf("Len = %d, want 0", db.Len())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crate_db.txt")

	db := New()
	db.Add(NewEntry("zlib-rs", semver.MustParse("0.4.0")))
	db.Add(NewEntry("serde", semver.MustParse("1.0.200")))
	db.Add(NewEntry("zerocopy", semver.MustParse("0.8.0-alpha.1")))
	if err := db.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "serde 1.0.200\nzerocopy 0.8.0-alpha.1 false\nzlib-rs 0.4.0\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 3 {
		t.Errorf("round trip lost entries: %d", loaded.Len())
	}
}
