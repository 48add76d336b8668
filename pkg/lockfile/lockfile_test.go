package lockfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/semver"
)

const sampleLock = `
version = 4

[[package]]
name = "myapp"
version = "0.1.0"
dependencies = [
 "libc",
 "serde",
 "windows-sys 0.52.0",
]

[[package]]
name = "serde"
version = "1.0.200"
source = "registry+https://github.com/rust-lang/crates.io-index"
dependencies = [
 "serde_derive",
]

[[package]]
name = "serde_derive"
version = "1.0.200"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "libc"
version = "0.2.150"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "windows-sys"
version = "0.48.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "windows-sys"
version = "0.52.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "patched"
version = "2.0.0"
source = "git+https://github.com/example/patched?rev=abc123"
`

func TestParse(t *testing.T) {
	g, err := Parse([]byte(sampleLock))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if g.Len() != 5 {
		t.Fatalf("Len = %d, want 5", g.Len())
	}

	wantSkipped := []string{
		"myapp 0.1.0 (workspace member)",
		"patched 2.0.0 (source: git+https://github.com/example/patched?rev=abc123)",
	}
	if !reflect.DeepEqual(g.Skipped, wantSkipped) {
		t.Errorf("Skipped = %v, want %v", g.Skipped, wantSkipped)
	}

	serde, ok := g.Package("serde", semver.MustParse("1.0.200"))
	if !ok {
		t.Fatal("serde 1.0.200 not in graph")
	}
	wantDeps := []Dep{{Name: "serde_derive", Version: semver.MustParse("1.0.200")}}
	if !reflect.DeepEqual(serde.Dependencies, wantDeps) {
		t.Errorf("serde deps = %v, want %v", serde.Dependencies, wantDeps)
	}
}

func TestParseInlineDepVersion(t *testing.T) {
	// Two windows-sys versions coexist; only an inline version can pick
	// between them.
	g, err := Parse([]byte(sampleLock))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	vs := g.Versions("windows-sys")
	want := []semver.Version{semver.MustParse("0.48.0"), semver.MustParse("0.52.0")}
	if !reflect.DeepEqual(vs, want) {
		t.Errorf("Versions = %v, want %v", vs, want)
	}
}

func TestParseIndexFallback(t *testing.T) {
	lock := `
[[package]]
name = "a"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
dependencies = [
 "dup",
 "ghost",
]

[[package]]
name = "dup"
version = "1.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"

[[package]]
name = "dup"
version = "2.0.0"
source = "registry+https://github.com/rust-lang/crates.io-index"
`
	g, err := Parse([]byte(lock))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a, _ := g.Package("a", semver.MustParse("1.0.0"))
	// "ghost" resolves to nothing; "dup" without inline version falls back
	// to the maximum pinned version.
	want := []Dep{{Name: "dup", Version: semver.MustParse("2.0.0")}}
	if !reflect.DeepEqual(a.Dependencies, want) {
		t.Errorf("deps = %v, want %v", a.Dependencies, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		code errors.Code
	}{
		{
			name: "not toml",
			in:   "not { toml",
			code: errors.ErrCodeInvalidLockfile,
		},
		{
			name: "no package array",
			in:   `version = 4`,
			code: errors.ErrCodeInvalidLockfile,
		},
		{
			name: "missing name",
			in:   "[[package]]\nversion = \"1.0.0\"\n",
			code: errors.ErrCodeInvalidLockfile,
		},
		{
			name: "missing version",
			in:   "[[package]]\nname = \"a\"\n",
			code: errors.ErrCodeInvalidLockfile,
		},
		{
			name: "bad version",
			in:   "[[package]]\nname = \"a\"\nversion = \"one\"\nsource = \"registry+x\"\n",
			code: errors.ErrCodeInvalidVersion,
		},
		{
			name: "bad dependency version",
			in: "[[package]]\nname = \"a\"\nversion = \"1.0.0\"\nsource = \"registry+x\"\n" +
				"dependencies = [\"b nonsense\"]\n",
			code: errors.ErrCodeInvalidVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if !errors.Is(err, tt.code) {
				t.Fatalf("Parse error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Cargo.lock")
	if err := os.WriteFile(path, []byte(sampleLock), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if g.Len() != 5 {
		t.Errorf("Len = %d, want 5", g.Len())
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.lock")); err == nil {
		t.Error("ParseFile on missing file should fail")
	}
}

func TestPackagesSorted(t *testing.T) {
	g, err := Parse([]byte(sampleLock))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var ids []string
	for _, p := range g.Packages() {
		ids = append(ids, p.ID().String())
	}
	want := []string{
		"libc 0.2.150",
		"serde 1.0.200",
		"serde_derive 1.0.200",
		"windows-sys 0.48.0",
		"windows-sys 0.52.0",
	}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Packages order = %v, want %v", ids, want)
	}
}
