package packager

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/cratepack/cratepack/pkg/config"
	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/manifest"
	"github.com/cratepack/cratepack/pkg/semver"
)

// fakeReader serves canned crate metadata keyed by name, recording every
// request it sees. Releases listed in broken (as "name@version") fail.
type fakeReader struct {
	crates   map[string]*manifest.Crate
	broken   map[string]bool
	requests []string
}

func (r *fakeReader) Crate(ctx context.Context, name, version string) (*manifest.Crate, error) {
	r.requests = append(r.requests, name+"@"+version)
	if r.broken[name+"@"+version] {
		return nil, errors.New(errors.ErrCodePackageFailed, "broken release: %s %s", name, version)
	}
	c, ok := r.crates[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "crate not found: %s", name)
	}
	return c, nil
}

func quiet() *log.Logger { return log.New(io.Discard) }

func demoCrate() *manifest.Crate {
	return &manifest.Crate{
		Name:        "demo_crate",
		Version:     semver.MustParse("1.2.0"),
		RustVersion: "1.70",
		Features: manifest.FeatureGraph{
			"": {Deps: []manifest.Dependency{{Name: "libc", Req: "0.2"}}},
			"std": {
				Features: []string{""},
				Deps:     []manifest.Dependency{{Name: "serde", Req: "1.0.100", DefaultFeatures: true}},
			},
			"alias": {Features: []string{""}},
		},
		Dependencies: []manifest.Dependency{
			{Name: "libc", Req: "0.2"},
			{Name: "cc", Req: "1", Kind: manifest.KindBuild},
			{Name: "quickcheck", Req: "1", Kind: manifest.KindDev},
		},
	}
}

func TestDescribe(t *testing.T) {
	b := &Builder{Logger: quiet()}
	d, err := b.Describe(demoCrate())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}

	if d.Crate != "demo_crate" || d.Version != "1.2.0" {
		t.Errorf("identity = %s %s", d.Crate, d.Version)
	}
	if d.Source != "rust-demo-crate-1" {
		t.Errorf("Source = %q", d.Source)
	}
	if d.CompatVersion != "1.0" {
		t.Errorf("CompatVersion = %q", d.CompatVersion)
	}

	wantBuild := []string{"cargo:native", "rustc:native (>= 1.70)", "libstd-rust-dev", "rust-cc-1-dev"}
	if !reflect.DeepEqual(d.BuildDepends, wantBuild) {
		t.Errorf("BuildDepends = %v, want %v", d.BuildDepends, wantBuild)
	}
	if !reflect.DeepEqual(d.TestDepends, []string{"rust-quickcheck-1-dev"}) {
		t.Errorf("TestDepends = %v", d.TestDepends)
	}

	if len(d.Packages) != 2 {
		t.Fatalf("got %d packages, want 2 (base and std): %+v", len(d.Packages), d.Packages)
	}

	base := d.Packages[0]
	if base.Name != "rust-demo-crate-1-dev" || base.Feature != "" {
		t.Errorf("base package = %+v", base)
	}
	if !reflect.DeepEqual(base.Depends, []string{"rust-libc-0.2-dev"}) {
		t.Errorf("base depends = %v", base.Depends)
	}
	// The absorbed alias feature is provided under both the versioned and
	// the plain name.
	wantProvides := []string{
		"rust-demo-crate-dev",
		"rust-demo-crate-1+alias-dev",
		"rust-demo-crate+alias-dev",
	}
	if !reflect.DeepEqual(base.Provides, wantProvides) {
		t.Errorf("base provides = %v, want %v", base.Provides, wantProvides)
	}

	std := d.Packages[1]
	if std.Name != "rust-demo-crate-1+std-dev" || std.Feature != "std" {
		t.Errorf("std package = %+v", std)
	}
	wantDepends := []string{
		"rust-demo-crate-1-dev",
		"rust-serde-1+default-dev (>= 1.0.100-~~)",
	}
	if !reflect.DeepEqual(std.Depends, wantDepends) {
		t.Errorf("std depends = %v, want %v", std.Depends, wantDepends)
	}
	if !reflect.DeepEqual(std.Provides, []string{"rust-demo-crate+std-dev"}) {
		t.Errorf("std provides = %v", std.Provides)
	}
}

func TestDescribeCollapsed(t *testing.T) {
	cfg := config.Default()
	cfg.CollapseFeatures = true
	cfg.Testing = true
	b := &Builder{Config: cfg, Logger: quiet()}

	d, err := b.Describe(demoCrate())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !d.Testing {
		t.Error("Testing flag not carried into the descriptor")
	}
	if len(d.Packages) != 1 {
		t.Fatalf("collapsed descriptor has %d packages, want 1", len(d.Packages))
	}

	p := d.Packages[0]
	if p.Name != "rust-demo-crate-1-dev" {
		t.Errorf("package name = %q", p.Name)
	}
	wantDepends := []string{
		"rust-libc-0.2-dev",
		"rust-serde-1+default-dev (>= 1.0.100-~~)",
	}
	if !reflect.DeepEqual(p.Depends, wantDepends) {
		t.Errorf("depends = %v, want %v", p.Depends, wantDepends)
	}
	for _, want := range []string{
		"rust-demo-crate-1+std-dev",
		"rust-demo-crate+std-dev",
		"rust-demo-crate-1+alias-dev",
	} {
		if !contains(p.Provides, want) {
			t.Errorf("provides missing %q: %v", want, p.Provides)
		}
	}
}

func TestDescribePerCrateCollapseOverride(t *testing.T) {
	collapse := true
	cfg := config.Default()
	cfg.Packages["demo_crate"] = config.Package{CollapseFeatures: &collapse}
	b := &Builder{Config: cfg, Logger: quiet()}

	d, err := b.Describe(demoCrate())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(d.Packages) != 1 {
		t.Errorf("override did not collapse: %d packages", len(d.Packages))
	}
}

func TestBuild(t *testing.T) {
	reader := &fakeReader{crates: map[string]*manifest.Crate{"demo_crate": demoCrate()}}
	b := &Builder{Reader: reader, Logger: quiet()}

	d, crate, err := b.Build(context.Background(), "demo_crate", "1.2.0")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if crate.Name != "demo_crate" || d.Crate != "demo_crate" {
		t.Errorf("Build returned %s / %s", crate.Name, d.Crate)
	}
	if !reflect.DeepEqual(reader.requests, []string{"demo_crate@1.2.0"}) {
		t.Errorf("requests = %v", reader.requests)
	}

	if _, _, err := b.Build(context.Background(), "nope", ""); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("want NOT_FOUND, got %v", err)
	}
}

func TestDescriptorWrite(t *testing.T) {
	b := &Builder{Logger: quiet()}
	d, err := b.Describe(demoCrate())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	path, err := d.Write(dir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(path) != "rust-demo-crate-1_1.2.0.json" {
		t.Errorf("filename = %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"crate": "demo_crate"`) {
		t.Errorf("descriptor JSON missing crate name:\n%s", data)
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
