// Package packager turns crate metadata into package descriptors: the
// source package, its toolchain build dependencies, and one installable
// dev package per surviving feature with Provides and Depends clauses.
// The Walker descends a crate's dependency tree and produces a
// descriptor for every crate encountered.
package packager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/cratepack/cratepack/pkg/config"
	"github.com/cratepack/cratepack/pkg/cratedb"
	"github.com/cratepack/cratepack/pkg/deb"
	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/manifest"
)

// BinaryPackage is one installable package generated for a crate: the
// base package or one surviving feature.
type BinaryPackage struct {
	Name     string   `json:"name"`
	Feature  string   `json:"feature,omitempty"`
	Provides []string `json:"provides,omitempty"`
	Depends  []string `json:"depends,omitempty"`
}

// Descriptor is the full packaging output for one crate version.
type Descriptor struct {
	Crate         string          `json:"crate"`
	Version       string          `json:"version"`
	CompatVersion string          `json:"compat_version"`
	Source        string          `json:"source"`
	BuildDepends  []string        `json:"build_depends"`
	TestDepends   []string        `json:"test_depends,omitempty"`
	Packages      []BinaryPackage `json:"packages"`
	Testing       bool            `json:"testing,omitempty"`
}

// Filename returns the descriptor's output file name.
func (d *Descriptor) Filename() string {
	return fmt.Sprintf("%s_%s.json", d.Source, d.Version)
}

// Write stores the descriptor as indented JSON under dir, creating the
// directory if needed, and returns the written path.
func (d *Descriptor) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, d.Filename())
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write descriptor %s: %w", path, err)
	}
	return path, nil
}

// Builder produces descriptors from crate metadata.
type Builder struct {
	Reader manifest.Reader
	Config *config.Config
	Logger *log.Logger
}

func (b *Builder) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.Default()
}

func (b *Builder) cfg() *config.Config {
	if b.Config != nil {
		return b.Config
	}
	return config.Default()
}

// Build fetches one crate version and translates it into a Descriptor.
// An empty version selects the newest release.
func (b *Builder) Build(ctx context.Context, name, version string) (*Descriptor, *manifest.Crate, error) {
	crate, err := b.Reader.Crate(ctx, name, version)
	if err != nil {
		return nil, nil, err
	}
	d, err := b.Describe(crate)
	if err != nil {
		return nil, nil, err
	}
	return d, crate, nil
}

// Describe translates already-fetched crate metadata into a Descriptor.
func (b *Builder) Describe(crate *manifest.Crate) (*Descriptor, error) {
	cfg := b.cfg()
	logger := b.logger().With("crate", crate.Name)

	merged, err := deb.MergeAliasedFeatures(crate.Features, logger)
	if err != nil {
		return nil, err
	}

	var reduced deb.Reduced
	if cfg.ShouldCollapse(crate.Name) {
		reduced = deb.Collapse(merged)
	} else {
		reduced = deb.Reduce(merged)
	}

	tr := &deb.Translator{
		AllowPrerelease: cfg.PrereleaseAllowed(crate.Name),
		Logger:          logger,
	}

	plain := deb.SourceName(crate.Name)
	series := plain + "-" + deb.Series(crate.Version).String()

	var packages []BinaryPackage
	for _, f := range sortedFeatures(reduced.Features) {
		fd := reduced.Features[f]

		var depends []string
		for _, sub := range fd.Features {
			depends = append(depends, deb.FeaturePackageName(series, sub))
		}
		external, err := tr.Dependencies(normalDeps(fd.Deps))
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err,
				"failed to translate dependencies of crate %s", crate.Name)
		}
		depends = append(depends, external...)

		provides := []string{deb.FeaturePackageName(plain, f)}
		for _, p := range reduced.Provides[f] {
			provides = append(provides,
				deb.FeaturePackageName(series, p),
				deb.FeaturePackageName(plain, p))
		}

		packages = append(packages, BinaryPackage{
			Name:     deb.FeaturePackageName(series, f),
			Feature:  f,
			Provides: provides,
			Depends:  depends,
		})
	}

	buildDeps := deb.ToolchainDeps(crate.RustVersion)
	extra, err := tr.Dependencies(kindDeps(crate.Dependencies, manifest.KindBuild))
	if err != nil {
		return nil, err
	}
	buildDeps = append(buildDeps, extra...)

	testDeps, err := tr.Dependencies(kindDeps(crate.Dependencies, manifest.KindDev))
	if err != nil {
		return nil, err
	}

	return &Descriptor{
		Crate:         crate.Name,
		Version:       crate.Version.String(),
		CompatVersion: cratedb.CompatVersion(crate.Version),
		Source:        series,
		BuildDepends:  buildDeps,
		TestDepends:   testDeps,
		Packages:      packages,
		Testing:       cfg.Testing,
	}, nil
}

// normalDeps filters a feature's dependency set down to the runtime
// dependencies that belong in Depends.
func normalDeps(deps []manifest.Dependency) []manifest.Dependency {
	var out []manifest.Dependency
	for _, d := range deps {
		if d.Kind == manifest.KindNormal {
			out = append(out, d)
		}
	}
	return out
}

func kindDeps(deps []manifest.Dependency, kind manifest.DepKind) []manifest.Dependency {
	var out []manifest.Dependency
	for _, d := range deps {
		if d.Kind == kind && !d.Optional {
			out = append(out, d)
		}
	}
	return out
}

func sortedFeatures(g manifest.FeatureGraph) []string {
	fs := make([]string, 0, len(g))
	for f := range g {
		fs = append(fs, f)
	}
	sort.Strings(fs)
	return fs
}
