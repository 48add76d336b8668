// Package manifest models a crate's declared dependency surface: typed
// dependencies, the feature map, and the Reader interface that supplies
// both from a registry or a local manifest.
//
// The types here are the boundary between cratepack's translation core and
// whatever produces crate metadata. pkg/integrations/crates implements
// Reader against the crates.io API; tests use in-memory fakes.
package manifest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/semver"
)

// DepKind classifies a dependency by when it is needed.
type DepKind int

// Dependency kinds, mirroring cargo's normal/dev/build split.
const (
	KindNormal DepKind = iota
	KindDev
	KindBuild
)

func (k DepKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindDev:
		return "dev"
	case KindBuild:
		return "build"
	}
	return "unknown"
}

// Dependency is one declared dependency of a crate.
type Dependency struct {
	Name            string   // crate name as published (original casing/separators)
	Req             string   // version requirement string, e.g. "^1.2" or "*"
	Kind            DepKind  // normal, dev or build
	Optional        bool     // optional dependencies are pulled in by features
	Features        []string // features of the dependency to enable
	DefaultFeatures bool     // whether the dependency's default feature is enabled
}

// Signature returns a stable identity string for grouping dependencies by
// their full requirement, not just their name.
func (d Dependency) Signature() string {
	feats := slices.Clone(d.Features)
	sort.Strings(feats)
	return fmt.Sprintf("%s|%s|%v|%s", d.Name, d.Req, d.DefaultFeatures, strings.Join(feats, ","))
}

// FeatureDeps is the dependency set of one feature: the other features it
// pulls in and the external dependencies it adds.
type FeatureDeps struct {
	Features []string     // names of other features (the empty string is the base)
	Deps     []Dependency // external dependencies enabled by this feature
}

// FeatureGraph maps feature names to their dependency sets. The empty
// string key is the base: the crate's mandatory dependencies with no
// feature enabled. Every named feature lists the base among its feature
// dependencies, so walking any feature reaches the mandatory set.
type FeatureGraph map[string]FeatureDeps

// Crate is the dependency-relevant slice of a crate's manifest.
type Crate struct {
	Name         string
	Version      semver.Version
	RustVersion  string // minimum rust version, empty when undeclared
	Features     FeatureGraph
	Dependencies []Dependency // all declared dependencies, every kind
}

// Reader supplies crate metadata. The version may be empty, in which case
// the newest published version is used.
type Reader interface {
	Crate(ctx context.Context, name, version string) (*Crate, error)
}

// TransitiveDeps resolves a feature to the full set of features it
// implies and the union of external dependencies those features add,
// walking feature references breadth-first. The returned feature list
// includes the start feature itself and is sorted; dependencies are
// deduplicated by signature and sorted by name.
//
// An unknown feature anywhere in the walk is an error: it means the
// manifest references a feature it never defines.
func TransitiveDeps(g FeatureGraph, feature string) ([]string, []Dependency, error) {
	if _, ok := g[feature]; !ok {
		return nil, nil, errors.New(errors.ErrCodeUnknownFeature, "unknown feature: %q", feature)
	}

	seen := map[string]bool{feature: true}
	queue := []string{feature}
	var deps []Dependency
	depSeen := map[string]bool{}

	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]

		fd, ok := g[f]
		if !ok {
			return nil, nil, errors.New(errors.ErrCodeUnknownFeature,
				"feature %q references undefined feature %q", feature, f)
		}
		for _, d := range fd.Deps {
			if sig := d.Signature(); !depSeen[sig] {
				depSeen[sig] = true
				deps = append(deps, d)
			}
		}
		for _, sub := range fd.Features {
			if !seen[sub] {
				seen[sub] = true
				queue = append(queue, sub)
			}
		}
	}

	features := make([]string, 0, len(seen))
	for f := range seen {
		features = append(features, f)
	}
	sort.Strings(features)
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Name != deps[j].Name {
			return deps[i].Name < deps[j].Name
		}
		return deps[i].Signature() < deps[j].Signature()
	})
	return features, deps, nil
}
