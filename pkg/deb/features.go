package deb

import (
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/manifest"
)

// Reduced is the outcome of feature graph reduction: the surviving
// installable features and, for each, the set of feature names it
// transitively provides.
type Reduced struct {
	// Features maps each surviving feature to its (possibly rewritten)
	// dependency set. The empty string is the base package.
	Features manifest.FeatureGraph

	// Provides maps each surviving feature to the features absorbed into
	// it, flattened through provides chains. Every surviving feature has
	// an entry, possibly empty.
	Provides map[string][]string
}

// MergeAliasedFeatures handles the corner case where a crate declares two
// features whose names collapse to the same package name (deb names
// cannot carry underscores, and features may use both spellings). The
// non-normalized spelling wins: the normalized sibling's dependencies are
// merged into it and all references are rewritten. A cycle introduced by
// the merge is a hard error requiring manual intervention.
func MergeAliasedFeatures(g manifest.FeatureGraph, logger *log.Logger) (manifest.FeatureGraph, error) {
	if logger == nil {
		logger = log.Default()
	}

	out := make(manifest.FeatureGraph, len(g))
	for f, fd := range g {
		out[f] = manifest.FeatureDeps{
			Features: slices.Clone(fd.Features),
			Deps:     slices.Clone(fd.Deps),
		}
	}

	var aliased []string
	for f := range out {
		if f != "" && BaseName(f) != f {
			aliased = append(aliased, f)
		}
	}
	sort.Strings(aliased)

	for _, f := range aliased {
		norm := BaseName(f)
		victim, ok := out[norm]
		if !ok {
			continue
		}
		delete(out, norm)

		merged := out[f]
		feats := map[string]bool{}
		for _, x := range append(merged.Features, victim.Features...) {
			if x != f && x != norm {
				feats[x] = true
			}
		}
		merged.Features = sortedKeys(feats)

		depSeen := map[string]bool{}
		var deps []manifest.Dependency
		for _, d := range append(merged.Deps, victim.Deps...) {
			if sig := d.Signature(); !depSeen[sig] {
				depSeen[sig] = true
				deps = append(deps, d)
			}
		}
		merged.Deps = deps
		out[f] = merged

		// Rewrite sibling references from the losing key to the winner.
		for other, fd := range out {
			changed := false
			for i, x := range fd.Features {
				if x == norm {
					fd.Features[i] = f
					changed = true
				}
			}
			if changed {
				out[other] = fd
			}
		}

		if closure(out, f)[f] {
			return nil, errors.New(errors.ErrCodeFeatureCycle,
				"merging features %q and %q (not separately representable) created a feature cycle; "+
					"the package needs manual patching", f, norm)
		}
		logger.Warnf("merged features %q and %q: not separately representable in package names", f, norm)
	}
	return out, nil
}

// closure returns the set of features transitively reachable from start
// through feature dependencies, using an iterative worklist so cyclic
// graphs terminate.
func closure(g manifest.FeatureGraph, start string) map[string]bool {
	seen := map[string]bool{}
	queue := []string{}
	for _, f := range g[start].Features {
		if !seen[f] {
			seen[f] = true
			queue = append(queue, f)
		}
	}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, sub := range g[f].Features {
			if !seen[sub] {
				seen[sub] = true
				queue = append(queue, sub)
			}
		}
	}
	return seen
}

// Collapse merges every feature's dependencies into the base entry,
// producing a single installable package that provides all features.
func Collapse(g manifest.FeatureGraph) Reduced {
	var provides []string
	depSeen := map[string]bool{}
	var deps []manifest.Dependency

	for _, f := range sortedFeatures(g) {
		if f != "" {
			provides = append(provides, f)
		}
		for _, d := range g[f].Deps {
			if sig := d.Signature(); !depSeen[sig] {
				depSeen[sig] = true
				deps = append(deps, d)
			}
		}
	}

	return Reduced{
		Features: manifest.FeatureGraph{"": {Deps: deps}},
		Provides: map[string][]string{"": provides},
	}
}

// Reduce computes the minimal installable package set. Features with
// identical dependency sets collapse into the first one; features whose
// only dependency is a single other feature are absorbed into it and
// recorded as provided, with provides chains flattened transitively.
func Reduce(g manifest.FeatureGraph) Reduced {
	work := make(manifest.FeatureGraph, len(g))
	for f, fd := range g {
		work[f] = manifest.FeatureDeps{
			Features: slices.Clone(fd.Features),
			Deps:     slices.Clone(fd.Deps),
		}
	}

	// Group features by identical dependency sets; later members become
	// plain aliases of the first.
	groups := map[string][]string{}
	for _, f := range sortedFeatures(work) {
		sig := depSetSignature(work[f])
		groups[sig] = append(groups[sig], f)
	}
	for _, members := range groups {
		for _, f := range members[1:] {
			work[f] = manifest.FeatureDeps{Features: []string{members[0]}}
		}
	}

	// A feature with no external deps and exactly one feature dependency
	// is provided by that dependency.
	provides := map[string][]string{}
	var provided []string
	for _, f := range sortedFeatures(work) {
		fd := work[f]
		if len(fd.Deps) > 0 || len(fd.Features) != 1 {
			continue
		}
		k := fd.Features[0]
		provides[k] = append(provides[k], f)
		provided = append(provided, f)
	}
	for _, f := range provided {
		delete(work, f)
	}

	// Flatten provides chains for the survivors.
	flat := make(map[string][]string, len(work))
	for f := range work {
		seen := map[string]bool{}
		queue := slices.Clone(provides[f])
		for _, x := range queue {
			seen[x] = true
		}
		for len(queue) > 0 {
			x := queue[0]
			queue = queue[1:]
			for _, y := range provides[x] {
				if !seen[y] {
					seen[y] = true
					queue = append(queue, y)
				}
			}
		}
		flat[f] = sortedKeys(seen)
	}

	return Reduced{Features: work, Provides: flat}
}

func depSetSignature(fd manifest.FeatureDeps) string {
	feats := slices.Clone(fd.Features)
	sort.Strings(feats)
	sigs := make([]string, 0, len(fd.Deps))
	for _, d := range fd.Deps {
		sigs = append(sigs, d.Signature())
	}
	sort.Strings(sigs)
	return strings.Join(feats, "\x00") + "\x01" + strings.Join(sigs, "\x00")
}

func sortedFeatures(g manifest.FeatureGraph) []string {
	fs := make([]string, 0, len(g))
	for f := range g {
		fs = append(fs, f)
	}
	sort.Strings(fs)
	return fs
}

func sortedKeys(m map[string]bool) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
