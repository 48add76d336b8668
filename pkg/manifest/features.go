package manifest

import "strings"

// BuildFeatureGraph assembles a FeatureGraph from a crate's declared
// feature map and its dependency list.
//
// Feature entries follow cargo's syntax: a plain name references another
// feature, "dep:name" enables an optional dependency, and "name/feat"
// enables a dependency with one of its features turned on (the weak
// "name?/feat" form is treated like the strong one). Optional
// dependencies that are never referenced through "dep:" additionally get
// an implicit feature carrying their own name.
//
// The base entry "" holds the mandatory dependencies, and every feature
// depends on the base so that walking any feature reaches it.
func BuildFeatureGraph(declared map[string][]string, deps []Dependency) FeatureGraph {
	byName := map[string]Dependency{}
	for _, d := range deps {
		if d.Kind == KindNormal {
			byName[d.Name] = d
		}
	}

	g := FeatureGraph{}
	var base []Dependency
	for _, d := range deps {
		if d.Kind == KindNormal && !d.Optional {
			base = append(base, d)
		}
	}
	g[""] = FeatureDeps{Deps: base}

	// Optional deps referenced via "dep:" anywhere lose their implicit
	// feature.
	hidden := map[string]bool{}
	for _, entries := range declared {
		for _, e := range entries {
			if name, ok := strings.CutPrefix(e, "dep:"); ok {
				hidden[name] = true
			}
		}
	}

	for name, entries := range declared {
		fd := FeatureDeps{Features: []string{""}}
		for _, e := range entries {
			if depName, ok := strings.CutPrefix(e, "dep:"); ok {
				if d, ok := byName[depName]; ok {
					fd.Deps = append(fd.Deps, d)
				}
				continue
			}
			if depName, feat, ok := strings.Cut(e, "/"); ok {
				depName = strings.TrimSuffix(depName, "?")
				if d, ok := byName[depName]; ok {
					d.Features = append(append([]string{}, d.Features...), feat)
					fd.Deps = append(fd.Deps, d)
				}
				continue
			}
			if _, isFeature := declared[e]; isFeature {
				fd.Features = append(fd.Features, e)
				continue
			}
			if d, ok := byName[e]; ok && d.Optional {
				fd.Deps = append(fd.Deps, d)
				continue
			}
			// Unresolvable references are kept so that feature walks can
			// report them instead of silently dropping requirements.
			fd.Features = append(fd.Features, e)
		}
		g[name] = fd
	}

	for _, d := range deps {
		if d.Kind != KindNormal || !d.Optional || hidden[d.Name] {
			continue
		}
		if _, exists := g[d.Name]; exists {
			continue
		}
		g[d.Name] = FeatureDeps{Features: []string{""}, Deps: []Dependency{d}}
	}

	return g
}
