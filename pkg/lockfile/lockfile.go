// Package lockfile parses Cargo.lock files into an explicit dependency
// graph of exact pinned versions.
//
// Only packages from the public registry participate in the graph:
// entries with a git or path source, and entries with no source at all
// (workspace members), are excluded and reported. The resulting graph
// replaces loose version requirements with exact pins wherever one is
// available.
package lockfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/semver"
)

// registryPrefix marks a lockfile entry as coming from the public crate
// registry.
const registryPrefix = "registry+"

// ID identifies one pinned package: a (name, version) pair. Multiple
// versions of the same crate may coexist in a lockfile.
type ID struct {
	Name    string
	Version semver.Version
}

func (id ID) String() string { return id.Name + " " + id.Version.String() }

// Dep is one resolved dependency edge.
type Dep struct {
	Name    string
	Version semver.Version
}

// Package is one registry package with its resolved dependencies,
// sorted and deduplicated.
type Package struct {
	Name         string
	Version      semver.Version
	Dependencies []Dep
}

// ID returns the package's graph key.
func (p Package) ID() ID { return ID{Name: p.Name, Version: p.Version} }

// Graph is the dependency graph parsed from one lockfile. Read-only
// after parsing.
type Graph struct {
	packages map[ID]Package

	// Skipped lists the entries excluded from the graph (non-registry
	// sources and workspace members), for reporting.
	Skipped []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{packages: map[ID]Package{}}
}

// Add inserts a package at its (name, version) key.
func (g *Graph) Add(p Package) {
	g.packages[p.ID()] = p
}

// Len returns the number of packages, counting versions separately.
func (g *Graph) Len() int { return len(g.packages) }

// Package returns the package pinned at (name, version).
func (g *Graph) Package(name string, version semver.Version) (Package, bool) {
	p, ok := g.packages[ID{Name: name, Version: version}]
	return p, ok
}

// Versions returns all pinned versions of a crate, sorted ascending.
func (g *Graph) Versions(name string) []semver.Version {
	var vs []semver.Version
	for id := range g.packages {
		if id.Name == name {
			vs = append(vs, id.Version)
		}
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i].Less(vs[j]) })
	return vs
}

// Packages returns all packages sorted by name, then version.
func (g *Graph) Packages() []Package {
	ids := make([]ID, 0, len(g.packages))
	for id := range g.packages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Name != ids[j].Name {
			return ids[i].Name < ids[j].Name
		}
		return ids[i].Version.Less(ids[j].Version)
	})
	out := make([]Package, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.packages[id])
	}
	return out
}

// lockFile mirrors the TOML shape of Cargo.lock.
type lockFile struct {
	Package []lockPackage `toml:"package"`
}

type lockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Dependencies []string `toml:"dependencies"`
}

// ParseFile reads and parses a Cargo.lock file.
func ParseFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Parse parses lockfile content. Lockfiles are machine-generated, so any
// malformed required field is a hard error rather than a skip.
func Parse(data []byte) (*Graph, error) {
	var lf lockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "failed to parse lockfile as TOML")
	}
	if lf.Package == nil {
		return nil, errors.New(errors.ErrCodeInvalidLockfile, "lockfile missing 'package' array")
	}

	g := NewGraph()

	// First pass: index registry packages by name so dependency
	// references without an inline version can be resolved.
	versionsByName := map[string][]semver.Version{}
	for _, p := range lf.Package {
		if p.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidLockfile, "package entry missing 'name'")
		}
		if p.Version == "" {
			return nil, errors.New(errors.ErrCodeInvalidLockfile, "package %q missing 'version'", p.Name)
		}
		if skip, reason := excluded(p); skip {
			g.Skipped = append(g.Skipped, fmt.Sprintf("%s %s (%s)", p.Name, p.Version, reason))
			continue
		}
		v, err := semver.Parse(p.Version)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidVersion, err,
				"failed to parse version for package %q", p.Name)
		}
		versionsByName[p.Name] = append(versionsByName[p.Name], v)
	}

	// Second pass: build the graph with resolved dependency versions.
	for _, p := range lf.Package {
		if skip, _ := excluded(p); skip {
			continue
		}
		v, _ := semver.Parse(p.Version)

		var deps []Dep
		for _, ref := range p.Dependencies {
			dep, ok, err := resolveDep(ref, versionsByName)
			if err != nil {
				return nil, err
			}
			if ok {
				deps = append(deps, dep)
			}
		}
		sort.Slice(deps, func(i, j int) bool {
			if deps[i].Name != deps[j].Name {
				return deps[i].Name < deps[j].Name
			}
			return deps[i].Version.Less(deps[j].Version)
		})
		deps = dedupDeps(deps)

		g.Add(Package{Name: p.Name, Version: v, Dependencies: deps})
	}

	return g, nil
}

// excluded reports whether a lockfile entry stays out of the graph, and
// why. Entries without a source are workspace members; entries with a
// non-registry source come from git or path dependencies.
func excluded(p lockPackage) (bool, string) {
	switch {
	case p.Source == "":
		return true, "workspace member"
	case !strings.HasPrefix(p.Source, registryPrefix):
		return true, "source: " + p.Source
	default:
		return false, ""
	}
}

// resolveDep parses one dependency reference: either "name" or
// "name version". A missing inline version resolves through the name
// index; when several versions exist the maximum is used as a fallback
// (a well-formed lockfile always carries the inline version in that
// case). References to excluded packages resolve to nothing.
func resolveDep(ref string, versionsByName map[string][]semver.Version) (Dep, bool, error) {
	fields := strings.Fields(ref)
	if len(fields) == 0 {
		return Dep{}, false, nil
	}
	name := fields[0]

	if len(fields) > 1 {
		v, err := semver.Parse(fields[1])
		if err != nil {
			return Dep{}, false, errors.Wrap(errors.ErrCodeInvalidVersion, err,
				"failed to parse dependency version for crate %q", name)
		}
		return Dep{Name: name, Version: v}, true, nil
	}

	vs := versionsByName[name]
	switch len(vs) {
	case 0:
		return Dep{}, false, nil
	case 1:
		return Dep{Name: name, Version: vs[0]}, true, nil
	default:
		maxV := vs[0]
		for _, v := range vs[1:] {
			if maxV.Less(v) {
				maxV = v
			}
		}
		return Dep{Name: name, Version: maxV}, true, nil
	}
}

func dedupDeps(deps []Dep) []Dep {
	out := deps[:0]
	for i, d := range deps {
		if i == 0 || d != deps[i-1] {
			out = append(out, d)
		}
	}
	return out
}
