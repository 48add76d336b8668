package deb

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/manifest"
	"github.com/cratepack/cratepack/pkg/semver"
)

// PkgPrefix is prepended to every crate-derived package name.
const PkgPrefix = "rust"

// BaseName normalizes a crate or feature name for use in a package name:
// lower-cased with underscores replaced by hyphens.
func BaseName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// SourceName returns the base package name for a crate, e.g. "rust-serde"
// for the crate "serde" or "proc_macro2" alike.
func SourceName(crate string) string {
	return PkgPrefix + "-" + BaseName(crate)
}

// FeaturePackageName returns the installable dev package name for one
// feature of a crate: "{base}-dev" for the empty feature,
// "{base}+{feature}-dev" otherwise. base may already carry a version
// series suffix.
func FeaturePackageName(base, feature string) string {
	if feature == "" {
		return base + "-dev"
	}
	return base + "+" + BaseName(feature) + "-dev"
}

// Series returns the version series used in package names: the major
// for 1.0 and up, "0.minor" below 1.0, "0.0.patch" below 0.1, and the
// full version for pre-releases.
func Series(v semver.Version) Part {
	switch {
	case v.Pre != "":
		return Prerelease(v.Major, v.Minor, v.Patch, v.Pre)
	case v.Major != 0:
		return Major(v.Major)
	case v.Minor != 0:
		return MajorMinor(0, v.Minor)
	default:
		return Full(0, 0, v.Patch)
	}
}

// Translator converts dependency requirements into deb clause lists.
// The zero value is usable; Logger defaults to the package-level default
// logger when nil.
type Translator struct {
	// AllowPrerelease permits dependencies whose requirement names a
	// pre-release version. Such dependencies are always rendered against
	// the full version string; this flag only controls whether doing so is
	// worth a warning or accepted silently.
	AllowPrerelease bool

	Logger *log.Logger
}

func (t *Translator) logger() *log.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.Default()
}

// Dependency translates one cargo dependency into its deb clause list:
// one clause set per enabled-feature suffix ("+default-dev", "+foo-dev",
// or plain "-dev" when no features are enabled).
func (t *Translator) Dependency(dep manifest.Dependency) ([]string, error) {
	dashed := BaseName(dep.Name)

	var suffixes []string
	if dep.DefaultFeatures {
		suffixes = append(suffixes, "+default-dev")
	}
	for _, f := range dep.Features {
		suffixes = append(suffixes, "+"+BaseName(f)+"-dev")
	}
	if len(suffixes) == 0 {
		suffixes = append(suffixes, "-dev")
	}

	req, err := semver.ParseRequirement(dep.Req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequirement, err,
			"dependency %s has unparsable requirement %q", dep.Name, dep.Req)
	}

	var clauses []string
	for _, suffix := range suffixes {
		base := PkgPrefix + "-" + dashed
		var r Range
		for _, c := range req.Comparators {
			op, err := t.coerce(dep, c)
			if err != nil {
				return nil, err
			}
			if err := constrain(&r, dep, c, op); err != nil {
				return nil, err
			}
		}
		cs, err := r.Clauses(base, suffix)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err,
				"dependency %s %q", dep.Name, dep.Req)
		}
		clauses = append(clauses, cs...)
	}
	return clauses, nil
}

// Dependencies translates a dependency list into a sorted, deduplicated
// clause list (the conjunction of all clauses).
func (t *Translator) Dependencies(deps []manifest.Dependency) ([]string, error) {
	var all []string
	for _, dep := range deps {
		cs, err := t.Dependency(dep)
		if err != nil {
			return nil, err
		}
		all = append(all, cs...)
	}
	slices.Sort(all)
	return slices.Compact(all), nil
}

// coerce rejects or adjusts comparators the deb range syntax cannot
// express. ">= 0" collapses to "> 0" with a warning, since deb ranges
// cannot distinguish "since the beginning of 0.x" from "any version".
func (t *Translator) coerce(dep manifest.Dependency, c semver.Comparator) (semver.Op, error) {
	if c.Pre != "" && !t.AllowPrerelease {
		t.logger().Warnf("dependency %s has pre-release requirement %s, using full version string",
			dep.Name, c)
	}

	p := PartFromComparator(c)
	maj, min, pat := p.MMP()
	if maj == 0 && min == 0 && pat == 0 && c.Pre == "" {
		switch c.Op {
		case semver.OpGreater:
			return c.Op, nil
		case semver.OpGreaterEq:
			t.logger().Warnf("coercing unrepresentable requirement '>= 0' to '> 0' for %s", dep.Name)
			return semver.OpGreater, nil
		}
	}
	return c.Op, nil
}

// constrain folds one comparator into the range, following cargo's
// documented operator semantics.
func constrain(r *Range, dep manifest.Dependency, c semver.Comparator, op semver.Op) error {
	p := PartFromComparator(c)

	switch op {
	case semver.OpLess:
		if maj, min, pat := p.MMP(); maj == 0 && min == 0 && pat == 0 && c.Pre == "" {
			return errors.New(errors.ErrCodeUnrepresentable,
				"unrepresentable requirement for %s: %s", dep.Name, c)
		}
		r.ConstrainUpper(p)
	case semver.OpLessEq:
		r.ConstrainUpper(p.Increment())
	case semver.OpGreater:
		r.ConstrainLower(p.Increment())
	case semver.OpGreaterEq:
		r.ConstrainLower(p)
	case semver.OpExact, semver.OpWildcard:
		r.ConstrainLower(p)
		r.ConstrainUpper(p.Increment())
	case semver.OpTilde:
		// ~1 and ~1.2 behave like exact at their precision; ~1.2.3 allows
		// patch-level movement within 1.2.
		r.ConstrainLower(p)
		if c.Patch != nil {
			maj, min, _ := p.MMP()
			r.ConstrainUpper(MajorMinor(maj, min+1))
		} else {
			r.ConstrainUpper(p.Increment())
		}
	case semver.OpCaret:
		r.ConstrainLower(p)
		maj, min, _ := p.MMP()
		switch {
		case maj == 0 && (c.Minor == nil || min == 0):
			// ^0, ^0.0, ^0.0.x: only the named version's series.
			r.ConstrainUpper(p.Increment())
		case maj == 0:
			r.ConstrainUpper(MajorMinor(0, min+1))
		default:
			r.ConstrainUpper(Major(maj + 1))
		}
	default:
		return errors.New(errors.ErrCodeInternal, "unhandled operator %v for %s", op, dep.Name)
	}
	return nil
}

// ToolchainDeps returns the build dependencies on the Rust toolchain,
// versioned when the crate declares a minimum rust version.
func ToolchainDeps(minRustVersion string) []string {
	rustc := "rustc:native"
	if minRustVersion != "" {
		rustc = fmt.Sprintf("rustc:native (>= %s)", minRustVersion)
	}
	// libstd-rust-dev picks up the right arch variant for cross-builds.
	return []string{"cargo:native", rustc, "libstd-rust-dev"}
}
