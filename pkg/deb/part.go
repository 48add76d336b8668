// Package deb translates cargo dependency metadata into deb-style package
// relationships: version ranges rendered as `>=`/`<<` clauses against
// semver-suffixed package names, and feature graphs reduced to a minimal
// set of installable packages connected by Provides.
package deb

import (
	"fmt"

	"github.com/cratepack/cratepack/pkg/errors"
	"github.com/cratepack/cratepack/pkg/semver"
)

type shape int

const (
	shapeMajor shape = iota // "1"
	shapeMinor              // "1.2"
	shapePatch              // "1.2.3"
	shapePre                // "1.2.3-beta.1"
)

// Part is a partially specified version: major, major.minor,
// major.minor.patch, or a full version with a pre-release tag. Parts order
// by their numeric triple only; the pre-release tag is carried through
// rendering but never compared, since two different pre-release tags are
// never treated as compatible with each other.
type Part struct {
	major, minor, patch uint64
	pre                 string
	shape               shape
}

// Major returns the part "m".
func Major(m uint64) Part { return Part{major: m, shape: shapeMajor} }

// MajorMinor returns the part "m.n".
func MajorMinor(m, n uint64) Part { return Part{major: m, minor: n, shape: shapeMinor} }

// Full returns the part "m.n.p".
func Full(m, n, p uint64) Part { return Part{major: m, minor: n, patch: p, shape: shapePatch} }

// Prerelease returns the part "m.n.p-pre".
func Prerelease(m, n, p uint64, pre string) Part {
	return Part{major: m, minor: n, patch: p, pre: pre, shape: shapePre}
}

// PartFromComparator builds the Part a requirement comparator names.
// A comparator with a pre-release tag always yields a Prerelease part with
// omitted components zeroed, since pre-release requirements are handled by
// full-version identity rather than range algebra.
func PartFromComparator(c semver.Comparator) Part {
	if c.Pre != "" {
		var minor, patch uint64
		if c.Minor != nil {
			minor = *c.Minor
		}
		if c.Patch != nil {
			patch = *c.Patch
		}
		return Prerelease(c.Major, minor, patch, c.Pre)
	}
	switch {
	case c.Minor == nil:
		return Major(c.Major)
	case c.Patch == nil:
		return MajorMinor(c.Major, *c.Minor)
	default:
		return Full(c.Major, *c.Minor, *c.Patch)
	}
}

// Increment bumps the least-specific present component by one, keeping a
// pre-release tag if present: 1 -> 2, 1.2 -> 1.3, 1.2.3 -> 1.2.4,
// 1.2.3-beta -> 1.2.4-beta.
func (p Part) Increment() Part {
	switch p.shape {
	case shapeMajor:
		return Major(p.major + 1)
	case shapeMinor:
		return MajorMinor(p.major, p.minor+1)
	case shapePatch:
		return Full(p.major, p.minor, p.patch+1)
	default:
		return Prerelease(p.major, p.minor, p.patch+1, p.pre)
	}
}

// MMP returns the numeric triple with absent components zeroed.
func (p Part) MMP() (uint64, uint64, uint64) { return p.major, p.minor, p.patch }

// Compare orders parts by their zero-filled numeric triple. Pre-release
// tags do not participate in the ordering.
func (p Part) Compare(o Part) int {
	if p.major != o.major {
		return cmpUint(p.major, o.major)
	}
	if p.minor != o.minor {
		return cmpUint(p.minor, o.minor)
	}
	return cmpUint(p.patch, o.patch)
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// String renders the part at its own precision.
func (p Part) String() string {
	switch p.shape {
	case shapeMajor:
		return fmt.Sprintf("%d", p.major)
	case shapeMinor:
		return fmt.Sprintf("%d.%d", p.major, p.minor)
	case shapePatch:
		return fmt.Sprintf("%d.%d.%d", p.major, p.minor, p.patch)
	default:
		return fmt.Sprintf("%d.%d.%d-%s", p.major, p.minor, p.patch, p.pre)
	}
}

// Range accumulates requirement comparators into a single interval: an
// optional inclusive lower bound and an optional exclusive upper bound.
// Constraining only ever tightens a bound.
type Range struct {
	lower *Part // inclusive, nil = unbounded
	upper *Part // exclusive, nil = unbounded
}

// ConstrainLower raises the lower bound to p unless the current bound is
// already higher.
func (r *Range) ConstrainLower(p Part) {
	if r.lower == nil || p.Compare(*r.lower) >= 0 {
		r.lower = &p
	}
}

// ConstrainUpper lowers the upper bound to p unless the current bound is
// already lower.
func (r *Range) ConstrainUpper(p Part) {
	if r.upper == nil || p.Compare(*r.upper) < 0 {
		r.upper = &p
	}
}

// Lower returns the inclusive lower bound, or nil if unbounded.
func (r *Range) Lower() *Part { return r.lower }

// Upper returns the exclusive upper bound, or nil if unbounded.
func (r *Range) Upper() *Part { return r.upper }

// Clauses renders the range as deb dependency clauses against base+suffix.
//
// With both bounds set the renderer picks the coarsest semver-suffixed
// package name(s) that can satisfy the range: a name like "rust-foo-2"
// provides every sub-range of major version 2, so when the bounds span
// exactly one major (or 0.x minor, or x.y patch) series a single suffixed
// clause suffices, and an explicit bound is dropped when the suffix
// already implies it. Bounds carry the "-~~" marker so that any deb
// revision of the named version still satisfies the clause.
func (r *Range) Clauses(base, suffix string) ([]string, error) {
	switch {
	case r.lower == nil && r.upper == nil:
		return []string{base + suffix}, nil
	case r.upper == nil:
		return []string{fmt.Sprintf("%s%s (>= %s-~~)", base, suffix, r.lower)}, nil
	case r.lower == nil:
		return []string{fmt.Sprintf("%s%s (<< %s-~~)", base, suffix, r.upper)}, nil
	}

	ge, lt := *r.lower, *r.upper
	if ge.Compare(lt) >= 0 {
		return nil, errors.New(errors.ErrCodeBadRange, "bad version range: >= %s, << %s", ge, lt)
	}

	type bound struct {
		name    *Part // semver suffix for the package name, nil = unversioned
		greater bool
		cons    Part
	}
	var bounds []bound

	geMaj, geMin, _ := ge.MMP()
	ltMaj, ltMin, ltPat := lt.MMP()

	switch {
	case geMaj+1 == ltMaj && ltMin == 0 && ltPat == 0:
		// The upper bound is implied by naming the major series.
		bounds = append(bounds, bound{name: ptr(Major(geMaj)), greater: true, cons: ge})
	case geMaj < ltMaj:
		// Spans several major series; only the unversioned name can satisfy.
		bounds = append(bounds,
			bound{greater: true, cons: ge},
			bound{greater: false, cons: lt})
	case geMaj == 0 && geMin+1 == ltMin && ltPat == 0:
		// The upper bound is implied by naming the 0.x series.
		bounds = append(bounds, bound{name: ptr(MajorMinor(0, geMin)), greater: true, cons: ge})
	case geMaj == 0 && geMin < ltMin:
		bounds = append(bounds,
			bound{greater: true, cons: ge},
			bound{greater: false, cons: lt})
	case geMin < ltMin:
		// Different minors within one major series.
		bounds = append(bounds,
			bound{name: ptr(Major(geMaj)), greater: true, cons: ge},
			bound{name: ptr(Major(ltMaj)), greater: false, cons: lt})
	default:
		// Only the patch level differs.
		bounds = append(bounds,
			bound{name: ptr(MajorMinor(geMaj, geMin)), greater: true, cons: ge},
			bound{name: ptr(MajorMinor(ltMaj, ltMin)), greater: false, cons: lt})
	}

	var clauses []string
	for _, b := range bounds {
		switch {
		case b.name == nil && b.greater:
			clauses = append(clauses, fmt.Sprintf("%s%s (>= %s-~~)", base, suffix, b.cons))
		case b.name == nil:
			clauses = append(clauses, fmt.Sprintf("%s%s (<< %s-~~)", base, suffix, b.cons))
		case b.greater:
			if b.cons.Compare(*b.name) == 0 {
				// name-x >= x is redundant, drop the bound.
				clauses = append(clauses, fmt.Sprintf("%s-%s%s", base, b.name, suffix))
			} else {
				clauses = append(clauses, fmt.Sprintf("%s-%s%s (>= %s-~~)", base, b.name, suffix, b.cons))
			}
		default:
			if b.cons.Compare(*b.name) == 0 {
				// name-x << x is unsatisfiable, drop the whole clause.
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s-%s%s (<< %s-~~)", base, b.name, suffix, b.cons))
		}
	}
	return clauses, nil
}

func ptr(p Part) *Part { return &p }
