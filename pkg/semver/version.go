// Package semver implements cargo-flavored semantic versions and version
// requirements.
//
// Cargo requirements differ from plain semver ranges: a bare version like
// "1.2" is a caret requirement, comparators may omit minor and patch
// components, and wildcard components ("1.*") are allowed. This package
// parses versions and requirements into structured values; translating a
// requirement into installable package ranges lives in pkg/deb.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a fully specified semantic version: major.minor.patch with an
// optional pre-release tag and optional build metadata. Immutable once
// parsed; Version values are comparable and safe to use as map keys.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
	Pre   string // pre-release tag without the leading '-' (may be empty)
	Build string // build metadata without the leading '+' (may be empty)
}

// Parse parses a full version string like "1.2.3", "0.26.0-beta.1" or
// "0.9.11+spec-1.1.0". All three numeric components are required.
func Parse(s string) (Version, error) {
	var v Version

	rest := s
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		v.Build = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		v.Pre = rest[i+1:]
		rest = rest[:i]
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: need major.minor.patch", s)
	}
	var err error
	if v.Major, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
		return Version{}, fmt.Errorf("invalid major in %q: %w", s, err)
	}
	if v.Minor, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		return Version{}, fmt.Errorf("invalid minor in %q: %w", s, err)
	}
	if v.Patch, err = strconv.ParseUint(parts[2], 10, 64); err != nil {
		return Version{}, fmt.Errorf("invalid patch in %q: %w", s, err)
	}
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// compile-time constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version including pre-release and build metadata.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		b.WriteByte('-')
		b.WriteString(v.Pre)
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// IsPrerelease reports whether the version carries a pre-release tag.
func (v Version) IsPrerelease() bool { return v.Pre != "" }

// Compare orders versions by semver precedence: the numeric triple first,
// then pre-release (a pre-release sorts below the corresponding release,
// identifiers compared numerically where possible). Build metadata is
// ignored, per the semver specification.
func (v Version) Compare(o Version) int {
	if c := compareUint(v.Major, o.Major); c != 0 {
		return c
	}
	if c := compareUint(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := compareUint(v.Patch, o.Patch); c != 0 {
		return c
	}
	return comparePre(v.Pre, o.Pre)
}

// Less reports whether v has lower precedence than o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func comparePre(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "": // release > any pre-release
		return 1
	case b == "":
		return -1
	}

	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := comparePreIdent(as[i], bs[i]); c != 0 {
			return c
		}
	}
	// Shorter identifier lists sort first ("alpha" < "alpha.1").
	return compareUint(uint64(len(as)), uint64(len(bs)))
}

func comparePreIdent(a, b string) int {
	an, aerr := strconv.ParseUint(a, 10, 64)
	bn, berr := strconv.ParseUint(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		return compareUint(an, bn)
	case aerr == nil: // numeric identifiers sort below alphanumeric ones
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
