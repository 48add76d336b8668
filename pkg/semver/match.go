package semver

// Matches reports whether v satisfies every comparator of the
// requirement. Pre-release versions only match when some comparator
// names a pre-release on the same major.minor.patch triple; in
// particular "*" never matches a pre-release.
func (r Requirement) Matches(v Version) bool {
	for _, c := range r.Comparators {
		if !c.matches(v) {
			return false
		}
	}
	if v.Pre != "" {
		for _, c := range r.Comparators {
			if c.Pre != "" &&
				c.Major == v.Major &&
				c.Minor != nil && *c.Minor == v.Minor &&
				c.Patch != nil && *c.Patch == v.Patch {
				return true
			}
		}
		return false
	}
	return true
}

// MaxMatching returns the highest version in vs satisfying the
// requirement.
func (r Requirement) MaxMatching(vs []Version) (Version, bool) {
	var best Version
	found := false
	for _, v := range vs {
		if !r.Matches(v) {
			continue
		}
		if !found || best.Less(v) {
			best = v
			found = true
		}
	}
	return best, found
}

func (c Comparator) matches(v Version) bool {
	switch c.Op {
	case OpExact, OpWildcard:
		return c.compareAt(v) == 0
	case OpGreater:
		return c.compareAt(v) > 0
	case OpGreaterEq:
		return c.compareAt(v) >= 0
	case OpLess:
		return c.compareAt(v) < 0
	case OpLessEq:
		return c.compareAt(v) <= 0
	case OpTilde:
		if c.compareFull(v) < 0 {
			return false
		}
		if v.Major != c.Major {
			return false
		}
		return c.Minor == nil || v.Minor == *c.Minor
	case OpCaret:
		if c.compareFull(v) < 0 {
			return false
		}
		return c.caretCompatible(v)
	}
	return false
}

// compareAt compares v to the comparator at the comparator's own
// precision: omitted components never participate. Pre-release tags
// break ties via semver precedence, an absent tag ordering above any
// present one.
func (c Comparator) compareAt(v Version) int {
	if v.Major != c.Major {
		return compareUint(v.Major, c.Major)
	}
	if c.Minor == nil {
		return 0
	}
	if v.Minor != *c.Minor {
		return compareUint(v.Minor, *c.Minor)
	}
	if c.Patch == nil {
		return 0
	}
	if v.Patch != *c.Patch {
		return compareUint(v.Patch, *c.Patch)
	}
	return comparePre(v.Pre, c.Pre)
}

// compareFull compares v to the comparator with omitted components
// zero-filled, for the lower-bound checks of tilde and caret.
func (c Comparator) compareFull(v Version) int {
	var minor, patch uint64
	if c.Minor != nil {
		minor = *c.Minor
	}
	if c.Patch != nil {
		patch = *c.Patch
	}
	return v.Compare(Version{Major: c.Major, Minor: minor, Patch: patch, Pre: c.Pre})
}

// caretCompatible reports whether v stays below the caret upper bound:
// the next major, or the next minor below 1.0, or the next patch below
// 0.1.
func (c Comparator) caretCompatible(v Version) bool {
	if c.Major != 0 {
		return v.Major == c.Major
	}
	switch {
	case c.Minor == nil:
		return v.Major == 0
	case *c.Minor != 0:
		return v.Major == 0 && v.Minor == *c.Minor
	case c.Patch == nil:
		return v.Major == 0 && v.Minor == 0
	default:
		return v.Major == 0 && v.Minor == 0 && v.Patch == *c.Patch
	}
}
