package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a requirement comparator operator.
type Op int

// Comparator operators, following cargo's requirement grammar. A bare
// version without an operator parses as OpCaret, cargo's default.
const (
	OpExact     Op = iota // =1.2.3
	OpGreater             // >1.2.3
	OpGreaterEq           // >=1.2.3
	OpLess                // <1.2.3
	OpLessEq              // <=1.2.3
	OpTilde               // ~1.2.3
	OpCaret               // ^1.2.3 (also the default for bare versions)
	OpWildcard            // 1.2.* (trailing components wildcarded)
)

func (op Op) String() string {
	switch op {
	case OpExact:
		return "="
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	case OpTilde:
		return "~"
	case OpCaret:
		return "^"
	case OpWildcard:
		return "*"
	}
	return "?"
}

// Comparator is a single operator+version pair within a requirement.
// Minor and Patch are nil when the component was omitted or wildcarded
// ("1", "1.2", "1.*"). A comparator never has Patch set without Minor.
type Comparator struct {
	Op    Op
	Major uint64
	Minor *uint64
	Patch *uint64
	Pre   string // pre-release tag, e.g. "beta.1" from "=0.26.0-beta.1"
}

// String renders the comparator in cargo syntax.
func (c Comparator) String() string {
	var b strings.Builder
	if c.Op != OpWildcard {
		b.WriteString(c.Op.String())
	}
	fmt.Fprintf(&b, "%d", c.Major)
	if c.Minor != nil {
		fmt.Fprintf(&b, ".%d", *c.Minor)
		if c.Patch != nil {
			fmt.Fprintf(&b, ".%d", *c.Patch)
		} else if c.Op == OpWildcard {
			b.WriteString(".*")
		}
	} else if c.Op == OpWildcard {
		b.WriteString(".*")
	}
	if c.Pre != "" {
		b.WriteByte('-')
		b.WriteString(c.Pre)
	}
	return b.String()
}

// Requirement is a parsed version requirement: the conjunction of its
// comparators. An empty comparator list (from "*" or "") matches any
// version.
type Requirement struct {
	Comparators []Comparator
	raw         string
}

// String returns the requirement as originally written, or "*" for the
// match-anything requirement.
func (r Requirement) String() string {
	if r.raw != "" {
		return r.raw
	}
	return "*"
}

// MatchesAny reports whether the requirement places no constraint at all.
func (r Requirement) MatchesAny() bool { return len(r.Comparators) == 0 }

// ParseRequirement parses a cargo version requirement: comma-separated
// comparators such as "^1.2", "~0.9.3", ">=0.3, <0.5", "1.*" or "*".
func ParseRequirement(s string) (Requirement, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == "*" {
		return Requirement{raw: trimmed}, nil
	}

	var comps []Comparator
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Requirement{}, fmt.Errorf("invalid requirement %q: empty comparator", s)
		}
		c, err := parseComparator(part)
		if err != nil {
			return Requirement{}, fmt.Errorf("invalid requirement %q: %w", s, err)
		}
		comps = append(comps, c)
	}
	return Requirement{Comparators: comps, raw: trimmed}, nil
}

func parseComparator(s string) (Comparator, error) {
	op, rest := splitOp(s)
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return Comparator{}, fmt.Errorf("missing version after %q", s)
	}

	c := Comparator{Op: op}
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		// Build metadata carries no ordering information; drop it.
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		c.Pre = rest[i+1:]
		rest = rest[:i]
	}

	parts := strings.Split(rest, ".")
	if len(parts) > 3 {
		return Comparator{}, fmt.Errorf("too many version components in %q", s)
	}
	for i, p := range parts {
		if isWildcard(p) {
			if op != OpCaret && op != OpExact && op != OpWildcard && op != OpTilde {
				return Comparator{}, fmt.Errorf("wildcard not allowed with operator %s", op)
			}
			if i == 0 {
				return Comparator{}, fmt.Errorf("wildcard major version in %q", s)
			}
			// "1.*" and "1.*.*" drop the wildcarded components entirely.
			c.Op = OpWildcard
			return c, nil
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Comparator{}, fmt.Errorf("invalid version component %q", p)
		}
		switch i {
		case 0:
			c.Major = n
		case 1:
			v := n
			c.Minor = &v
		case 2:
			v := n
			c.Patch = &v
		}
	}
	if c.Pre != "" && c.Patch == nil {
		return Comparator{}, fmt.Errorf("pre-release tag requires a full version in %q", s)
	}
	return c, nil
}

func splitOp(s string) (Op, string) {
	switch {
	case strings.HasPrefix(s, ">="):
		return OpGreaterEq, s[2:]
	case strings.HasPrefix(s, "<="):
		return OpLessEq, s[2:]
	case strings.HasPrefix(s, ">"):
		return OpGreater, s[1:]
	case strings.HasPrefix(s, "<"):
		return OpLess, s[1:]
	case strings.HasPrefix(s, "="):
		return OpExact, s[1:]
	case strings.HasPrefix(s, "~"):
		return OpTilde, s[1:]
	case strings.HasPrefix(s, "^"):
		return OpCaret, s[1:]
	default:
		// Cargo treats a bare version as a caret requirement.
		return OpCaret, s
	}
}

func isWildcard(s string) bool { return s == "*" || s == "x" || s == "X" }
