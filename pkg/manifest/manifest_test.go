package manifest

import (
	"reflect"
	"testing"

	"github.com/cratepack/cratepack/pkg/errors"
)

func TestBuildFeatureGraph(t *testing.T) {
	deps := []Dependency{
		{Name: "base-dep", Req: "1", DefaultFeatures: true},
		{Name: "opt-plain", Req: "1", Optional: true},
		{Name: "opt-hidden", Req: "1", Optional: true},
		{Name: "opt-sub", Req: "1", Optional: true},
		{Name: "dev-only", Req: "1", Kind: KindDev},
	}
	declared := map[string][]string{
		"default": {"std"},
		"std":     {"opt-plain"},
		"extra":   {"dep:opt-hidden", "opt-sub/tls", "std"},
	}

	g := BuildFeatureGraph(declared, deps)

	base := g[""]
	if len(base.Deps) != 1 || base.Deps[0].Name != "base-dep" {
		t.Fatalf("base deps = %+v, want just base-dep", base.Deps)
	}

	std := g["std"]
	if !reflect.DeepEqual(std.Features, []string{""}) {
		t.Errorf("std features = %v, want [\"\"]", std.Features)
	}
	if len(std.Deps) != 1 || std.Deps[0].Name != "opt-plain" {
		t.Errorf("std deps = %+v, want opt-plain", std.Deps)
	}

	extra := g["extra"]
	if !reflect.DeepEqual(extra.Features, []string{"", "std"}) {
		t.Errorf("extra features = %v, want [\"\" std]", extra.Features)
	}
	if len(extra.Deps) != 2 {
		t.Fatalf("extra deps = %+v, want 2", extra.Deps)
	}
	if extra.Deps[0].Name != "opt-hidden" {
		t.Errorf("dep: reference resolved to %q", extra.Deps[0].Name)
	}
	if extra.Deps[1].Name != "opt-sub" || !reflect.DeepEqual(extra.Deps[1].Features, []string{"tls"}) {
		t.Errorf("slash reference = %+v, want opt-sub with feature tls", extra.Deps[1])
	}

	// Implicit features: opt-plain and opt-sub are never referenced via
	// "dep:", so each gets a feature of its own name; opt-hidden does not.
	if fd, ok := g["opt-plain"]; !ok || len(fd.Deps) != 1 {
		t.Errorf("opt-plain implicit feature = %+v, %v", fd, ok)
	}
	if fd, ok := g["opt-sub"]; !ok || len(fd.Deps) != 1 {
		t.Errorf("opt-sub implicit feature = %+v, %v", fd, ok)
	}
	if _, ok := g["opt-hidden"]; ok {
		t.Error("opt-hidden should have no implicit feature")
	}
	if _, ok := g["dev-only"]; ok {
		t.Error("dev dependencies must not appear in the feature graph")
	}
}

func TestBuildFeatureGraphWeakReference(t *testing.T) {
	deps := []Dependency{
		{Name: "serde", Req: "1", Optional: true},
	}
	declared := map[string][]string{
		"serialize": {"serde?/derive"},
	}

	g := BuildFeatureGraph(declared, deps)
	fd := g["serialize"]
	if len(fd.Deps) != 1 || fd.Deps[0].Name != "serde" {
		t.Fatalf("weak reference deps = %+v", fd.Deps)
	}
	if !reflect.DeepEqual(fd.Deps[0].Features, []string{"derive"}) {
		t.Errorf("weak reference features = %v, want [derive]", fd.Deps[0].Features)
	}
}

func TestBuildFeatureGraphKeepsUnresolvableRefs(t *testing.T) {
	g := BuildFeatureGraph(map[string][]string{
		"broken": {"no-such-thing"},
	}, nil)

	fd := g["broken"]
	if !reflect.DeepEqual(fd.Features, []string{"", "no-such-thing"}) {
		t.Errorf("features = %v, want the dangling reference kept", fd.Features)
	}
}

func TestTransitiveDeps(t *testing.T) {
	g := FeatureGraph{
		"": {Deps: []Dependency{{Name: "core", Req: "1"}}},
		"net": {
			Features: []string{""},
			Deps:     []Dependency{{Name: "socket", Req: "1"}},
		},
		"full": {
			Features: []string{"", "net"},
			Deps:     []Dependency{{Name: "extras", Req: "1"}},
		},
	}

	features, deps, err := TransitiveDeps(g, "full")
	if err != nil {
		t.Fatalf("TransitiveDeps: %v", err)
	}
	if !reflect.DeepEqual(features, []string{"", "full", "net"}) {
		t.Errorf("features = %v", features)
	}
	var names []string
	for _, d := range deps {
		names = append(names, d.Name)
	}
	if !reflect.DeepEqual(names, []string{"core", "extras", "socket"}) {
		t.Errorf("deps = %v, want [core extras socket]", names)
	}
}

func TestTransitiveDepsUnknownFeature(t *testing.T) {
	g := FeatureGraph{"": {}}
	if _, _, err := TransitiveDeps(g, "nope"); !errors.Is(err, errors.ErrCodeUnknownFeature) {
		t.Fatalf("want UNKNOWN_FEATURE, got %v", err)
	}

	g = FeatureGraph{
		"":       {},
		"broken": {Features: []string{"", "missing"}},
	}
	if _, _, err := TransitiveDeps(g, "broken"); !errors.Is(err, errors.ErrCodeUnknownFeature) {
		t.Fatalf("want UNKNOWN_FEATURE for dangling reference, got %v", err)
	}
}

func TestTransitiveDepsCycleTerminates(t *testing.T) {
	g := FeatureGraph{
		"":  {},
		"a": {Features: []string{"", "b"}},
		"b": {Features: []string{"", "a"}},
	}
	features, _, err := TransitiveDeps(g, "a")
	if err != nil {
		t.Fatalf("TransitiveDeps: %v", err)
	}
	if !reflect.DeepEqual(features, []string{"", "a", "b"}) {
		t.Errorf("features = %v", features)
	}
}
