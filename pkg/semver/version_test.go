package semver

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{in: "1.2.3", want: Version{Major: 1, Minor: 2, Patch: 3}},
		{in: "0.0.1", want: Version{Patch: 1}},
		{in: "0.26.0-beta.1", want: Version{Minor: 26, Pre: "beta.1"}},
		{in: "0.9.11+spec-1.1.0", want: Version{Minor: 9, Patch: 11, Build: "spec-1.1.0"}},
		{in: "1.0.0-rc.1+build.5", want: Version{Major: 1, Pre: "rc.1", Build: "build.5"}},
		{in: "1.2", wantErr: true},
		{in: "1", wantErr: true},
		{in: "1.2.x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"1.2.3", "0.26.0-beta.1", "1.0.0-rc.1+build.5"} {
		if got := MustParse(s).String(); got != s {
			t.Errorf("round trip of %q = %q", s, got)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "2.0.0", -1},
		{"1.2.0", "1.1.9", 1},
		{"0.0.3", "0.0.4", -1},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-beta", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha", 1},
		{"1.0.0-2", "1.0.0-11", -1},        // numeric identifiers compare numerically
		{"1.0.0-alpha.9", "1.0.0-alpha.a", -1}, // numeric sorts below alphanumeric
		{"1.0.0+a", "1.0.0+b", 0},          // build metadata is ignored
	}

	for _, tt := range tests {
		a, b := MustParse(tt.a), MustParse(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := b.Compare(a); got != -tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}
