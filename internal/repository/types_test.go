package repository

import (
	"strings"
	"testing"
)

func TestRepoSpec_Predicates(t *testing.T) {
	tests := map[string]struct {
		spec      RepoSpec
		remote    bool
		modernRef bool
		hasRef    bool
	}{
		"remote with commit": {
			spec:   RepoSpec{Name: "kas", URL: "https://github.com/siemens/kas.git", Commit: "907816a5c4094b59a36aec12226e71c461c05b77"},
			remote: true, modernRef: true, hasRef: true,
		},
		"remote with legacy refspec": {
			spec:   RepoSpec{Name: "kas", URL: "https://github.com/siemens/kas.git", LegacyRefspec: "master"},
			remote: true, modernRef: false, hasRef: true,
		},
		"local without reference": {
			spec:   RepoSpec{Name: "this"},
			remote: false, modernRef: false, hasRef: false,
		},
		"whitespace url is local": {
			spec:   RepoSpec{Name: "this", URL: "  "},
			remote: false, modernRef: false, hasRef: false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tc.spec.IsRemote(); got != tc.remote {
				t.Errorf("IsRemote() = %v, want %v", got, tc.remote)
			}
			if got := tc.spec.IsLocal(); got == tc.remote {
				t.Errorf("IsLocal() = %v, want %v", got, !tc.remote)
			}
			if got := tc.spec.HasModernRef(); got != tc.modernRef {
				t.Errorf("HasModernRef() = %v, want %v", got, tc.modernRef)
			}
			if got := tc.spec.HasRef(); got != tc.hasRef {
				t.Errorf("HasRef() = %v, want %v", got, tc.hasRef)
			}
		})
	}
}

func TestRepoSpec_String(t *testing.T) {
	spec := RepoSpec{Name: "kas3", URL: "https://github.com/siemens/kas.git", Tag: "3.0.1"}
	s := spec.String()
	for _, want := range []string{"kas3", "github.com/siemens/kas.git", "tag=3.0.1"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}

	local := RepoSpec{Name: "this"}
	if got := local.String(); !strings.Contains(got, "local") || !strings.Contains(got, "no reference") {
		t.Errorf("String() = %q", got)
	}
}
