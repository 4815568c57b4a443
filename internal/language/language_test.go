package language

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"eng", "eng"},
		{"en", "eng"},
		{"ger", "deu"},
		{"GE", "deu"},
		{"fre", "fra"},
		{"chi", "chi_sim"},
		{"baq", "eus"},
		{"Spanish", "spa"},
		{" dut ", "nld"},
		{"sw", "swa"},
		{"und", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	installed := []string{"eng", "deu"}
	overrides := map[string]string{"fra": "deu"}

	tests := []struct {
		name         string
		installed    []string
		requested    string
		overrides    map[string]string
		fallback     string
		want         string
		wantFallback bool
	}{
		{"override installed", installed, "fra", overrides, "", "deu", false},
		{"override by bibliographic code", installed, "fre", overrides, "", "deu", false},
		{"requested installed", installed, "ger", nil, "", "deu", false},
		{"not installed", installed, "spa", nil, "", "eng", true},
		{"override not installed", installed, "fra", map[string]string{"fra": "ita"}, "", "eng", true},
		{"override missing falls to requested", []string{"eng", "fra"}, "fra", map[string]string{"fra": "ita"}, "", "fra", false},
		{"custom fallback", installed, "jpn", nil, "deu", "deu", true},
		{"empty request", installed, "", nil, "", "eng", true},
		{"nothing installed", nil, "eng", nil, "", "eng", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.installed, tt.requested, tt.overrides, tt.fallback)
			if got.Language != tt.want {
				t.Errorf("Resolve(%q).Language = %q, want %q", tt.requested, got.Language, tt.want)
			}
			if got.Fallback != tt.wantFallback {
				t.Errorf("Resolve(%q).Fallback = %v, want %v", tt.requested, got.Fallback, tt.wantFallback)
			}
			if got.Fallback && got.Warning == "" {
				t.Errorf("fallback without a warning")
			}
			if !got.Fallback && got.Warning != "" {
				t.Errorf("unexpected warning %q", got.Warning)
			}
		})
	}
}

func TestResolveWarningNamesLanguage(t *testing.T) {
	got := Resolve([]string{"eng", "deu"}, "spa", nil, "")
	if !strings.Contains(got.Warning, "spa") || !strings.Contains(got.Warning, "eng") {
		t.Errorf("warning %q should name the requested and fallback languages", got.Warning)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"ger", "German"},
		{"eng", "English"},
		{"", "undetermined"},
	}
	for _, tt := range tests {
		if got := Name(tt.code); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
