package srtcheck

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name  string
		lang  string
		in    string
		want  string
		fixes int
	}{
		{"clean", "eng", "Nothing to see here.", "Nothing to see here.", 0},
		{"pipe", "eng", "|t was me.", "It was me.", 1},
		{"contractions", "eng", "l'm sure l'll go, l've said.", "I'm sure I'll go, I've said.", 3},
		{"standalone l", "eng", "l think\nl know", "I think\nI know", 2},
		{"consecutive l", "eng", "l l l", "I I I", 3},
		{"capitals", "eng", "HELlO WORlD", "HELIO WORID", 2},
		{"zero in word", "eng", "g0od d0g", "good dog", 2},
		{"overlapping zero", "eng", "a0b0c", "aobos"[:3] + "oc", 2},
		{"quotes", "eng", "''Run!''", `"Run!"`, 2},
		{"ellipsis", "eng", "Wait. . . what", "Wait... what", 1},
		{"space before comma", "eng", "Yes , sir .", "Yes, sir.", 2},
		{"repeated spaces", "eng", "too   many  spaces", "too many spaces", 2},
		{"english rules off for french", "fra", "l'homme", "l'homme", 0},
		{"french still gets pipes", "fre", "|l est là", "Il est là", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.lang, nil)
			got, fixes := c.Check(tt.in)
			if got != tt.want {
				t.Errorf("Check(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if fixes != tt.fixes {
				t.Errorf("Check(%q) fixes = %d, want %d", tt.in, fixes, tt.fixes)
			}

			again, n := c.Check(got)
			if again != got || n != 0 {
				t.Errorf("second Check(%q) = %q with %d fixes, want no change", got, again, n)
			}
		})
	}
}

func TestCustomRules(t *testing.T) {
	rules := []Rule{{
		Name:    "rn-as-m",
		Pattern: regexp.MustCompile(`\brnore\b`),
		Replace: "more",
	}}
	c := NewWithRules(rules, "", nil)
	got, n := c.Check("rnore and rnore")
	if got != "more and more" || n != 2 {
		t.Errorf("Check = %q, %d", got, n)
	}
}

const dirtySRT = `1
00:00:01,000 --> 00:00:02,000
l'm here.

2
00:00:03,000 --> 00:00:04,000


3
00:00:05,000 --> 00:00:06,000
|t works , really
`

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.srt")
	if err := os.WriteFile(path, []byte(dirtySRT), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	c := New("eng", nil)

	findings, err := c.CheckFile(path, true)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(findings) != 3 {
		t.Errorf("expected 3 findings, got %d: %+v", len(findings), findings)
	}
	data, _ := os.ReadFile(path)
	if string(data) != dirtySRT {
		t.Error("dry run modified the file")
	}

	if _, err := c.CheckFile(path, false); err != nil {
		t.Fatalf("CheckFile failed: %v", err)
	}
	once, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read result: %v", err)
	}
	for _, want := range []string{"I'm here.", "It works, really"} {
		if !strings.Contains(string(once), want) {
			t.Errorf("result missing %q:\n%s", want, once)
		}
	}
	if !strings.Contains(string(once), "2\n00:00:03,000 --> 00:00:04,000\n\n") {
		t.Errorf("empty cue was lost:\n%s", once)
	}

	findings, err = c.CheckFile(path, false)
	if err != nil {
		t.Fatalf("second CheckFile failed: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("second pass found %d fixes", len(findings))
	}
	twice, _ := os.ReadFile(path)
	if string(twice) != string(once) {
		t.Errorf("second pass changed the file:\n%s\nvs\n%s", once, twice)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}
