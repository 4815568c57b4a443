package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestLookupOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mytool")
	writeExecutable(t, path)

	got, err := lookup("subocr-test-tool", path, "")
	if err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	if got != path {
		t.Errorf("lookup() = %q, want %q", got, path)
	}

	if _, err := lookup("subocr-test-tool", filepath.Join(dir, "missing"), ""); err == nil {
		t.Errorf("lookup() with missing override should fail")
	}
}

func TestLookupCacheDir(t *testing.T) {
	dir := t.TempDir()
	name := "subocr-test-tool"
	writeExecutable(t, filepath.Join(dir, name+executableSuffix()))

	got, err := lookup(name, "", dir)
	if err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	if filepath.Dir(got) != dir {
		t.Errorf("lookup() = %q, want a path in %q", got, dir)
	}
}

func TestLookupMissing(t *testing.T) {
	_, err := lookup("subocr-test-tool-missing", "", t.TempDir())
	if err == nil {
		t.Fatal("lookup() should fail")
	}
	if !strings.Contains(err.Error(), "SUBOCR_SUBOCR-TEST-TOOL-MISSING_PATH") {
		t.Errorf("error %q should name the override variable", err)
	}
}
