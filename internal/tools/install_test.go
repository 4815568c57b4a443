package tools

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestBundles(t *testing.T) {
	names, err := bundles("linux", "amd64")
	if err != nil {
		t.Fatalf("bundles() error = %v", err)
	}
	want := []string{"ffmpeg-6.1-linux-64.zip", "ffprobe-6.1-linux-64.zip"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("bundles()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	if _, err := bundles("plan9", "386"); err == nil {
		t.Errorf("bundles() should fail for an unsupported platform")
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestUnpackBinaries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(t.TempDir(), "bundle.zip")
	writeZip(t, archive, map[string]string{
		"bin/ffprobe": "#!/bin/sh\n",
		"README.txt":  "not a binary",
	})

	if err := unpackBinaries(archive, dir); err != nil {
		t.Fatalf("unpackBinaries() error = %v", err)
	}

	if !fileExists(filepath.Join(dir, "ffprobe"+executableSuffix())) {
		t.Errorf("ffprobe was not unpacked into %s", dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "README.txt")); !os.IsNotExist(err) {
		t.Errorf("unrelated archive entries should not be unpacked")
	}
}

func TestUnpackBinariesEmptyArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "empty.zip")
	writeZip(t, archive, map[string]string{"README.txt": "nothing"})

	if err := unpackBinaries(archive, t.TempDir()); err == nil {
		t.Fatal("unpackBinaries() should fail without binaries")
	}
}
