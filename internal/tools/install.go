package tools

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/schollz/progressbar/v3"
)

const (
	ffmpegRelease = "6.1"
	ffmpegBaseURL = "https://github.com/ffbinaries/ffbinaries-prebuilt/releases/download"
)

// prebuilt bundle for the platform, one per program
func bundles(goos, goarch string) ([]string, error) {
	var suffix string
	switch {
	case goos == "linux" && goarch == "amd64":
		suffix = "linux-64"
	case goos == "linux" && goarch == "arm64":
		suffix = "linux-arm-64"
	case goos == "darwin" && goarch == "amd64":
		suffix = "macos-64"
	case goos == "windows" && goarch == "amd64":
		suffix = "win-64"
	default:
		return nil, fmt.Errorf("no prebuilt ffmpeg for %s/%s", goos, goarch)
	}
	return []string{
		"ffmpeg-" + ffmpegRelease + "-" + suffix + ".zip",
		"ffprobe-" + ffmpegRelease + "-" + suffix + ".zip",
	}, nil
}

// InstallFFmpeg downloads ffmpeg and ffprobe into the per-user cache
// directory, where lookups find them when they are not on PATH. Download
// progress is drawn on progress when it is not nil.
func InstallFFmpeg(ctx context.Context, progress io.Writer) (string, error) {
	dir := cacheDir()
	if dir == "" {
		return "", errors.New("no user cache directory available")
	}
	names, err := bundles(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create tool directory: %w", err)
	}

	for _, name := range names {
		url := fmt.Sprintf("%s/v%s/%s", ffmpegBaseURL, ffmpegRelease, name)
		if err := installBundle(ctx, url, dir, progress); err != nil {
			return "", fmt.Errorf("install %s: %w", name, err)
		}
	}
	return dir, nil
}

func installBundle(ctx context.Context, url, dir string, progress io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp("", "subocr-tool-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var dst io.Writer = tmp
	if progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription(filepath.Base(url)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		dst = io.MultiWriter(tmp, bar)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return unpackBinaries(tmp.Name(), dir)
}

// copies every known program found in the archive into dir
func unpackBinaries(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	found := 0
	for _, f := range zr.File {
		name := strings.TrimSuffix(strings.ToLower(filepath.Base(f.Name)), ".exe")
		if name != "ffmpeg" && name != "ffprobe" {
			continue
		}
		if err := unpackFile(f, filepath.Join(dir, name+executableSuffix())); err != nil {
			return err
		}
		found++
	}
	if found == 0 {
		return errors.New("archive contains no ffmpeg binaries")
	}
	return nil
}

func unpackFile(f *zip.File, dest string) error {
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dest), err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}
	return out.Close()
}
