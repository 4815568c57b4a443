// Package tools locates the external programs used for extraction and OCR.
package tools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// external program, resolved once per process
type binary struct {
	name string
	env  string

	once sync.Once
	path string
	err  error
}

var (
	ffmpegBin     = &binary{name: "ffmpeg", env: "SUBOCR_FFMPEG_PATH"}
	ffprobeBin    = &binary{name: "ffprobe", env: "SUBOCR_FFPROBE_PATH"}
	mkvextractBin = &binary{name: "mkvextract", env: "SUBOCR_MKVEXTRACT_PATH"}
	tesseractBin  = &binary{name: "tesseract", env: "SUBOCR_TESSERACT_PATH"}
)

func FFmpeg() (string, error)     { return ffmpegBin.resolve() }
func FFprobe() (string, error)    { return ffprobeBin.resolve() }
func MKVExtract() (string, error) { return mkvextractBin.resolve() }
func Tesseract() (string, error)  { return tesseractBin.resolve() }

// availability of every tool, for diagnostics
func Status() map[string]error {
	status := make(map[string]error)
	for _, b := range []*binary{ffmpegBin, ffprobeBin, mkvextractBin, tesseractBin} {
		_, err := b.resolve()
		status[b.name] = err
	}
	return status
}

func (b *binary) resolve() (string, error) {
	b.once.Do(func() {
		b.path, b.err = lookup(b.name, os.Getenv(b.env), cacheDir())
	})
	return b.path, b.err
}

// lookup order: explicit override, PATH, then the per-user cache directory
func lookup(name, override, cache string) (string, error) {
	if override != "" {
		if !fileExists(override) {
			return "", fmt.Errorf("%s override %q does not exist", name, override)
		}
		return override, nil
	}

	if found, err := exec.LookPath(name); err == nil {
		return found, nil
	}

	if cache != "" {
		candidate := filepath.Join(cache, name+executableSuffix())
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s not found: install it or set %s", name, envName(name))
}

func envName(name string) string {
	return "SUBOCR_" + strings.ToUpper(name) + "_PATH"
}

func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, "subocr", "bin")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
