package subtitle

import (
	"fmt"
	"path/filepath"
	"strings"
)

// parsed subtitle file that can be edited and re-serialized
type File interface {
	Format() Format
	Subtitle() *Subtitle
	SetText(index int, text string) error
	Write(path string) error
}

// Open loads a finished subtitle file. Only SubRip is read back; the
// other formats are write-only targets.
func Open(path string) (File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".srt":
		return parseSRTFile(path)
	default:
		return nil, fmt.Errorf("unsupported subtitle format: %s", ext)
	}
}

// Convert re-serializes a SubRip file into another format next to it and
// returns the new path.
func Convert(srtPath string, format Format) (string, error) {
	file, err := Open(srtPath)
	if err != nil {
		return "", err
	}
	writer, err := NewWriter(format)
	if err != nil {
		return "", err
	}
	out := strings.TrimSuffix(srtPath, filepath.Ext(srtPath)) +
		GetExtensionForFormat(format)
	if err := writer.Write(file.Subtitle(), out); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}
	return out, nil
}
