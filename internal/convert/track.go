package convert

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/mgpai22/subocr/internal/media"
)

// Track is one subtitle track on disk, named {ID}.{ext} inside Dir.
type Track struct {
	ID   string
	Dir  string
	Kind media.Kind
	// Language as tagged in the container, empty when unknown
	Language string
	// Missing names a companion file that should exist but does not
	Missing string
}

func (t Track) path(ext string) string {
	return filepath.Join(t.Dir, t.ID+ext)
}

// Source is the file the track is decoded from.
func (t Track) Source() string {
	switch t.Kind {
	case media.KindPGS:
		return t.path(".sup")
	case media.KindVobSub:
		return t.path(".sub")
	}
	return t.path(".srt")
}

// Output is the finished SubRip file.
func (t Track) Output() string {
	return t.path(".srt")
}

// Passthrough reports whether the track is already text.
func (t Track) Passthrough() bool {
	return t.Kind == media.KindSRT
}

// TrackFromFile builds a track for a single .sup, .sub or .srt file.
func TrackFromFile(path, lang string) (Track, error) {
	ext := strings.ToLower(filepath.Ext(path))
	t := Track{
		ID:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Dir:      filepath.Dir(path),
		Language: lang,
	}
	switch ext {
	case ".sup":
		t.Kind = media.KindPGS
	case ".sub", ".idx":
		t.Kind = media.KindVobSub
		for _, e := range []string{".sub", ".idx"} {
			if _, err := os.Stat(t.path(e)); err != nil {
				t.Missing = t.ID + e
			}
		}
	case ".srt":
		t.Kind = media.KindSRT
	default:
		return Track{}, fmt.Errorf("unsupported subtitle file: %s", filepath.Base(path))
	}
	return t, nil
}

// Discover lists the tracks in dir. A .sup or .sub/.idx pair makes an
// image track; a .srt with neither is passed through. Languages come from
// the extraction manifest when there is one.
func Discover(dir string) ([]Track, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	files := make(map[string]map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch ext {
		case ".sup", ".sub", ".idx", ".srt":
		default:
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if files[stem] == nil {
			files[stem] = make(map[string]bool)
		}
		files[stem][ext] = true
	}

	manifest, err := media.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	langs := make(map[string]string, len(manifest))
	for _, m := range manifest {
		langs[strconv.Itoa(m.ID)] = m.Language
	}

	var tracks []Track
	for stem, exts := range files {
		t := Track{ID: stem, Dir: dir, Language: langs[stem]}
		switch {
		case exts[".sup"]:
			t.Kind = media.KindPGS
		case exts[".sub"] || exts[".idx"]:
			t.Kind = media.KindVobSub
			if !exts[".sub"] {
				t.Missing = stem + ".sub"
			} else if !exts[".idx"] {
				t.Missing = stem + ".idx"
			}
		default:
			t.Kind = media.KindSRT
		}
		tracks = append(tracks, t)
	}

	slices.SortFunc(tracks, func(a, b Track) int {
		ai, aerr := strconv.Atoi(a.ID)
		bi, berr := strconv.Atoi(b.ID)
		if aerr == nil && berr == nil {
			return cmp.Compare(ai, bi)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return tracks, nil
}
