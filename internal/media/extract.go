package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/subocr/internal/logging"
	"github.com/mgpai22/subocr/internal/tools"
)

// ManifestName is the track list written next to extracted files.
const ManifestName = "tracks.json"

// Files returns the paths a track extracts to, relative to dir. VobSub
// tracks produce the .sub first and its .idx second.
func (t Track) Files(dir string) []string {
	base := filepath.Join(dir, strconv.Itoa(t.ID))
	switch t.Kind {
	case KindPGS:
		return []string{base + ".sup"}
	case KindVobSub:
		return []string{base + ".sub", base + ".idx"}
	case KindSRT:
		return []string{base + ".srt"}
	}
	return nil
}

// Extractor copies subtitle streams out of a container.
type Extractor struct {
	dir         string
	concurrency int
	log         *logging.Logger

	// replaced in tests
	run func(ctx context.Context, src string, t Track, out string) error
}

func NewExtractor(dir string, concurrency int, log *logging.Logger) *Extractor {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logging.Nop()
	}
	e := &Extractor{dir: dir, concurrency: concurrency, log: log}
	e.run = e.extractTrack
	return e
}

// Extract writes every supported track of inv into the extractor's
// directory, skipping tracks already on disk, and records the track list
// in the manifest. Failures are joined.
func (e *Extractor) Extract(ctx context.Context, inv *Inventory) ([]Track, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var jobs []Track
	var extracted []Track
	for _, t := range inv.Tracks {
		if t.Kind == KindUnsupported {
			e.log.Warnw("skipping unsupported subtitle codec",
				"track", t.ID,
				"codec", t.Codec,
			)
			continue
		}
		extracted = append(extracted, t)
		if allExist(t.Files(e.dir)) {
			e.log.Debugw("track already extracted", "track", t.ID)
			continue
		}
		jobs = append(jobs, t)
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)

	sem := make(chan struct{}, e.concurrency)

	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(t Track) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			out := t.Files(e.dir)[0]
			e.log.Infow("extracting subtitle track",
				"track", t.ID,
				"codec", t.Codec,
				"language", t.Language,
				"size", t.HumanSize(),
			)
			if err := e.run(ctx, inv.Path, t, out); err != nil {
				for _, f := range t.Files(e.dir) {
					_ = os.Remove(f)
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("track %d: %w", t.ID, err))
				mu.Unlock()
			}
		}(job)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("extraction failed: %w", errors.Join(errs...))
	}

	if err := WriteManifest(e.dir, extracted); err != nil {
		return nil, err
	}
	return extracted, nil
}

func (e *Extractor) extractTrack(ctx context.Context, src string, t Track, out string) error {
	switch t.Kind {
	case KindPGS, KindSRT:
		ffmpegPath, err := tools.FFmpeg()
		if err != nil {
			return err
		}
		err = ffmpeg.Input(src).
			Output(out, ffmpeg.KwArgs{
				"map": fmt.Sprintf("0:s:%d", t.ID),
				"c":   "copy",
			}).
			OverWriteOutput().
			SetFfmpegPath(ffmpegPath).
			Run()
		if err != nil {
			return fmt.Errorf("ffmpeg extraction failed: %w", err)
		}
		return nil
	case KindVobSub:
		mkvextract, err := tools.MKVExtract()
		if err != nil {
			return err
		}
		// mkvextract writes the .idx next to the .sub
		cmd := exec.CommandContext(ctx, mkvextract,
			"tracks", src,
			fmt.Sprintf("%d:%s", t.StreamIndex, out),
		)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("mkvextract failed: %w: %s", err, strings.TrimSpace(string(output)))
		}
		return nil
	}
	return fmt.Errorf("unsupported track kind %q", t.Kind)
}

func allExist(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// WriteManifest records tracks in dir so a later conversion knows each
// track's language.
func WriteManifest(dir string, tracks []Track) error {
	data, err := json.MarshalIndent(tracks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the track list written by Extract. A missing manifest
// yields no tracks and no error.
func ReadManifest(dir string) ([]Track, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tracks []Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return tracks, nil
}
