// Package convert runs the OCR pipeline over every subtitle track of a
// working directory.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/mgpai22/subocr/internal/assemble"
	"github.com/mgpai22/subocr/internal/language"
	"github.com/mgpai22/subocr/internal/logging"
	"github.com/mgpai22/subocr/internal/media"
	"github.com/mgpai22/subocr/internal/ocr"
	"github.com/mgpai22/subocr/internal/raster"
	"github.com/mgpai22/subocr/internal/srtcheck"
	"github.com/mgpai22/subocr/internal/subtitle"
	"github.com/mgpai22/subocr/internal/vobsub"
)

const lockName = ".subocr.lock"

type Options struct {
	// tracks converted at once
	Concurrency int
	// used for untagged tracks and when a language is not installed
	DefaultLanguage string
	// requested language -> OCR language
	LanguageOverrides map[string]string
	Raster            raster.Options
	// PGS text isolation threshold, 0 disables
	TextBrightnessDiff float64
	// VobSub trailing event duration
	MinDuration time.Duration
	// keep OCR frames under {dir}/images/{track}
	KeepImages bool
	// re-encode target; srt means none
	Format subtitle.Format
	// progress bars are drawn here when set
	Progress io.Writer
	// skip the OCR fix pass
	SkipCheck bool
}

// TrackResult is the outcome of one track.
type TrackResult struct {
	Track       Track
	Language    language.Resolution
	Output      string
	Converted   string
	Records     int
	Fixes       int
	Passthrough bool
	Elapsed     time.Duration
	Err         *TrackError
}

type trackJob struct {
	index int
	track Track
}

type trackOutcome struct {
	index  int
	result TrackResult
}

type Converter struct {
	engine ocr.Engine
	opts   Options
	log    *logging.Logger
}

func New(engine ocr.Engine, opts Options, log *logging.Logger) *Converter {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = language.DefaultLanguage
	}
	if opts.Format == "" {
		opts.Format = subtitle.FormatSRT
	}
	if opts.MinDuration <= 0 {
		opts.MinDuration = vobsub.DefaultMinDuration
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Converter{engine: engine, opts: opts, log: log}
}

// Run converts every track found in dir.
func (c *Converter) Run(ctx context.Context, dir string) ([]TrackResult, error) {
	tracks, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	return c.RunTracks(ctx, dir, tracks)
}

// RunTracks converts tracks with at most Concurrency running at once and
// waits for all of them. When any track fails no re-encoding happens and
// the returned error is a *BatchError; the results are returned either way.
func (c *Converter) RunTracks(ctx context.Context, dir string, tracks []Track) ([]TrackResult, error) {
	if len(tracks) == 0 {
		return nil, errors.New("no subtitle tracks found")
	}

	lock := flock.New(filepath.Join(dir, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s is in use by another subocr process", dir)
	}
	defer lock.Unlock()

	runID := uuid.NewString()
	log := c.log.With("run_id", runID)

	installed, err := c.engine.Languages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list OCR languages: %w", err)
	}

	log.Infow("converting subtitle tracks",
		"dir", dir,
		"tracks", len(tracks),
		"concurrency", c.opts.Concurrency,
	)

	workChan := make(chan trackJob, len(tracks))
	resultChan := make(chan trackOutcome, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < min(c.opts.Concurrency, len(tracks)); i++ {
		wg.Go(func() {
			for j := range workChan {
				resultChan <- trackOutcome{
					index:  j.index,
					result: c.convertTrack(ctx, dir, j.track, installed, log),
				}
			}
		})
	}

	for i, t := range tracks {
		workChan <- trackJob{index: i, track: t}
	}
	close(workChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]TrackResult, len(tracks))
	for r := range resultChan {
		results[r.index] = r.result
	}

	var failed []*TrackError
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Err)
		}
	}
	if len(failed) > 0 {
		log.Errorw("conversion failed",
			"failed", len(failed),
			"tracks", len(tracks),
		)
		return results, &BatchError{Failed: failed}
	}

	if c.opts.Format != subtitle.FormatSRT {
		for i := range results {
			out, err := subtitle.Convert(results[i].Output, c.opts.Format)
			if err != nil {
				return results, fmt.Errorf("failed to convert track %s to %s: %w",
					results[i].Track.ID, c.opts.Format, err)
			}
			results[i].Converted = out
		}
	}

	log.Infow("conversion finished", "tracks", len(tracks))
	return results, nil
}

// convertTrack runs one track end to end. All failures are reported
// through the result.
func (c *Converter) convertTrack(
	ctx context.Context,
	dir string,
	track Track,
	installed []string,
	log *logging.Logger,
) TrackResult {
	start := time.Now()
	log = log.With("track", track.ID, "format", string(track.Kind))
	result := TrackResult{Track: track, Output: track.Output()}

	fail := func(kind FailureKind, err error) TrackResult {
		result.Err = &TrackError{Track: track.ID, Kind: kind, Err: err}
		result.Elapsed = time.Since(start)
		log.Errorw("track failed", "kind", string(kind), "error", err)
		return result
	}

	if track.Passthrough() {
		result.Passthrough = true
		result.Elapsed = time.Since(start)
		log.Infow("text subtitle, passing through", "file", filepath.Base(result.Output))
		return result
	}
	if track.Missing != "" {
		return fail(KindResource, fmt.Errorf("missing %s", track.Missing))
	}

	requested := language.Normalize(track.Language)
	if requested == "" {
		requested = c.opts.DefaultLanguage
	}
	res := language.Resolve(installed, requested, c.opts.LanguageOverrides, c.opts.DefaultLanguage)
	result.Language = res
	if res.Fallback {
		log.Warnw(res.Warning, "requested", requested, "language", res.Language)
	}

	dec, closer, err := c.openDecoder(track)
	if err != nil {
		if assemble.IsFormatError(err) {
			return fail(KindFormat, err)
		}
		return fail(KindResource, err)
	}
	defer closer()

	opts := assemble.Options{
		Language: res.Language,
		Raster:   c.opts.Raster,
		Progress: c.opts.Progress,
		Label:    "track " + track.ID,
	}
	if c.opts.KeepImages {
		opts.ImageDir = filepath.Join(dir, "images", track.ID)
	}

	sub, err := assemble.New(c.engine, opts, log).Run(ctx, dec)
	if err != nil {
		if assemble.IsFormatError(err) {
			return fail(KindFormat, err)
		}
		return fail(KindResource, err)
	}
	result.Records = len(sub.Entries)

	fixes, err := c.writeOutput(sub, result.Output, res.Language, log)
	if err != nil {
		return fail(KindOutput, err)
	}
	result.Fixes = fixes
	result.Elapsed = time.Since(start)

	log.Infow("track converted",
		"records", result.Records,
		"fixes", fixes,
		"language", res.Language,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)
	return result
}

func (c *Converter) openDecoder(track Track) (assemble.Decoder, func(), error) {
	switch track.Kind {
	case media.KindPGS:
		f, err := os.Open(track.Source())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", filepath.Base(track.Source()), err)
		}
		dec := assemble.NewPGSDecoder(f, c.opts.TextBrightnessDiff)
		return dec, func() { f.Close() }, nil
	case media.KindVobSub:
		vs, err := vobsub.Open(track.path(".sub"), track.path(".idx"), vobsub.Options{
			MinDuration: c.opts.MinDuration,
		})
		if err != nil {
			return nil, nil, err
		}
		return assemble.NewVobSubDecoder(vs.Packs, vs.Index.Palette), func() {}, nil
	}
	return nil, nil, fmt.Errorf("no decoder for %s tracks", track.Kind)
}

// writeOutput applies the OCR fixes, writes {id}.srt.tmp and moves it
// into place, so a failed track never leaves a partial .srt.
func (c *Converter) writeOutput(sub *subtitle.Subtitle, path, lang string, log *logging.Logger) (int, error) {
	fixes := 0
	if !c.opts.SkipCheck {
		for _, f := range srtcheck.New(lang, log).CheckSubtitle(sub) {
			fixes += f.Count
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Base(tmp), err)
	}
	if err := subtitle.EncodeSRT(f, sub); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to write %s: %w", filepath.Base(tmp), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return fixes, nil
}
