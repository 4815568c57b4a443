// Package assemble turns decoded subtitle frames into timed text records.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mgpai22/subocr/internal/logging"
	"github.com/mgpai22/subocr/internal/ocr"
	"github.com/mgpai22/subocr/internal/pgs"
	"github.com/mgpai22/subocr/internal/raster"
	"github.com/mgpai22/subocr/internal/subtitle"
	"github.com/mgpai22/subocr/internal/vobsub"
)

// TimedFrame is one display event of a track in stream order.
type TimedFrame struct {
	Seq      int
	Start    time.Duration
	End      time.Duration
	HasEnd   bool
	HasImage bool
	// End is a minimum duration fallback, not a stop date from the stream
	EndAssumed bool
	// byte offset in the source file, for diagnostics
	Offset int64

	source any
}

// Decoder is a format specific frame source.
type Decoder interface {
	Format() string
	// Frames yields frames in stream order. An error ends the sequence
	// and fails the track.
	Frames() iter.Seq2[TimedFrame, error]
	// Render draws an image frame. found is false when the frame has no
	// visible content.
	Render(f TimedFrame) (img image.Image, found bool, err error)
	// FinalizePending reports the end of a record still waiting for one,
	// given the next frame in the stream.
	FinalizePending(start time.Duration, next TimedFrame) (end time.Duration, ok bool)
}

// sized decoders know their frame count up front
type sized interface {
	Len() int
}

// IsFormatError reports whether err came from malformed input data.
func IsFormatError(err error) bool {
	return errors.Is(err, pgs.ErrFormat) || errors.Is(err, vobsub.ErrFormat)
}

type Options struct {
	// OCR language, already resolved against the engine
	Language string
	Raster   raster.Options
	// ImageDir receives every prepared frame as {seq}.jpg when set
	ImageDir string
	// Progress receives a progress bar when set
	Progress io.Writer
	// Label names the track in logs and the progress bar
	Label string
}

type Assembler struct {
	engine ocr.Engine
	opts   Options
	log    *logging.Logger
}

func New(engine ocr.Engine, opts Options, log *logging.Logger) *Assembler {
	if log == nil {
		log = logging.Nop()
	}
	if opts.Raster.Scale <= 0 {
		opts.Raster.Scale = raster.DefaultScale
	}
	return &Assembler{engine: engine, opts: opts, log: log}
}

type pending struct {
	start time.Duration
	text  string
	seq   int
}

// Run recognizes every image frame of dec and returns the finished track.
// OCR failures leave an empty record behind; a decode error aborts.
func (a *Assembler) Run(ctx context.Context, dec Decoder) (*subtitle.Subtitle, error) {
	if a.opts.ImageDir != "" {
		if err := os.MkdirAll(a.opts.ImageDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create image directory: %w", err)
		}
	}

	bar := a.progressBar(dec)
	defer func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}()

	var segments []subtitle.Segment
	var open *pending
	// image frames seen so far, numbers the dumps like the records they become
	images := 0

	for frame, err := range dec.Frames() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if open != nil {
			if end, ok := dec.FinalizePending(open.start, frame); ok {
				segments = append(segments, subtitle.Segment{
					StartTime: open.start,
					EndTime:   end,
					Text:      open.text,
				})
				open = nil
			}
		}

		if !frame.HasImage {
			continue
		}

		text, err := a.recognize(ctx, dec, frame, images)
		if err != nil {
			return nil, err
		}
		images++
		if bar != nil {
			_ = bar.Add(1)
		}

		if frame.HasEnd {
			if frame.EndAssumed {
				a.log.Infow("frame has no end, using minimum duration",
					"track", a.opts.Label,
					"frame", frame.Seq,
					"start", frame.Start,
					"end", frame.End,
				)
			}
			segments = append(segments, subtitle.Segment{
				StartTime: frame.Start,
				EndTime:   frame.End,
				Text:      text,
			})
			continue
		}
		open = &pending{start: frame.Start, text: text, seq: frame.Seq}
	}

	if open != nil {
		a.log.Debugw("dropping frame without end",
			"track", a.opts.Label,
			"frame", open.seq,
			"start", open.start,
		)
	}

	return subtitle.NewTextGenerator(a.opts.Language).Generate(segments)
}

// recognize renders, dumps and reads one frame. The dump is named after
// index, the frame's position among image frames. Only format errors are
// returned; everything else degrades to empty text.
func (a *Assembler) recognize(ctx context.Context, dec Decoder, frame TimedFrame, index int) (string, error) {
	img, found, err := dec.Render(frame)
	if err != nil {
		if IsFormatError(err) {
			return "", err
		}
		a.log.Warnw("failed to render frame",
			"track", a.opts.Label,
			"frame", frame.Seq,
			"error", err,
		)
		return "", nil
	}
	if !found {
		a.log.Warnw("frame has no visible pixels",
			"track", a.opts.Label,
			"frame", frame.Seq,
			"start", frame.Start,
		)
	}

	prepared := raster.Prepare(img, a.opts.Raster)
	if a.opts.ImageDir != "" {
		if err := a.saveFrame(index, prepared); err != nil {
			a.log.Warnw("failed to save frame image",
				"track", a.opts.Label,
				"frame", frame.Seq,
				"error", err,
			)
		}
	}

	text, err := a.engine.Recognize(ctx, prepared, a.opts.Language)
	if err != nil {
		a.log.Warnw("OCR failed",
			"track", a.opts.Label,
			"frame", frame.Seq,
			"start", frame.Start,
			"error", err,
		)
		return "", nil
	}
	return text, nil
}

func (a *Assembler) saveFrame(index int, img image.Image) error {
	path := filepath.Join(a.opts.ImageDir, strconv.Itoa(index)+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *Assembler) progressBar(dec Decoder) *progressbar.ProgressBar {
	if a.opts.Progress == nil {
		return nil
	}
	total := -1
	if s, ok := dec.(sized); ok {
		total = s.Len()
	}
	desc := dec.Format()
	if a.opts.Label != "" {
		desc = a.opts.Label + " " + desc
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(a.opts.Progress),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
