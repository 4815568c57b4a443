package assemble

import (
	"errors"
	"image"
	"io"
	"iter"
	"time"

	"github.com/mgpai22/subocr/internal/pgs"
)

// PGSDecoder reads display sets lazily. An image set stays on screen until
// the next set, so records are closed by look-ahead.
type PGSDecoder struct {
	parser         *pgs.Parser
	brightnessDiff float64
}

// brightnessDiff enables text isolation when positive
func NewPGSDecoder(r io.Reader, brightnessDiff float64) *PGSDecoder {
	return &PGSDecoder{parser: pgs.NewParser(r), brightnessDiff: brightnessDiff}
}

func (d *PGSDecoder) Format() string { return "pgs" }

func (d *PGSDecoder) Frames() iter.Seq2[TimedFrame, error] {
	return func(yield func(TimedFrame, error) bool) {
		seq := 0
		for ds, err := range d.parser.DisplaySets() {
			if err != nil {
				yield(TimedFrame{}, err)
				return
			}
			frame := TimedFrame{
				Seq:      seq,
				Start:    ds.PresentationTimestamp,
				HasImage: ds.HasImage(),
				Offset:   ds.Offset,
				source:   ds,
			}
			seq++
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func (d *PGSDecoder) Render(f TimedFrame) (image.Image, bool, error) {
	ds, ok := f.source.(*pgs.DisplaySet)
	if !ok {
		return nil, false, errors.New("assemble: frame was not produced by this decoder")
	}
	img, err := ds.Image(d.brightnessDiff)
	if err != nil {
		return nil, false, err
	}
	return img, !isBlank(img), nil
}

// Any following set ends the image: a clear, or a new image replacing it.
func (d *PGSDecoder) FinalizePending(start time.Duration, next TimedFrame) (time.Duration, bool) {
	return max(next.Start, start), true
}

func isBlank(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return false
		}
	}
	return true
}
