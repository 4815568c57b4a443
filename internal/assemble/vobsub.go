package assemble

import (
	"errors"
	"image"
	"iter"
	"time"

	"github.com/mgpai22/subocr/internal/vobsub"
)

// VobSubDecoder serves merged packs. Every pack carries its own end time.
type VobSubDecoder struct {
	packs []*vobsub.MergedPack
}

// NewVobSubDecoder injects palette into every pack.
func NewVobSubDecoder(packs []*vobsub.MergedPack, palette []string) *VobSubDecoder {
	for _, p := range packs {
		p.SetPalette(palette)
	}
	return &VobSubDecoder{packs: packs}
}

func (d *VobSubDecoder) Format() string { return "vobsub" }

func (d *VobSubDecoder) Len() int { return len(d.packs) }

func (d *VobSubDecoder) Frames() iter.Seq2[TimedFrame, error] {
	return func(yield func(TimedFrame, error) bool) {
		for i, p := range d.packs {
			frame := TimedFrame{
				Seq:        i,
				Start:      p.Start,
				End:        p.End,
				HasEnd:     true,
				HasImage:   true,
				EndAssumed: p.EndAssumed,
				Offset:     p.Offset,
				source:     p,
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func (d *VobSubDecoder) Render(f TimedFrame) (image.Image, bool, error) {
	p, ok := f.source.(*vobsub.MergedPack)
	if !ok {
		return nil, false, errors.New("assemble: frame was not produced by this decoder")
	}
	bmp, found, err := p.Bitmap()
	if err != nil {
		return nil, false, err
	}
	return bmp, found, nil
}

func (d *VobSubDecoder) FinalizePending(time.Duration, TimedFrame) (time.Duration, bool) {
	return 0, false
}
