package vobsub

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mgpai22/subocr/internal/raster"
)

var ErrPaletteNotSet = errors.New("vobsub: palette not set")

// DefaultMinDuration is given to a trailing event that has no stop date
const DefaultMinDuration = 2 * time.Second

type Options struct {
	MinDuration time.Duration
}

// one display event reassembled from one or more packets
type MergedPack struct {
	Start  time.Duration
	End    time.Duration
	Offset int64
	Forced bool
	// End is Start plus the minimum duration: the event had no usable stop
	// date and no later event to end at
	EndAssumed bool
	// complete subpicture unit
	Data []byte

	spu     *spu
	palette []string
}

// Track is a parsed sub/idx pair
type Track struct {
	Index *Index
	Packs []*MergedPack
}

// Open reads a .sub file and its .idx companion
func Open(subPath, idxPath string, opts Options) (*Track, error) {
	idxFile, err := os.Open(idxPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open idx file: %w", err)
	}
	defer idxFile.Close()

	idx, err := ParseIndex(idxFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(subPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sub file: %w", err)
	}

	packs, err := Parse(data, idx, opts)
	if err != nil {
		return nil, err
	}
	return &Track{Index: idx, Packs: packs}, nil
}

// Parse merges the subpicture packets of data into display events timed by
// idx. Only packets of the idx's selected stream are kept. Events without a
// stop date end where the next one starts; the last one gets opts.MinDuration
// and is flagged EndAssumed.
func Parse(data []byte, idx *Index, opts Options) ([]*MergedPack, error) {
	if opts.MinDuration <= 0 {
		opts.MinDuration = DefaultMinDuration
	}

	packets, err := readPackets(data)
	if err != nil {
		return nil, err
	}

	timestamps := make(map[int64]time.Duration)
	var stream *IndexStream
	if idx != nil {
		stream = idx.Stream()
	}
	if stream != nil {
		for _, e := range stream.Entries {
			timestamps[e.FilePos] = e.Timestamp
		}
	}

	type pending struct {
		pack *MergedPack
		base time.Duration
	}
	var merged []pending
	// the idx selects the stream; without one the first packet does
	substream, pinned := byte(0), false
	if stream != nil && stream.Index >= 0 && stream.Index <= subStreamIDLast-subStreamIDBase {
		substream, pinned = subStreamIDBase+byte(stream.Index), true
	}
	for _, pkt := range packets {
		if !pinned {
			substream, pinned = pkt.SubStreamID, true
		}
		if pkt.SubStreamID != substream {
			continue
		}

		if !pkt.HasPTS {
			if len(merged) == 0 {
				return nil, &FormatError{Offset: pkt.Offset, Reason: "continuation packet without a preceding event"}
			}
			last := merged[len(merged)-1].pack
			last.Data = append(last.Data, pkt.Payload...)
			continue
		}

		base, ok := timestamps[pkt.Offset]
		if !ok {
			base = pkt.PTS
			if idx != nil {
				base += idx.TimeOffset
			}
		}
		merged = append(merged, pending{
			pack: &MergedPack{
				Offset: pkt.Offset,
				Data:   append([]byte(nil), pkt.Payload...),
			},
			base: base,
		})
	}

	packs := make([]*MergedPack, 0, len(merged))
	for i, m := range merged {
		s, err := parseSPU(m.pack.Data)
		if err != nil {
			return nil, &FormatError{Offset: m.pack.Offset, Reason: err.Error()}
		}
		p := m.pack
		p.spu = s
		p.Forced = s.Forced
		p.Start = m.base + s.StartDelay

		switch {
		case s.HasStop && s.StopDelay > s.StartDelay:
			p.End = m.base + s.StopDelay
		case i+1 < len(merged):
			p.End = merged[i+1].base
		default:
			p.End = p.Start + opts.MinDuration
			p.EndAssumed = true
		}
		if p.End <= p.Start {
			p.End = p.Start + opts.MinDuration
			p.EndAssumed = true
		}

		if idx != nil {
			p.palette = idx.Palette
		}
		packs = append(packs, p)
	}
	return packs, nil
}

// injects the 16-color palette used by Bitmap
func (p *MergedPack) SetPalette(palette []string) {
	p.palette = palette
}

func (p *MergedPack) Palette() []string {
	return p.palette
}

// Raster decodes the full subpicture rectangle into a float RGBA raster.
// Transparent pixels are black.
func (p *MergedPack) Raster() (*raster.Float, error) {
	if len(p.palette) == 0 {
		return nil, ErrPaletteNotSet
	}
	if p.spu == nil {
		s, err := parseSPU(p.Data)
		if err != nil {
			return nil, &FormatError{Offset: p.Offset, Reason: err.Error()}
		}
		p.spu = s
	}

	var colors [4][3]float32
	var alphas [4]float32
	for v := 0; v < 4; v++ {
		i := int(p.spu.Colors[v])
		if i >= len(p.palette) {
			return nil, fmt.Errorf("vobsub: palette index %d out of range", i)
		}
		rgb, err := hex.DecodeString(p.palette[i])
		if err != nil || len(rgb) != 3 {
			return nil, fmt.Errorf("vobsub: invalid palette color %q", p.palette[i])
		}
		colors[v] = [3]float32{float32(rgb[0]) / 255, float32(rgb[1]) / 255, float32(rgb[2]) / 255}
		alphas[v] = float32(p.spu.Alpha[v]) / 15
	}

	w, h := p.spu.Rect.Dx(), p.spu.Rect.Dy()
	pix := decodeRLE(p.Data, p.spu.FieldOffsets, w, h)
	out := raster.NewFloat(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := pix[y*w+x]
			if alphas[v] == 0 {
				continue
			}
			c := colors[v]
			out.Set(x, y, c[0], c[1], c[2], alphas[v])
		}
	}
	return out, nil
}

// Bitmap returns the raster cropped to the subtitle text. found is false when
// no pixel qualified and the result is the 1x1 fallback region.
func (p *MergedPack) Bitmap() (bmp *raster.Float, found bool, err error) {
	full, err := p.Raster()
	if err != nil {
		return nil, false, err
	}
	bmp, found = full.CropToContent()
	return bmp, found, nil
}
