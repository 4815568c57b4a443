package pgs

import (
	"fmt"
	"image/color"
)

// palette indices 0-255 mapped to RGBA. Luma keeps the source Y value of
// each entry for text isolation
type Palette struct {
	ID      uint8
	Version uint8
	Colors  [256]color.NRGBA
	Luma    [256]uint8
}

func parsePalette(p []byte) (*Palette, error) {
	if len(p) < 2 {
		return nil, fmt.Errorf("palette segment too short: %d bytes", len(p))
	}
	if (len(p)-2)%5 != 0 {
		return nil, fmt.Errorf("palette segment has %d trailing bytes", (len(p)-2)%5)
	}
	pal := &Palette{ID: p[0], Version: p[1]}
	for pos := 2; pos+5 <= len(p); pos += 5 {
		idx := p[pos]
		y, cr, cb, a := p[pos+1], p[pos+2], p[pos+3], p[pos+4]
		pal.Colors[idx] = ycbcrToNRGBA(y, cb, cr, a)
		pal.Luma[idx] = y
	}
	return pal, nil
}

// full-range BT.601 conversion, alpha carried verbatim
func ycbcrToNRGBA(y, cb, cr, a uint8) color.NRGBA {
	fy := float64(y)
	fcb := float64(cb) - 128
	fcr := float64(cr) - 128

	r := fy + 1.402*fcr
	g := fy - 0.344136*fcb - 0.714136*fcr
	b := fy + 1.772*fcb

	return color.NRGBA{R: clamp8(r), G: clamp8(g), B: clamp8(b), A: a}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
