// Package raster holds decoded subtitle bitmaps and prepares them for OCR.
package raster

import (
	"image"
	"image/color"
)

// 4-channel float image with values in [0,1], RGBA order, row major
type Float struct {
	Width  int
	Height int
	Pix    []float32
}

func NewFloat(width, height int) *Float {
	return &Float{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*4),
	}
}

func (f *Float) offset(x, y int) int {
	return (y*f.Width + x) * 4
}

func (f *Float) Set(x, y int, r, g, b, a float32) {
	i := f.offset(x, y)
	f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = r, g, b, a
}

// returns the four channels at (x, y)
func (f *Float) Channels(x, y int) (r, g, b, a float32) {
	i := f.offset(x, y)
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3]
}

// mean over every channel of every pixel
func (f *Float) Mean() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range f.Pix {
		sum += float64(v)
	}
	return sum / float64(len(f.Pix))
}

func (f *Float) ColorModel() color.Model {
	return color.NRGBA64Model
}

func (f *Float) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *Float) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.NRGBA64{}
	}
	r, g, b, a := f.Channels(x, y)
	return color.NRGBA64{R: to16(r), G: to16(g), B: to16(b), A: to16(a)}
}

func to16(v float32) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	default:
		return uint16(v*0xffff + 0.5)
	}
}

// ContentBox finds the tight box around the subtitle text. When the mean
// value is above 0.5 the background is light and the box covers pixels with
// any channel below 1, otherwise pixels with any channel above 0. The box is
// inclusive of its last row and column. ok is false when no pixel qualifies.
func (f *Float) ContentBox() (box image.Rectangle, ok bool) {
	light := f.Mean() > 0.5
	minX, minY := f.Width, f.Height
	maxX, maxY := -1, -1

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := f.offset(x, y)
			hit := false
			for c := 0; c < 4; c++ {
				v := f.Pix[i+c]
				if (light && v < 1) || (!light && v > 0) {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// copies the pixels inside r, clipped to the raster bounds
func (f *Float) Crop(r image.Rectangle) *Float {
	r = r.Intersect(f.Bounds())
	out := NewFloat(r.Dx(), r.Dy())
	for y := 0; y < r.Dy(); y++ {
		src := f.offset(r.Min.X, r.Min.Y+y)
		dst := out.offset(0, y)
		copy(out.Pix[dst:dst+r.Dx()*4], f.Pix[src:src+r.Dx()*4])
	}
	return out
}

// CropToContent crops to ContentBox. With no qualifying pixel it returns the
// top-left 1x1 region and ok is false so the caller can warn.
func (f *Float) CropToContent() (*Float, bool) {
	box, ok := f.ContentBox()
	if !ok {
		if f.Width == 0 || f.Height == 0 {
			return NewFloat(1, 1), false
		}
		return f.Crop(image.Rect(0, 0, 1, 1)), false
	}
	return f.Crop(box), true
}
