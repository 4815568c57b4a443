package raster

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

const (
	DefaultScale   = 1
	DefaultPadding = 25
)

// preprocessing parameters
type Options struct {
	// integer upscale factor, values below 1 mean identity
	Scale int
	// black margin added on every side, in pixels after scaling
	Padding int
}

func DefaultOptions() Options {
	return Options{Scale: DefaultScale, Padding: DefaultPadding}
}

// Prepare turns a decoded subtitle bitmap into an opaque RGB image: alpha is
// composited against black, the result is upscaled with nearest-neighbour
// sampling and padded with black on all sides.
func Prepare(src image.Image, opts Options) *image.RGBA {
	return Pad(Upscale(Flatten(src), opts.Scale), opts.Padding)
}

// composites src over opaque black
func Flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func Upscale(src *image.RGBA, factor int) *image.RGBA {
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func Pad(src *image.RGBA, margin int) *image.RGBA {
	if margin <= 0 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*margin, b.Dy()+2*margin))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(margin, margin, margin+b.Dx(), margin+b.Dy()), src, b.Min, draw.Src)
	return dst
}
