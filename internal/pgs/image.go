package pgs

import (
	"fmt"
	"image"
	"image/color"
)

type placement struct {
	obj  *Object
	rect image.Rectangle
}

// Image builds the frame shown by an image display set. Every complete
// object is decoded and placed at its composition position; the canvas is
// the union of the object rectangles, so a single object yields exactly its
// full rectangle. The canvas is clipped to the video size of the composition.
//
// When brightnessDiff is positive only pixels whose luma is within
// brightnessDiff (as a fraction of 255) of the brightest opaque color are
// kept, drawn opaque white; everything else becomes transparent.
func (ds *DisplaySet) Image(brightnessDiff float64) (*image.NRGBA, error) {
	if !ds.HasImage() {
		return nil, fmt.Errorf("pgs: display set at offset %d has no image", ds.Offset)
	}
	if ds.Palette == nil {
		return nil, &FormatError{Offset: ds.Offset, Reason: "image display set has no palette"}
	}

	places := ds.placements()
	if len(places) == 0 {
		return nil, fmt.Errorf("pgs: display set at offset %d has no complete object", ds.Offset)
	}

	bounds := places[0].rect
	for _, pl := range places[1:] {
		bounds = bounds.Union(pl.rect)
	}
	if c := ds.Composition; c != nil && c.Width > 0 && c.Height > 0 {
		bounds = bounds.Intersect(image.Rect(0, 0, c.Width, c.Height))
		if bounds.Empty() {
			return nil, &FormatError{Offset: ds.Offset, Reason: "objects are placed outside the video"}
		}
	}

	pal := ds.Palette
	var keep func(idx byte) bool
	if brightnessDiff > 0 {
		keep = textFilter(pal, places, brightnessDiff)
	}

	img := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for _, pl := range places {
		pix := decodeRLE(pl.obj.Data, pl.obj.Width, pl.obj.Height)
		ox := pl.rect.Min.X - bounds.Min.X
		oy := pl.rect.Min.Y - bounds.Min.Y
		for y := 0; y < pl.obj.Height; y++ {
			for x := 0; x < pl.obj.Width; x++ {
				idx := pix[y*pl.obj.Width+x]
				c := pal.Colors[idx]
				if keep != nil {
					if keep(idx) {
						c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
					} else {
						c = color.NRGBA{}
					}
				}
				img.SetNRGBA(ox+x, oy+y, c)
			}
		}
	}
	return img, nil
}

func (ds *DisplaySet) placements() []placement {
	var places []placement
	if ds.Composition != nil {
		for _, co := range ds.Composition.Objects {
			obj := ds.object(co.ObjectID)
			if obj == nil || !obj.complete || obj.Width == 0 || obj.Height == 0 {
				continue
			}
			places = append(places, placement{
				obj:  obj,
				rect: image.Rect(co.X, co.Y, co.X+obj.Width, co.Y+obj.Height),
			})
		}
	}
	if len(places) > 0 {
		return places
	}

	// no usable composition, fall back to the first complete object
	for _, obj := range ds.Objects {
		if obj.complete && obj.Width > 0 && obj.Height > 0 {
			return []placement{{obj: obj, rect: image.Rect(0, 0, obj.Width, obj.Height)}}
		}
	}
	return nil
}

func textFilter(pal *Palette, places []placement, diff float64) func(byte) bool {
	var used [256]bool
	for _, pl := range places {
		for _, idx := range decodeRLE(pl.obj.Data, pl.obj.Width, pl.obj.Height) {
			used[idx] = true
		}
	}

	maxLuma := -1
	for i := range used {
		if used[i] && pal.Colors[i].A > 0 && int(pal.Luma[i]) > maxLuma {
			maxLuma = int(pal.Luma[i])
		}
	}
	if maxLuma < 0 {
		return func(byte) bool { return false }
	}

	threshold := float64(maxLuma) - diff*255
	return func(idx byte) bool {
		return pal.Colors[idx].A > 0 && float64(pal.Luma[idx]) >= threshold
	}
}
