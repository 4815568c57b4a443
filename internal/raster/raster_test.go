package raster

import (
	"image"
	"image/color"
	"testing"
)

func fill(f *Float, v float32) {
	for i := range f.Pix {
		f.Pix[i] = v
	}
}

func TestContentBox(t *testing.T) {
	t.Run("light background selects dark region", func(t *testing.T) {
		f := NewFloat(10, 10)
		fill(f, 1)
		// 20% of the pixels fall below the threshold
		for y := 3; y < 8; y++ {
			for x := 2; x < 6; x++ {
				f.Set(x, y, 0, 0, 0, 1)
			}
		}
		if m := f.Mean(); m <= 0.5 {
			t.Fatalf("Mean() = %v, want > 0.5", m)
		}
		box, ok := f.ContentBox()
		if !ok {
			t.Fatal("ContentBox() found nothing")
		}
		want := image.Rect(2, 3, 6, 8)
		if box != want {
			t.Errorf("ContentBox() = %v, want %v", box, want)
		}
	})

	t.Run("dark background selects bright region", func(t *testing.T) {
		f := NewFloat(8, 4)
		f.Set(1, 1, 1, 1, 1, 1)
		f.Set(6, 2, 0.5, 0.5, 0.5, 1)
		box, ok := f.ContentBox()
		if !ok {
			t.Fatal("ContentBox() found nothing")
		}
		want := image.Rect(1, 1, 7, 3)
		if box != want {
			t.Errorf("ContentBox() = %v, want %v", box, want)
		}
	})

	uniform := []struct {
		name  string
		value float32
	}{
		{"all white", 1},
		{"all black", 0},
	}
	for _, tt := range uniform {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFloat(5, 5)
			fill(f, tt.value)
			if _, ok := f.ContentBox(); ok {
				t.Errorf("ContentBox() on uniform raster reported content")
			}
			cropped, ok := f.CropToContent()
			if ok {
				t.Errorf("CropToContent() ok = true, want false")
			}
			if cropped.Width != 1 || cropped.Height != 1 {
				t.Errorf("fallback size = %dx%d, want 1x1", cropped.Width, cropped.Height)
			}
		})
	}

	t.Run("empty raster", func(t *testing.T) {
		cropped, ok := NewFloat(0, 0).CropToContent()
		if ok || cropped.Width != 1 || cropped.Height != 1 {
			t.Errorf("CropToContent() = %dx%d ok=%v, want 1x1 false", cropped.Width, cropped.Height, ok)
		}
	})
}

func TestCrop(t *testing.T) {
	f := NewFloat(3, 3)
	f.Set(2, 2, 0.25, 0.5, 0.75, 1)
	c := f.Crop(image.Rect(1, 1, 5, 5))
	if c.Width != 2 || c.Height != 2 {
		t.Fatalf("Crop size = %dx%d, want 2x2", c.Width, c.Height)
	}
	r, g, b, a := c.Channels(1, 1)
	if r != 0.25 || g != 0.5 || b != 0.75 || a != 1 {
		t.Errorf("Channels(1,1) = %v %v %v %v", r, g, b, a)
	}
}

func TestPrepare(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 0})

	got := Prepare(src, Options{Scale: 2, Padding: 3})
	if got.Bounds().Dx() != 10 || got.Bounds().Dy() != 8 {
		t.Fatalf("size = %v, want 10x8", got.Bounds())
	}

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{0, 0, color.RGBA{A: 255}},
		{3, 3, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{5, 3, color.RGBA{A: 255}},
		{9, 7, color.RGBA{A: 255}},
	}
	for _, tt := range tests {
		if c := got.RGBAAt(tt.x, tt.y); c != tt.want {
			t.Errorf("RGBAAt(%d,%d) = %v, want %v", tt.x, tt.y, c, tt.want)
		}
	}
}

func TestFloatCompositesOnBlack(t *testing.T) {
	f := NewFloat(1, 1)
	f.Set(0, 0, 1, 1, 1, 0.5)
	got := Flatten(f).RGBAAt(0, 0)
	if got.R < 126 || got.R > 129 || got.A != 255 {
		t.Errorf("Flatten() = %v, want half gray opaque", got)
	}
}

func TestPrepareIdentity(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	got := Prepare(src, Options{Scale: 1, Padding: 0})
	if got.Bounds().Dx() != 4 || got.Bounds().Dy() != 2 {
		t.Errorf("size = %v, want 4x2", got.Bounds())
	}
}
