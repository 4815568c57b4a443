//go:build !gosseract

package ocr

import (
	"context"
	"errors"
	"image"
)

// returned when the binary was built without the gosseract tag
var ErrLibTesseractNotEnabled = errors.New("libtesseract support not enabled; rebuild with -tags gosseract")

type LibTesseractEngine struct{}

func NewLibTesseractEngine(opts Options) (*LibTesseractEngine, error) {
	return nil, ErrLibTesseractNotEnabled
}

func (e *LibTesseractEngine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	return "", ErrLibTesseractNotEnabled
}

func (e *LibTesseractEngine) Languages(ctx context.Context) ([]string, error) {
	return nil, ErrLibTesseractNotEnabled
}

func (e *LibTesseractEngine) Close() error {
	return nil
}
