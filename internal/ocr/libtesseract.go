//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// links libtesseract through gosseract. A client is not safe for concurrent
// use, so calls are serialized
type LibTesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func NewLibTesseractEngine(opts Options) (*LibTesseractEngine, error) {
	client := gosseract.NewClient()
	if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	return &LibTesseractEngine{client: client}, nil
}

func (e *LibTesseractEngine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if lang != "" {
		if err := e.client.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("failed to set language %q: %w", lang, err)
		}
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("libtesseract failed: %w", err)
	}
	return text, nil
}

func (e *LibTesseractEngine) Languages(ctx context.Context) ([]string, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("failed to list tesseract languages: %w", err)
	}
	return langs, nil
}

func (e *LibTesseractEngine) Close() error {
	return e.client.Close()
}
