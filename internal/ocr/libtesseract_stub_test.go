//go:build !gosseract

package ocr

import (
	"context"
	"errors"
	"testing"
)

func TestLibTesseractNotEnabled(t *testing.T) {
	_, err := Factory(context.Background(), ProviderLibTesseract, "", Options{})
	if !errors.Is(err, ErrLibTesseractNotEnabled) {
		t.Errorf("Factory(libtesseract) error = %v, want ErrLibTesseractNotEnabled", err)
	}
}
