package config

import (
	"errors"
	"fmt"

	"github.com/mgpai22/subocr/internal/ocr"
	"github.com/mgpai22/subocr/internal/subtitle"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validatePipeline()
}

func (c *Config) validateOCR() error {
	switch ocr.Provider(c.OCR.Engine) {
	case ocr.ProviderTesseract, ocr.ProviderLibTesseract,
		ocr.ProviderGemini, ocr.ProviderOpenAI, ocr.ProviderAnthropic:
	default:
		return fmt.Errorf("ocr.engine %q is not supported", c.OCR.Engine)
	}
	if c.OCR.DefaultLanguage == "" {
		return errors.New("ocr.default_language must be set")
	}
	if c.OCR.TextBrightnessDiff < 0 || c.OCR.TextBrightnessDiff > 1 {
		return errors.New("ocr.text_brightness_diff must be between 0 and 1")
	}
	if c.OCR.Scale < 1 {
		return errors.New("ocr.scale must be at least 1")
	}
	if c.OCR.Padding < 0 {
		return errors.New("ocr.padding must not be negative")
	}
	for from, to := range c.OCR.LanguageOverrides {
		if from == "" || to == "" {
			return errors.New("ocr.language_overrides must not contain empty codes")
		}
	}
	return nil
}

func (c *Config) validateOutput() error {
	if _, ok := subtitle.ParseFormat(c.Output.Format); !ok {
		return fmt.Errorf("output.format %q must be one of srt, vtt, ass", c.Output.Format)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be at least 1")
	}
	if c.Pipeline.MinDuration.Duration <= 0 {
		return errors.New("pipeline.min_duration must be positive")
	}
	return nil
}
