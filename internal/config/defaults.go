package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/mgpai22/subocr/internal/language"
)

const (
	defaultEngine             = "tesseract"
	defaultTextBrightnessDiff = 0.1
	defaultScale              = 1
	defaultPadding            = 25
	defaultFormat             = "srt"
	defaultMinDuration        = 2 * time.Second
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OCR: OCR{
			Engine:             defaultEngine,
			DefaultLanguage:    language.DefaultLanguage,
			TextBrightnessDiff: defaultTextBrightnessDiff,
			Scale:              defaultScale,
			Padding:            defaultPadding,
			LanguageOverrides:  map[string]string{},
		},
		Output: Output{
			Format: defaultFormat,
		},
		Pipeline: Pipeline{
			Concurrency: defaultConcurrency(),
			MinDuration: Duration{defaultMinDuration},
		},
	}
}

func defaultConcurrency() int {
	return min(runtime.NumCPU(), 4)
}

// normalize lower-cases names and maps language codes to OCR codes.
func (c *Config) normalize() {
	c.OCR.Engine = strings.ToLower(strings.TrimSpace(c.OCR.Engine))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if lang := language.Normalize(c.OCR.DefaultLanguage); lang != "" {
		c.OCR.DefaultLanguage = lang
	}

	overrides := make(map[string]string, len(c.OCR.LanguageOverrides))
	for from, to := range c.OCR.LanguageOverrides {
		overrides[language.Normalize(from)] = language.Normalize(to)
	}
	c.OCR.LanguageOverrides = overrides
}
