package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mgpai22/subocr/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent")
	}
	if cfg.OCR.Engine != "tesseract" {
		t.Fatalf("unexpected engine: %q", cfg.OCR.Engine)
	}
	if cfg.OCR.DefaultLanguage != "eng" {
		t.Fatalf("unexpected default language: %q", cfg.OCR.DefaultLanguage)
	}
	if cfg.OCR.Padding != 25 || cfg.OCR.Scale != 1 {
		t.Fatalf("unexpected raster defaults: scale=%d padding=%d", cfg.OCR.Scale, cfg.OCR.Padding)
	}
	if cfg.Output.Format != "srt" || cfg.Output.KeepImages {
		t.Fatalf("unexpected output defaults: %+v", cfg.Output)
	}
	if cfg.Pipeline.MinDuration.Duration != 2*time.Second {
		t.Fatalf("unexpected min duration: %v", cfg.Pipeline.MinDuration)
	}
	if cfg.Pipeline.Concurrency < 1 {
		t.Fatalf("unexpected concurrency: %d", cfg.Pipeline.Concurrency)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[ocr]
engine = "Gemini"
default_language = "ger"
text_brightness_diff = 0.0
padding = 10

[ocr.language_overrides]
fre = "de"

[output]
format = "vtt"
keep_images = true

[pipeline]
concurrency = 2
min_duration = "1500ms"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.OCR.Engine != "gemini" {
		t.Fatalf("expected engine to be lower-cased, got %q", cfg.OCR.Engine)
	}
	if cfg.OCR.DefaultLanguage != "deu" {
		t.Fatalf("expected normalized language deu, got %q", cfg.OCR.DefaultLanguage)
	}
	if got := cfg.OCR.LanguageOverrides["fra"]; got != "deu" {
		t.Fatalf("expected override fra=deu, got %v", cfg.OCR.LanguageOverrides)
	}
	if cfg.OCR.Scale != 1 {
		t.Fatalf("expected unset scale to keep default, got %d", cfg.OCR.Scale)
	}
	if cfg.OCR.TextBrightnessDiff != 0 || cfg.OCR.Padding != 10 {
		t.Fatalf("unexpected ocr values: %+v", cfg.OCR)
	}
	if cfg.Output.Format != "vtt" || !cfg.Output.KeepImages {
		t.Fatalf("unexpected output: %+v", cfg.Output)
	}
	if cfg.Pipeline.Concurrency != 2 || cfg.Pipeline.MinDuration.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected pipeline: %+v", cfg.Pipeline)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"engine", "[ocr]\nengine = \"paddle\"\n", "ocr.engine"},
		{"brightness", "[ocr]\ntext_brightness_diff = 2.0\n", "text_brightness_diff"},
		{"scale", "[ocr]\nscale = 0\n", "ocr.scale"},
		{"format", "[output]\nformat = \"sup\"\n", "output.format"},
		{"concurrency", "[pipeline]\nconcurrency = 0\n", "pipeline.concurrency"},
		{"duration", "[pipeline]\nmin_duration = \"soon\"\n", "parse config"},
		{"unknown key", "[ocr]\nlanguage = \"eng\"\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	def := config.Default()
	if cfg.OCR.Engine != def.OCR.Engine || cfg.OCR.Padding != def.OCR.Padding {
		t.Fatalf("sample ocr section differs from defaults: %+v", cfg.OCR)
	}
	if cfg.Pipeline.MinDuration != def.Pipeline.MinDuration {
		t.Fatalf("sample min_duration %v, default %v", cfg.Pipeline.MinDuration, def.Pipeline.MinDuration)
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when config exists")
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("Load of sample failed: exists=%v err=%v", exists, err)
	}
}
