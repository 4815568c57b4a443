package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// OCR contains recognition and preprocessing settings.
type OCR struct {
	Engine             string            `toml:"engine"`
	Model              string            `toml:"model"`
	DefaultLanguage    string            `toml:"default_language"`
	TextBrightnessDiff float64           `toml:"text_brightness_diff"`
	Scale              int               `toml:"scale"`
	Padding            int               `toml:"padding"`
	LanguageOverrides  map[string]string `toml:"language_overrides"`
}

// Output contains settings for the files written per track.
type Output struct {
	Format     string `toml:"format"`
	KeepImages bool   `toml:"keep_images"`
}

// Pipeline contains batch scheduling settings.
type Pipeline struct {
	Concurrency int      `toml:"concurrency"`
	MinDuration Duration `toml:"min_duration"`
}

// Config encapsulates all configuration values for subocr.
type Config struct {
	OCR      OCR      `toml:"ocr"`
	Output   Output   `toml:"output"`
	Pipeline Pipeline `toml:"pipeline"`
}

// Duration is a time.Duration written as a Go duration string ("2s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "subocr", "config.toml"), nil
}

// Load reads and validates the configuration at path, or at the default
// location when path is empty. A missing file yields the defaults. It also
// reports the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, "", false, err
		}
		resolved = p
	}

	exists := true
	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, "", false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// SampleConfig returns a commented configuration file with the defaults.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path. An existing file is
// left alone.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
