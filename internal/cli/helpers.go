package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/config"
	"github.com/mgpai22/subocr/internal/convert"
	"github.com/mgpai22/subocr/internal/language"
	"github.com/mgpai22/subocr/internal/ocr"
	"github.com/mgpai22/subocr/internal/raster"
	"github.com/mgpai22/subocr/internal/subtitle"
)

// flags shared by every command that runs OCR
func addOCRFlags(cmd *cobra.Command) {
	cmd.Flags().
		StringP("engine", "e", "", "OCR engine (tesseract, libtesseract, gemini, openai, anthropic)")
	cmd.Flags().
		String("model", "", "Vision model for LLM engines (provider default when empty)")
	cmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY)")
	cmd.Flags().
		StringP("language", "l", "", "Default OCR language (e.g., eng, de, french)")
	cmd.Flags().
		StringP("format", "f", "", "Output subtitle format (srt, vtt, ass)")
	cmd.Flags().
		Int("concurrency", 0, "Number of tracks converted in parallel")
	cmd.Flags().
		Int("scale", 0, "Upscale factor applied before OCR")
	cmd.Flags().
		Bool("keep-images", false, "Keep every OCR frame as a JPEG under images/")
	cmd.Flags().
		Bool("no-check", false, "Skip the OCR mistake fixes")
}

// applyOCRFlags overrides configuration values with explicitly set flags.
func applyOCRFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		v, _ := flags.GetString("engine")
		c.OCR.Engine = strings.ToLower(v)
	}
	if flags.Changed("model") {
		c.OCR.Model, _ = flags.GetString("model")
	}
	if flags.Changed("language") {
		v, _ := flags.GetString("language")
		if lang := language.Normalize(v); lang != "" {
			c.OCR.DefaultLanguage = lang
		}
	}
	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		c.Output.Format = strings.ToLower(v)
	}
	if flags.Changed("concurrency") {
		c.Pipeline.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("scale") {
		c.OCR.Scale, _ = flags.GetInt("scale")
	}
	if flags.Changed("keep-images") {
		c.Output.KeepImages, _ = flags.GetBool("keep-images")
	}
	return c.Validate()
}

func newEngine(ctx context.Context, cmd *cobra.Command, c *config.Config) (ocr.Engine, error) {
	provider := ocr.Provider(c.OCR.Engine)
	flagKey, _ := cmd.Flags().GetString("api-key")
	apiKey := ocr.ResolveAPIKey(provider, flagKey)
	if env := ocr.APIKeyEnv(provider); env != "" && apiKey == "" {
		return nil, fmt.Errorf("%s API key is required: use --api-key flag or set %s environment variable", provider, env)
	}

	engine, err := ocr.Factory(ctx, provider, apiKey, ocr.Options{Model: c.OCR.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}
	return engine, nil
}

func converterOptions(cmd *cobra.Command, c *config.Config) convert.Options {
	format, _ := subtitle.ParseFormat(c.Output.Format)
	skipCheck, _ := cmd.Flags().GetBool("no-check")
	return convert.Options{
		Concurrency:        c.Pipeline.Concurrency,
		DefaultLanguage:    c.OCR.DefaultLanguage,
		LanguageOverrides:  c.OCR.LanguageOverrides,
		Raster:             raster.Options{Scale: c.OCR.Scale, Padding: c.OCR.Padding},
		TextBrightnessDiff: c.OCR.TextBrightnessDiff,
		MinDuration:        c.Pipeline.MinDuration.Duration,
		KeepImages:         c.Output.KeepImages,
		Format:             format,
		Progress:           progressWriter(),
		SkipCheck:          skipCheck,
	}
}

// progress bars only make sense on an interactive terminal, and would
// interleave with verbose log lines
func progressWriter() io.Writer {
	if verbose || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return os.Stderr
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// summaryTable renders one row per converted track.
func summaryTable(results []convert.TrackResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = string(r.Err.Kind) + " error"
		case r.Passthrough:
			status = "passthrough"
		}
		lang := r.Language.Language
		if r.Language.Fallback {
			lang += " (fallback)"
		}
		output := filepath.Base(r.Output)
		if r.Converted != "" {
			output = filepath.Base(r.Converted)
		}
		if r.Err != nil {
			output = "-"
		}
		rows = append(rows, []string{
			r.Track.ID,
			string(r.Track.Kind),
			lang,
			fmt.Sprintf("%d", r.Records),
			fmt.Sprintf("%d", r.Fixes),
			output,
			status,
		})
	}
	return renderTable(
		[]string{"Track", "Format", "Language", "Records", "Fixes", "Output", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}
