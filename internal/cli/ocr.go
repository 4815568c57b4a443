package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/convert"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <file.sup|file.sub|file.idx>",
	Short: "Convert a single PGS or VobSub file",
	Long: `Convert one subtitle file to SubRip. For VobSub either the .sub or the
.idx file may be given; the other must sit next to it. The output is written
next to the input with the .srt extension.`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

func init() {
	rootCmd.AddCommand(ocrCmd)
	addOCRFlags(ocrCmd)
}

func runOCR(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input := args[0]
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file not found: %s", input)
	}

	if err := applyOCRFlags(cmd, cfg); err != nil {
		return err
	}

	// an explicit --language wins over the configured default for this file
	lang := ""
	if cmd.Flags().Changed("language") {
		lang = cfg.OCR.DefaultLanguage
	}
	track, err := convert.TrackFromFile(input, lang)
	if err != nil {
		return err
	}

	engine, err := newEngine(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	converter := convert.New(engine, converterOptions(cmd, cfg), logger)
	results, err := converter.RunTracks(ctx, filepath.Dir(input), []convert.Track{track})
	if err != nil {
		return err
	}

	r := results[0]
	out := r.Output
	if r.Converted != "" {
		out = r.Converted
	}
	fmt.Printf("\nRecognized %d subtitles (%d fixes) in %s\n", r.Records, r.Fixes, r.Elapsed.Round(100*time.Millisecond))
	fmt.Printf("Output: %s\n", out)
	return nil
}
