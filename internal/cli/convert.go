package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/convert"
	"github.com/mgpai22/subocr/internal/media"
)

var convertCmd = &cobra.Command{
	Use:   "convert <video|dir>",
	Short: "Extract and OCR every image subtitle track",
	Long: `Extract every subtitle track of a video file and convert the PGS and
VobSub tracks to SubRip with OCR. A directory produced by "subocr extract"
can be given instead of a video, in which case extraction is skipped.

Tracks are converted in parallel. A failed track does not stop the others;
the command exits with an error listing the failures.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().
		StringP("workdir", "w", "", "Directory for extracted tracks and output (default: <video>_subs)")
	addOCRFlags(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input := args[0]

	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input not found: %s", input)
	}

	if err := applyOCRFlags(cmd, cfg); err != nil {
		return err
	}

	dir := input
	if !info.IsDir() {
		dir, _ = cmd.Flags().GetString("workdir")
		if dir == "" {
			dir = defaultWorkDir(input)
		}

		logger.Infow("probing subtitle tracks", "input", input)
		inv, err := media.Probe(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to probe input: %w", err)
		}
		if len(inv.Tracks) == 0 {
			return fmt.Errorf("no subtitle tracks in %s", input)
		}

		logger.Infow("extracting subtitle tracks", "tracks", len(inv.Tracks), "output", dir)
		extractor := media.NewExtractor(dir, cfg.Pipeline.Concurrency, logger)
		if _, err := extractor.Extract(ctx, inv); err != nil {
			return fmt.Errorf("failed to extract subtitles: %w", err)
		}
	}

	engine, err := newEngine(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	logger.Infow("converting subtitle tracks",
		"dir", dir,
		"engine", cfg.OCR.Engine,
		"concurrency", cfg.Pipeline.Concurrency,
	)
	start := time.Now()
	converter := convert.New(engine, converterOptions(cmd, cfg), logger)
	results, err := converter.Run(ctx, dir)
	if len(results) > 0 {
		fmt.Println(summaryTable(results))
	}
	if err != nil {
		var batch *convert.BatchError
		if errors.As(err, &batch) {
			for _, f := range batch.Failed {
				logger.Errorw("track failed", "track", f.Track, "kind", f.Kind, "error", f.Err)
			}
		}
		return err
	}

	fmt.Printf("\nConverted %d tracks in %s\n", len(results), time.Since(start).Round(time.Second))
	fmt.Printf("Output: %s\n", dir)
	return nil
}

// video.mkv -> video_subs next to the input
func defaultWorkDir(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_subs"
}
