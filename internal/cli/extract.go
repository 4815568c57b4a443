package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/media"
)

var extractCmd = &cobra.Command{
	Use:   "extract <video>",
	Short: "Extract subtitle tracks without running OCR",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var tracksCmd = &cobra.Command{
	Use:   "tracks <video>",
	Short: "List the subtitle tracks of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runTracks,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(tracksCmd)

	extractCmd.Flags().
		StringP("workdir", "w", "", "Output directory (default: <video>_subs)")
	extractCmd.Flags().
		Int("concurrency", 0, "Number of tracks extracted in parallel")
	tracksCmd.Flags().
		Bool("json", false, "Print the track list as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	input := args[0]
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file not found: %s", input)
	}

	dir, _ := cmd.Flags().GetString("workdir")
	if dir == "" {
		dir = defaultWorkDir(input)
	}
	concurrency := cfg.Pipeline.Concurrency
	if cmd.Flags().Changed("concurrency") {
		concurrency, _ = cmd.Flags().GetInt("concurrency")
	}

	inv, err := media.Probe(cmd.Context(), input)
	if err != nil {
		return fmt.Errorf("failed to probe input: %w", err)
	}

	logger.Infow("extracting subtitle tracks", "tracks", len(inv.Tracks), "output", dir)
	extracted, err := media.NewExtractor(dir, concurrency, logger).Extract(cmd.Context(), inv)
	if len(extracted) > 0 {
		fmt.Println(trackTable(extracted))
	}
	if err != nil {
		return fmt.Errorf("failed to extract subtitles: %w", err)
	}

	fmt.Printf("\nExtracted %d tracks to %s\n", len(extracted), dir)
	return nil
}

func runTracks(cmd *cobra.Command, args []string) error {
	inv, err := media.Probe(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to probe input: %w", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		data, err := jsonIndent(inv.Tracks)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(inv.Tracks) == 0 {
		fmt.Println("No subtitle tracks found")
		return nil
	}
	fmt.Println(trackTable(inv.Tracks))
	fmt.Printf("%s, %d subtitle tracks\n", humanize.Bytes(uint64(max(inv.Size, 0))), len(inv.Tracks))
	return nil
}

func trackTable(tracks []media.Track) string {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		flags := ""
		if t.Default {
			flags += "default "
		}
		if t.Forced {
			flags += "forced"
		}
		lang := t.Language
		if lang == "" {
			lang = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			t.Codec,
			string(t.Kind),
			lang,
			t.Title,
			flags,
			t.HumanSize(),
		})
	}
	return renderTable(
		[]string{"ID", "Codec", "Kind", "Language", "Title", "Flags", "Size"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
