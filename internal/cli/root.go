package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/config"
	"github.com/mgpai22/subocr/internal/logging"
)

var (
	verbose    bool
	configPath string
	logger     *logging.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "subocr",
	Short: "Convert image-based subtitles to text with OCR",
	Long: `subocr extracts subtitle tracks from video files and turns image-based
subtitles (Blu-ray PGS and DVD VobSub) into SubRip text files.

Recognition runs through tesseract or a vision model (Gemini, OpenAI,
Anthropic). Finished files are checked for common OCR mistakes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)
		loaded, path, exists, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		logger.Debugw("configuration loaded", "path", path, "exists", exists)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

// Execute runs the root command. Interrupts cancel the running conversion;
// tracks already written stay on disk.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/subocr/config.toml)")
}
