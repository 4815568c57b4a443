package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/language"
	"github.com/mgpai22/subocr/internal/ocr"
	"github.com/mgpai22/subocr/internal/subtitle"
	"github.com/mgpai22/subocr/internal/translate"
)

var translateCmd = &cobra.Command{
	Use:   "translate <file.srt>",
	Short: "Translate a SubRip file with an LLM",
	Long: `Translate the text of a SubRip file, usually one produced by "subocr
convert", keeping every cue's timing. The result is written next to the
input as <name>.<language>.<format>.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().
		StringP("to", "t", "", "Target language (required)")
	translateCmd.Flags().
		String("from", "", "Source language (default: detected by the model)")
	translateCmd.Flags().
		StringP("engine", "e", "gemini", "Translation provider (gemini, openai, anthropic)")
	translateCmd.Flags().
		String("model", "", "Model name (provider default when empty)")
	translateCmd.Flags().
		StringP("api-key", "k", "", "API key (or set GEMINI_API_KEY/OPENAI_API_KEY/ANTHROPIC_API_KEY)")
	translateCmd.Flags().
		StringP("prompt", "p", "", "Additional instructions for the model")
	translateCmd.Flags().
		Int("batch-size", translate.DefaultBatchSize, "Cues per request")
	translateCmd.Flags().
		Int("concurrency", 3, "Requests in flight")
	translateCmd.Flags().
		StringP("format", "f", "srt", "Output subtitle format (srt, vtt, ass)")
	translateCmd.Flags().
		StringP("output", "o", "", "Output file (default: next to the input)")

	_ = translateCmd.MarkFlagRequired("to")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input := args[0]

	target, _ := cmd.Flags().GetString("to")
	from, _ := cmd.Flags().GetString("from")
	engine, _ := cmd.Flags().GetString("engine")
	model, _ := cmd.Flags().GetString("model")
	flagKey, _ := cmd.Flags().GetString("api-key")
	prompt, _ := cmd.Flags().GetString("prompt")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	formatName, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	format, ok := subtitle.ParseFormat(formatName)
	if !ok {
		return fmt.Errorf("invalid format: %s (must be srt, vtt, or ass)", formatName)
	}

	file, err := subtitle.Open(input)
	if err != nil {
		return err
	}
	sub := file.Subtitle()
	if from == "" {
		from = sub.Language
	}

	provider := ocr.Provider(strings.ToLower(engine))
	apiKey := ocr.ResolveAPIKey(provider, flagKey)
	if apiKey == "" && ocr.APIKeyEnv(provider) != "" {
		return fmt.Errorf("%s API key is required: use --api-key flag or set %s environment variable", provider, ocr.APIKeyEnv(provider))
	}
	client, err := translate.NewCompleter(ctx, provider, apiKey, model)
	if err != nil {
		return err
	}

	translator, err := translate.New(client, translate.Options{
		InputLanguage:  from,
		TargetLanguage: target,
		Prompt:         prompt,
		BatchSize:      batchSize,
		Concurrency:    concurrency,
	}, logger)
	if err != nil {
		return err
	}

	if output == "" {
		output = translatedPath(input, target, format)
	}

	logger.Infow("translating subtitles",
		"input", input,
		"entries", len(sub.Entries),
		"target", language.Name(target),
		"provider", provider,
	)
	result, err := translator.Translate(ctx, sub)
	if err != nil {
		return err
	}

	writer, err := subtitle.NewWriter(format)
	if err != nil {
		return err
	}
	if err := writer.Write(result, output); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	fmt.Printf("\nTranslated %d subtitles to %s\n", len(result.Entries), language.Name(target))
	fmt.Printf("Output: %s\n", output)
	return nil
}

// movie/0.srt + german -> movie/0.deu.srt
func translatedPath(input, target string, format subtitle.Format) string {
	lang := language.Normalize(target)
	if lang == "" {
		lang = "translated"
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + "." + lang + subtitle.GetExtensionForFormat(format)
}
