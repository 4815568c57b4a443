package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"regexp"
	"strings"

	"github.com/mgpai22/subocr/internal/language"
)

// recognizes text in a prepared subtitle image
type Engine interface {
	Recognize(ctx context.Context, img image.Image, lang string) (string, error)
	// language codes the engine can recognize
	Languages(ctx context.Context) ([]string, error)
	Close() error
}

// OCR backend
type Provider string

const (
	ProviderTesseract    Provider = "tesseract"
	ProviderLibTesseract Provider = "libtesseract"
	ProviderGemini       Provider = "gemini"
	ProviderOpenAI       Provider = "openai"
	ProviderAnthropic    Provider = "anthropic"
)

type Options struct {
	// LLM model, provider default when empty
	Model string
	// tesseract executable, looked up on PATH when empty
	BinaryPath string
	// tesseract page segmentation mode
	PageSegMode PageSegMode
}

// tesseract page segmentation modes used here
type PageSegMode int

const (
	PSMAuto        PageSegMode = 3
	PSMSingleBlock PageSegMode = 6
	PSMSingleLine  PageSegMode = 7
)

// creates an Engine for the provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Engine, error) {
	if opts.PageSegMode == 0 {
		opts.PageSegMode = PSMSingleBlock
	}

	switch provider {
	case ProviderTesseract, "":
		return NewTesseractEngine(ctx, opts)
	case ProviderLibTesseract:
		return NewLibTesseractEngine(opts)
	case ProviderGemini:
		return NewGeminiEngine(ctx, apiKey, opts)
	case ProviderOpenAI:
		return NewOpenAIEngine(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicEngine(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", provider)
	}
}

// environment variable holding the API key of an LLM provider
func APIKeyEnv(provider Provider) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// API key from the flag value or the provider's environment variable
func ResolveAPIKey(provider Provider, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := APIKeyEnv(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildPrompt creates the transcription prompt for LLM providers
func BuildPrompt(lang string) string {
	var sb strings.Builder
	sb.WriteString("The image is a single subtitle frame from a video: light text on a black background.\n")
	if lang != "" {
		sb.WriteString(fmt.Sprintf("The text is in %s.\n", language.Name(lang)))
	}
	sb.WriteString("Transcribe the text exactly as shown, keeping the line breaks.\n")
	sb.WriteString("Reply with the text only: no quotes, no commentary, no markdown.\n")
	sb.WriteString("If the image contains no text, reply with an empty message.")
	return sb.String()
}

var codeFenceRegex = regexp.MustCompile("```[a-zA-Z]*\\s*")

// strips markdown fences and surrounding whitespace from model output
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = codeFenceRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
