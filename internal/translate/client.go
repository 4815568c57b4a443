package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/mgpai22/subocr/internal/ocr"
)

// sends one text prompt to a model and returns its reply
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewCompleter creates a client for an LLM provider. Model is the
// provider default when empty.
func NewCompleter(ctx context.Context, provider ocr.Provider, apiKey, model string) (Completer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	switch provider {
	case ocr.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		if model == "" {
			model = "gemini-2.5-flash"
		}
		return &geminiCompleter{client: client, model: model}, nil
	case ocr.ProviderOpenAI:
		if model == "" {
			model = "gpt-5-mini"
		}
		return &openAICompleter{
			client: openai.NewClient(openaioption.WithAPIKey(apiKey)),
			model:  model,
		}, nil
	case ocr.ProviderAnthropic:
		m := anthropic.Model(model)
		if model == "" {
			m = anthropic.ModelClaudeHaiku4_5
		}
		return &anthropicCompleter{
			client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
			model:  m,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported translation provider: %s", provider)
	}
}

type geminiCompleter struct {
	client *genai.Client
	model  string
}

func (c *geminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", errEmptyResponse
	}

	var sb strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", errEmptyResponse
	}
	return sb.String(), nil
}

type openAICompleter struct {
	client openai.Client
	model  string
}

func (c *openAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:    c.model,
	})
	if err != nil {
		return "", err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", errEmptyResponse
	}
	return completion.Choices[0].Message.Content, nil
}

type anthropicCompleter struct {
	client anthropic.Client
	model  anthropic.Model
}

func (c *anthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	if message == nil {
		return "", errEmptyResponse
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errEmptyResponse
	}
	return sb.String(), nil
}
