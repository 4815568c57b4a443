package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/mgpai22/subocr/internal/language"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// implements Engine using OpenAI Chat Completions with an image part
type OpenAIEngine struct {
	client openai.Client
	model  string
}

func NewOpenAIEngine(ctx context.Context, apiKey string, opts Options) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	model := opts.Model
	if model == "" {
		model = "gpt-5-mini"
	}

	return &OpenAIEngine{
		client: client,
		model:  model,
	}, nil
}

func (e *OpenAIEngine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	completion, err := e.client.Chat.Completions.New(
		ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
					openai.TextContentPart(BuildPrompt(lang)),
					openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: dataURL,
					}),
				}),
			},
			Model: e.model,
		},
	)
	if err != nil {
		return "", fmt.Errorf("recognition failed: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	return cleanResponse(completion.Choices[0].Message.Content), nil
}

func (e *OpenAIEngine) Languages(ctx context.Context) ([]string, error) {
	return language.Known(), nil
}

func (e *OpenAIEngine) Close() error {
	return nil
}
