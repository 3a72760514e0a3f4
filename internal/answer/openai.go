package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// OpenAIProvider completes prompts via the OpenAI chat completions API.
// It is wired as the secondary provider behind Gemini.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(client openai.Client, model string, maxTokens int64) (*OpenAIProvider, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &OpenAIProvider{client: client, model: model, maxTokens: maxTokens}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return "openai/" + p.model
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		MaxTokens: openai.Int(p.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai returned no text")
	}
	return text, nil
}
