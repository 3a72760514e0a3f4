package answer

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleProvider completes prompts via the Gemini API.
type GoogleProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewGoogleProvider creates a Gemini-backed provider.
func NewGoogleProvider(client *genai.Client, model string, maxTokens int32, temperature float32) (*GoogleProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return &GoogleProvider{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Name implements Provider.
func (p *GoogleProvider) Name() string {
	return "google/" + p.model
}

// Complete implements Provider.
func (p *GoogleProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		MaxOutputTokens:   p.maxTokens,
		Temperature:       genai.Ptr(p.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}
