package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrGeneration indicates every configured LLM provider failed.
// Callers degrade to the fixed Unavailable string instead of propagating it.
var ErrGeneration = errors.New("generation provider failure")

// DefaultCompletionTimeout bounds a single provider round trip.
const DefaultCompletionTimeout = 60 * time.Second

// Provider completes a (system, user) prompt pair into response text.
type Provider interface {
	// Complete returns the model's text response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name identifies the provider/model for evidence records.
	Name() string
}

// Disabled is a Completer for deployments with no generation credentials
// configured. Every call fails with ErrGeneration, so the generator degrades
// to the fixed Unavailable text while citations and evidence still flow.
type Disabled struct{}

// Complete always reports total provider failure.
func (Disabled) Complete(context.Context, string, string) (string, string, error) {
	return "", "", fmt.Errorf("%w: no generation provider configured", ErrGeneration)
}

// Chain tries providers in configured order and returns the first success.
//
// Primary/fallback ordering is the whole point: a transient outage of the
// primary provider degrades to the secondary before the caller ever sees an
// error. Raw provider errors are logged in full server-side but only the
// ErrGeneration sentinel crosses the boundary.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChain creates a provider chain. At least one provider is required.
func NewChain(providers []Provider, timeout time.Duration, logger *slog.Logger) (*Chain, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if timeout == 0 {
		timeout = DefaultCompletionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, timeout: timeout, logger: logger}, nil
}

// Complete runs the prompt through the chain, returning the response text
// and the name of the provider that produced it.
func (c *Chain) Complete(ctx context.Context, systemPrompt, userPrompt string) (text, provider string, err error) {
	var lastErr error
	for _, p := range c.providers {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		text, err := p.Complete(callCtx, systemPrompt, userPrompt)
		cancel()

		if err == nil {
			if strings.TrimSpace(text) == "" {
				lastErr = fmt.Errorf("provider %s returned empty response", p.Name())
				c.logger.Warn("empty completion, trying next provider", "provider", p.Name())
				continue
			}
			return text, p.Name(), nil
		}

		lastErr = err
		c.logger.Warn("completion failed, trying next provider",
			"provider", p.Name(), "error", err)

		// A canceled parent context means the caller is gone; stop here.
		if ctx.Err() != nil {
			break
		}
	}

	// Caller cancellation is not a provider failure; report it as-is so it
	// never degrades to the Unavailable text.
	if ctx.Err() != nil {
		return "", "", ctx.Err()
	}
	return "", "", fmt.Errorf("%w: all %d providers failed: %w", ErrGeneration, len(c.providers), lastErr)
}
