package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/verityops/verity/internal/retrieval"
)

// ModelNone is recorded as the model name when no generation happened or
// every provider failed.
const ModelNone = "none"

// Completer is the generation backend. *Chain satisfies it; tests plug in
// stubs directly.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (text, provider string, err error)
}

// Request carries everything the policy decision needs.
type Request struct {
	Query           string
	Citations       []retrieval.Citation
	Policy          Policy
	IncludeResponse bool
}

// Result is the policy outcome plus generated text, if any.
type Result struct {
	// Response is nil when the policy decided not to generate (refusal, or
	// include_response=false).
	Response *string

	// Grounded is true exactly when at least one citation supported the query.
	Grounded bool

	// Refused is true only for PolicyRefuse with zero citations.
	Refused       bool
	RefusalReason string

	// ModelUsed names the provider that produced the response, or ModelNone.
	ModelUsed string
}

// Generator applies the grounding policy and, when the outcome calls for
// text, runs the provider chain. It never touches the evidence log.
type Generator struct {
	completer Completer
	logger    *slog.Logger
}

// NewGenerator creates a Generator. The completer may be nil only if every
// request has IncludeResponse=false, so in practice pass one.
func NewGenerator(completer Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, logger: logger}
}

// Generate resolves req against the policy table and produces the response.
//
// With citations the answer is grounded regardless of policy; without them
// the policy decides between refusing, flagging, and answering openly.
// Total provider failure degrades the response text to Unavailable instead
// of returning an error, so citations and evidence data still flow back.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	if !req.Policy.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, req.Policy)
	}

	grounded := len(req.Citations) > 0

	if !grounded && req.Policy == PolicyRefuse {
		return Result{
			Refused:       true,
			RefusalReason: RefusalReason,
			ModelUsed:     ModelNone,
		}, nil
	}

	if !req.IncludeResponse {
		return Result{Grounded: grounded, ModelUsed: ModelNone}, nil
	}

	systemPrompt := openSystemPrompt
	banner := ""
	switch {
	case grounded:
		systemPrompt = groundedSystemPrompt
	case req.Policy == PolicyFlag:
		systemPrompt = flaggedSystemPrompt
		banner = UnsupportedWarning
	}

	text, provider, err := g.completer.Complete(ctx, systemPrompt, buildUserPrompt(req.Query, req.Citations))
	if err != nil {
		if !errors.Is(err, ErrGeneration) {
			return Result{}, err
		}
		g.logger.Error("all providers failed, degrading response", "error", err)
		degraded := Unavailable
		return Result{Response: &degraded, Grounded: grounded, ModelUsed: ModelNone}, nil
	}

	response := banner + text
	return Result{Response: &response, Grounded: grounded, ModelUsed: provider}, nil
}
