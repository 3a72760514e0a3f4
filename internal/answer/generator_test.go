package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/verityops/verity/internal/retrieval"
)

type stubCompleter struct {
	text     string
	provider string
	err      error

	systemPrompts []string
	userPrompts   []string
}

func (s *stubCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, string, error) {
	s.systemPrompts = append(s.systemPrompts, systemPrompt)
	s.userPrompts = append(s.userPrompts, userPrompt)
	if s.err != nil {
		return "", "", s.err
	}
	return s.text, s.provider, nil
}

func sampleCitations() []retrieval.Citation {
	return []retrieval.Citation{
		{DocumentTitle: "Fire Safety SOP", DocType: "sop", Text: "Extinguishers must be inspected monthly.", Score: 0.91},
		{DocumentTitle: "Facility Policy", DocType: "policy", Text: "Defects are reported immediately.", Score: 0.74},
	}
}

func TestGeneratePolicyTable(t *testing.T) {
	tests := []struct {
		name            string
		citations       []retrieval.Citation
		policy          Policy
		includeResponse bool

		wantResponse  bool
		wantBanner    bool
		wantGrounded  bool
		wantRefused   bool
		wantModelUsed string
	}{
		{
			name:          "empty refuse",
			policy:        PolicyRefuse,
			wantModelUsed: ModelNone,
			wantRefused:   true,
		},
		{
			name:            "empty flag with response",
			policy:          PolicyFlag,
			includeResponse: true,
			wantResponse:    true,
			wantBanner:      true,
			wantModelUsed:   "stub",
		},
		{
			name:          "empty flag without response",
			policy:        PolicyFlag,
			wantModelUsed: ModelNone,
		},
		{
			name:            "empty allow with response",
			policy:          PolicyAllow,
			includeResponse: true,
			wantResponse:    true,
			wantModelUsed:   "stub",
		},
		{
			name:            "cited with response",
			citations:       sampleCitations(),
			policy:          PolicyRefuse,
			includeResponse: true,
			wantResponse:    true,
			wantGrounded:    true,
			wantModelUsed:   "stub",
		},
		{
			name:          "cited without response",
			citations:     sampleCitations(),
			policy:        PolicyRefuse,
			wantGrounded:  true,
			wantModelUsed: ModelNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{text: "the answer", provider: "stub"}
			g := NewGenerator(stub, nil)

			got, err := g.Generate(context.Background(), Request{
				Query:           "how often?",
				Citations:       tt.citations,
				Policy:          tt.policy,
				IncludeResponse: tt.includeResponse,
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			if (got.Response != nil) != tt.wantResponse {
				t.Errorf("Response present = %v, want %v", got.Response != nil, tt.wantResponse)
			}
			if tt.wantResponse {
				hasBanner := strings.HasPrefix(*got.Response, UnsupportedWarning)
				if hasBanner != tt.wantBanner {
					t.Errorf("banner present = %v, want %v", hasBanner, tt.wantBanner)
				}
				if !strings.HasSuffix(*got.Response, "the answer") {
					t.Errorf("Response = %q, want it to end with the provider text", *got.Response)
				}
			}
			if got.Grounded != tt.wantGrounded {
				t.Errorf("Grounded = %v, want %v", got.Grounded, tt.wantGrounded)
			}
			if got.Refused != tt.wantRefused {
				t.Errorf("Refused = %v, want %v", got.Refused, tt.wantRefused)
			}
			if tt.wantRefused && got.RefusalReason != RefusalReason {
				t.Errorf("RefusalReason = %q, want %q", got.RefusalReason, RefusalReason)
			}
			if got.ModelUsed != tt.wantModelUsed {
				t.Errorf("ModelUsed = %q, want %q", got.ModelUsed, tt.wantModelUsed)
			}

			wantCalls := 0
			if tt.wantResponse {
				wantCalls = 1
			}
			if len(stub.userPrompts) != wantCalls {
				t.Errorf("completer called %d times, want %d", len(stub.userPrompts), wantCalls)
			}
		})
	}
}

func TestGenerateSystemPromptSelection(t *testing.T) {
	tests := []struct {
		name       string
		citations  []retrieval.Citation
		policy     Policy
		wantPrompt string
	}{
		{"grounded", sampleCitations(), PolicyRefuse, groundedSystemPrompt},
		{"flagged", nil, PolicyFlag, flaggedSystemPrompt},
		{"open", nil, PolicyAllow, openSystemPrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{text: "ok", provider: "stub"}
			g := NewGenerator(stub, nil)

			_, err := g.Generate(context.Background(), Request{
				Query:           "q",
				Citations:       tt.citations,
				Policy:          tt.policy,
				IncludeResponse: true,
			})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if len(stub.systemPrompts) != 1 || stub.systemPrompts[0] != tt.wantPrompt {
				t.Errorf("system prompt = %q, want %q", stub.systemPrompts, tt.wantPrompt)
			}
		})
	}
}

func TestGenerateDegradesOnTotalProviderFailure(t *testing.T) {
	stub := &stubCompleter{err: fmt.Errorf("%w: all providers down", ErrGeneration)}
	g := NewGenerator(stub, nil)

	got, err := g.Generate(context.Background(), Request{
		Query:           "q",
		Citations:       sampleCitations(),
		Policy:          PolicyAllow,
		IncludeResponse: true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v, want degraded result", err)
	}
	if got.Response == nil || *got.Response != Unavailable {
		t.Errorf("Response = %v, want %q", got.Response, Unavailable)
	}
	if !got.Grounded {
		t.Error("Grounded = false, want true: citations survive degradation")
	}
	if got.ModelUsed != ModelNone {
		t.Errorf("ModelUsed = %q, want %q", got.ModelUsed, ModelNone)
	}
}

func TestGenerateWithDisabledCompleter(t *testing.T) {
	g := NewGenerator(Disabled{}, nil)

	got, err := g.Generate(context.Background(), Request{
		Query:           "q",
		Citations:       sampleCitations(),
		Policy:          PolicyRefuse,
		IncludeResponse: true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v, want degraded result", err)
	}
	if got.Response == nil || *got.Response != Unavailable {
		t.Errorf("Response = %v, want %q", got.Response, Unavailable)
	}
	if !got.Grounded || got.ModelUsed != ModelNone {
		t.Errorf("Grounded = %v, ModelUsed = %q; citations must survive without a provider", got.Grounded, got.ModelUsed)
	}
}

func TestGenerateNonGenerationErrorPropagates(t *testing.T) {
	wantErr := errors.New("context deadline exceeded")
	g := NewGenerator(&stubCompleter{err: wantErr}, nil)

	_, err := g.Generate(context.Background(), Request{
		Query:           "q",
		Policy:          PolicyAllow,
		IncludeResponse: true,
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Generate() error = %v, want %v", err, wantErr)
	}
}

func TestGenerateCanceledContextPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain, err := NewChain([]Provider{&fakeProvider{name: "a", err: errors.New("interrupted")}}, time.Second, nil)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	g := NewGenerator(chain, nil)

	_, err = g.Generate(ctx, Request{
		Query:           "q",
		Citations:       sampleCitations(),
		Policy:          PolicyAllow,
		IncludeResponse: true,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestGenerateInvalidPolicy(t *testing.T) {
	g := NewGenerator(&stubCompleter{}, nil)

	_, err := g.Generate(context.Background(), Request{Query: "q", Policy: Policy("maybe")})
	if !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("Generate() error = %v, want ErrInvalidPolicy", err)
	}
}

func TestBuildUserPromptNumbersSources(t *testing.T) {
	prompt := buildUserPrompt("how often?", sampleCitations())

	for _, want := range []string{"[Source 1]", "[Source 2]", "Fire Safety SOP", "inspected monthly", "Question: how often?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildUserPromptNoCitations(t *testing.T) {
	prompt := buildUserPrompt("how often?", nil)

	if strings.Contains(prompt, "[Source") {
		t.Errorf("prompt should not list sources: %q", prompt)
	}
	if prompt != "Question: how often?" {
		t.Errorf("prompt = %q", prompt)
	}
}
