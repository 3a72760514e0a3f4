package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/verityops/verity/internal/embed"
)

// MockEmbedder provides deterministic embedding vectors for testing.
//
// By default it generates a deterministic unit vector from the content via
// SHA-256, identical to the hash embedder. Explicit mappings can be added
// for precise cosine similarity control, and an error can be injected to
// exercise provider-failure paths.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	err      error
	calls    [][]string
	fallback *embed.HashEmbedder
}

// NewMockEmbedder creates a mock embedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		vectors:  make(map[string][]float32),
		fallback: embed.NewHashEmbedder(),
	}
}

// SetVector registers an explicit vector for a given content string.
// Use this to control exact cosine similarity between test inputs.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// SetError makes every subsequent Embed call fail with err.
func (e *MockEmbedder) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns a copy of the text batches passed to Embed.
func (e *MockEmbedder) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([][]string, len(e.calls))
	copy(cp, e.calls)
	return cp
}

// Embed implements embed.Embedder.
func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	err := e.err
	explicit := make([][]float32, len(texts))
	missing := false
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			explicit[i] = v
		} else {
			missing = true
		}
	}
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if !missing {
		return explicit, nil
	}

	hashed, hashErr := e.fallback.Embed(ctx, texts)
	if hashErr != nil {
		return nil, hashErr
	}
	for i := range explicit {
		if explicit[i] == nil {
			explicit[i] = hashed[i]
		}
	}
	return explicit, nil
}

// MockLLM provides deterministic LLM responses for testing. It matches the
// user prompt against registered substring patterns and returns the
// corresponding response; the fallback is returned when nothing matches.
// It implements answer.Provider.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	name      string
	responses []mockRule
	fallback  string
	err       error
	calls     []MockCall
}

type mockRule struct {
	pattern  string // substring match in the user prompt, case-insensitive
	response string
}

// MockCall records a single call to the mock model.
type MockCall struct {
	SystemPrompt string
	UserPrompt   string
	Response     string
}

// NewMockLLM creates a mock LLM with the given fallback response.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{name: "mock/test-model", fallback: fallback}
}

// AddResponse registers a pattern-response pair. Patterns are checked in
// registration order; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// SetError makes every subsequent Complete call fail with err.
func (m *MockLLM) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears all recorded calls (keeps registered responses).
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Name implements answer.Provider.
func (m *MockLLM) Name() string { return m.name }

// Complete implements answer.Provider.
func (m *MockLLM) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}

	response := m.fallback
	lower := strings.ToLower(userPrompt)
	for _, r := range m.responses {
		if strings.Contains(lower, r.pattern) {
			response = r.response
			break
		}
	}

	m.calls = append(m.calls, MockCall{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Response:     response,
	})
	return response, nil
}
