package model

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/oscesim/oscesim/core"
)

// Message is one prior exchange in a conversation, normalized across vendors.
// Role is "user" or "assistant".
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request captures a single generation call: standing instructions (system
// prompt), the windowed conversation history, and the current input.
type Request struct {
	Instructions string    `json:"instructions"`
	History      []Message `json:"history,omitempty"`
	Input        string    `json:"input"`
}

// Info contains metadata about a gateway implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Generator is the minimal interface agents use to produce text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Info() Info
}

// Embedder produces a vector representation of text for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Gateway combines generation and embedding. Deployments mixing vendors (e.g.
// Anthropic generation with OpenAI embeddings) compose one with Compose.
type Gateway interface {
	Generator
	Embedder
}

// composed pairs an independent Generator and Embedder into a Gateway.
type composed struct {
	Generator
	Embedder
}

// Compose builds a Gateway from separate generation and embedding providers.
func Compose(g Generator, e Embedder) Gateway {
	return composed{Generator: g, Embedder: e}
}

// MockGateway is a deterministic in-memory Gateway for tests and examples.
// Responses are canned per input; unseen inputs get a stable echo reply.
// Embeddings are derived from token hashes so identical text always maps to
// the identical vector.
type MockGateway struct {
	info      Info
	responses map[string]string
	failing   bool
}

// NewMockGateway constructs an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		info:      Info{Name: "mock", Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for an exact input.
func (m *MockGateway) AddResponse(input, response string) { m.responses[input] = response }

// Fail makes every subsequent call return core.ErrGenerationUnavailable,
// simulating a provider outage.
func (m *MockGateway) Fail(fail bool) { m.failing = fail }

// Generate implements Generator.
func (m *MockGateway) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrGenerationUnavailable, err)
	}
	if m.failing {
		return "", fmt.Errorf("%w: mock provider down", core.ErrGenerationUnavailable)
	}
	if resp, ok := m.responses[req.Input]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock reply to: %s", req.Input), nil
}

// Embed implements Embedder with a stable 64-dimension hashed bag-of-words
// vector, L2-normalized.
func (m *MockGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrGenerationUnavailable, err)
	}
	if m.failing {
		return nil, fmt.Errorf("%w: mock provider down", core.ErrGenerationUnavailable)
	}
	const dim = 64
	vec := make([]float32, dim)
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		h.Write([]byte(string(word)))
		vec[h.Sum32()%dim]++
		word = word[:0]
	}
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			flush()
			continue
		}
		word = append(word, r)
	}
	flush()
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Info implements Generator.
func (m *MockGateway) Info() Info { return m.info }
