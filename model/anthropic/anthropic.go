// Package anthropic implements text generation over the Anthropic Messages
// API. Anthropic exposes no embeddings endpoint, so this adapter satisfies
// model.Generator only; pair it with another Embedder via model.Compose.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/model"
)

// Options configures the Anthropic adapter (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Generator wraps the Anthropic Messages API behind model.Generator.
type Generator struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Generator = (*Generator)(nil)

// NewGenerator creates a Generator using the official client.
func NewGenerator(optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Generator{client: &client, opts: opts}
}

// NewGeneratorFromClient creates a Generator from an existing client.
func NewGeneratorFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Generator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Generate implements model.Generator via a non-streaming message call.
func (g *Generator) Generate(ctx context.Context, req model.Request) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)))

	params := anthropic.MessageNewParams{
		Model:       g.opts.Model,
		Messages:    messages,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic api error: %v", core.ErrGenerationUnavailable, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty completion", core.ErrGenerationUnavailable)
	}
	return sb.String(), nil
}

// Info returns metadata describing this Anthropic adapter.
func (g *Generator) Info() model.Info {
	return model.Info{Name: string(g.opts.Model), Provider: "anthropic"}
}
