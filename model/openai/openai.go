// Package openai implements the model gateway using the OpenAI Chat
// Completions and Embeddings APIs. It adapts the normalized Request shape
// into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/oscesim/oscesim/core"
	"github.com/oscesim/oscesim/model"
)

// Options configure the OpenAI gateway. Fields mirror a minimal subset of
// the Chat Completion and Embedding parameters; extend via functional options
// without breaking callers.
type Options struct {
	Model               string
	EmbeddingModel      string
	EmbeddingDimensions int64
	Temperature         float64
	MaxCompletionTokens int64
}

// Gateway wraps the OpenAI API behind the generic model interfaces.
type Gateway struct {
	client *openai.Client
	opts   Options
}

var _ model.Gateway = (*Gateway)(nil)

// NewGateway creates a Gateway using the default client (API key from env).
func NewGateway(optFns ...func(o *Options)) *Gateway {
	client := openai.NewClient()
	return NewGatewayFromClient(&client, optFns...)
}

// NewGatewayFromClient creates a Gateway from an existing client.
func NewGatewayFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		EmbeddingModel:      string(openai.EmbeddingModelTextEmbedding3Small),
		EmbeddingDimensions: 512,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// Generate implements model.Generator via a non-streaming chat completion.
func (g *Gateway) Generate(ctx context.Context, req model.Request) (string, error) {
	messages := buildMessages(req)
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai api error: %v", core.ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", core.ErrGenerationUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages converts the normalized request into OpenAI chat messages:
// instructions as system, history in order, then the current input as user.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}
	for _, m := range req.History {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Text))
		default:
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}
	messages = append(messages, openai.UserMessage(req.Input))
	return messages
}

// Embed implements model.Embedder using the configured embedding model.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      g.opts.EmbeddingModel,
		Dimensions: openai.Int(g.opts.EmbeddingDimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings error: %v", core.ErrGenerationUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", core.ErrGenerationUnavailable)
	}
	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Info returns metadata describing this OpenAI gateway.
func (g *Gateway) Info() model.Info {
	return model.Info{Name: g.opts.Model, Provider: "openai"}
}
