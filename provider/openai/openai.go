// Package openai adapts OpenAI-compatible chat completion APIs to
// the provider streaming contract. With a BaseURL override it also
// serves local OpenAI-compatible endpoints such as LM Studio.
package openai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/provider"
)

// DefaultModel is used when the config does not name one.
const DefaultModel = openai.GPT4

// Provider streams completions from an OpenAI-compatible API.
type Provider struct {
	client *openai.Client
	model  string
	name   string
}

// New builds a Provider for api.openai.com.
func New(cfg provider.Config) *Provider {
	return build(cfg, "openai")
}

// NewLocal builds a Provider for a local OpenAI-compatible endpoint.
// Local servers ignore the API key but the client requires one.
func NewLocal(cfg provider.Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234/v1"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "local"
	}
	if cfg.Model == "" {
		cfg.Model = "local-model"
	}
	return build(cfg, "local")
}

func build(cfg provider.Config, name string) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		name:   name,
	}
}

func (p *Provider) Name() string { return p.name }

// Stream opens a streaming chat completion.
func (p *Provider) Stream(ctx context.Context, history []core.Message, params core.SamplingParams) (*provider.Stream, error) {
	system, turns, err := core.SplitSystem(history)
	if err != nil {
		return nil, err
	}
	params = params.Clamp()

	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range turns {
		role := openai.ChatMessageRoleUser
		if m.Role == core.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: float32(params.Temperature),
		MaxTokens:   params.MaxTokens,
		Stream:      true,
	}

	sdkStream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, p.mapErr(err)
	}

	out, w := provider.Pipe()
	go func() {
		defer sdkStream.Close()
		for {
			resp, err := sdkStream.Recv()
			if errors.Is(err, io.EOF) {
				if err := w.Send(ctx, core.StreamChunk{Role: core.RoleAssistant, Done: true}); err != nil {
					w.Close(err)
					return
				}
				w.Close(nil)
				return
			}
			if err != nil {
				w.Close(p.mapErr(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			chunk := core.StreamChunk{Role: core.RoleAssistant, Text: delta}
			if err := w.Send(ctx, chunk); err != nil {
				w.Close(err)
				return
			}
		}
	}()
	return out, nil
}

func (p *Provider) mapErr(err error) error {
	var apierr *openai.APIError
	if errors.As(err, &apierr) {
		return provider.ErrFromStatus(p.name, apierr.HTTPStatusCode, err)
	}
	var reqerr *openai.RequestError
	if errors.As(err, &reqerr) {
		return provider.ErrFromStatus(p.name, reqerr.HTTPStatusCode, err)
	}
	return provider.ClassifyErr(p.name, err)
}
