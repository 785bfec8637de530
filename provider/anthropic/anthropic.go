// Package anthropic adapts the Anthropic Messages API to the provider
// streaming contract.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/provider"
)

const name = "anthropic"

// DefaultModel is used when the config does not name one.
const DefaultModel = "claude-sonnet-4-20250514"

// Provider streams completions from the Anthropic Messages API.
type Provider struct {
	client anthropic.Client
	model  string
}

// New builds a Provider from cfg. The API key lives in the client,
// not in any package-level state.
func New(cfg provider.Config) *Provider {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}
}

func (p *Provider) Name() string { return name }

// Stream opens a streaming completion. Chunks are yielded as the API
// emits them; the terminal chunk carries Done.
func (p *Provider) Stream(ctx context.Context, history []core.Message, params core.SamplingParams) (*provider.Stream, error) {
	system, turns, err := core.SplitSystem(history)
	if err != nil {
		return nil, err
	}
	params = params.Clamp()

	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(params.MaxTokens),
		Temperature: anthropic.Float(params.Temperature),
		Messages:    toMessageParams(turns),
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}

	out, w := provider.Pipe()
	go func() {
		sdkStream := p.client.Messages.NewStreaming(ctx, req)
		defer sdkStream.Close()

		for sdkStream.Next() {
			event := sdkStream.Current()
			switch evt := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text == "" {
						continue
					}
					chunk := core.StreamChunk{Role: core.RoleAssistant, Text: delta.Text}
					if err := w.Send(ctx, chunk); err != nil {
						w.Close(err)
						return
					}
				}
			}
		}
		if err := sdkStream.Err(); err != nil {
			w.Close(mapErr(err))
			return
		}
		if err := w.Send(ctx, core.StreamChunk{Role: core.RoleAssistant, Done: true}); err != nil {
			w.Close(err)
			return
		}
		w.Close(nil)
	}()
	return out, nil
}

func toMessageParams(turns []core.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == core.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func mapErr(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return provider.ErrFromStatus(name, apierr.StatusCode, err)
	}
	return provider.ClassifyErr(name, err)
}
