// Package gemini adapts the Google Gemini API to the provider
// streaming contract.
package gemini

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/provider"
)

const name = "gemini"

// DefaultModel is used when the config does not name one.
const DefaultModel = "gemini-1.5-pro"

// Provider streams completions from the Gemini API.
type Provider struct {
	apiKey string
	model  string
}

// New builds a Provider from cfg.
func New(cfg provider.Config) *Provider {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{apiKey: cfg.APIKey, model: model}
}

func (p *Provider) Name() string { return name }

// Stream opens a streaming generation. The history's last turn is sent
// as the prompt; earlier turns become chat history.
func (p *Provider) Stream(ctx context.Context, history []core.Message, params core.SamplingParams) (*provider.Stream, error) {
	system, turns, err := core.SplitSystem(history)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, &core.ValidationError{Field: "history", Reason: "no conversational turns"}
	}
	params = params.Clamp()

	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, mapErr(err)
	}

	model := client.GenerativeModel(p.model)
	model.SetTemperature(float32(params.Temperature))
	model.SetMaxOutputTokens(int32(params.MaxTokens))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	chat := model.StartChat()
	chat.History = toContents(turns[:len(turns)-1])
	last := turns[len(turns)-1]

	out, w := provider.Pipe()
	go func() {
		defer client.Close()

		iter := chat.SendMessageStream(ctx, genai.Text(last.Content))
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				if err := w.Send(ctx, core.StreamChunk{Role: core.RoleAssistant, Done: true}); err != nil {
					w.Close(err)
					return
				}
				w.Close(nil)
				return
			}
			if err != nil {
				w.Close(mapErr(err))
				return
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					text, ok := part.(genai.Text)
					if !ok || text == "" {
						continue
					}
					chunk := core.StreamChunk{Role: core.RoleAssistant, Text: string(text)}
					if err := w.Send(ctx, chunk); err != nil {
						w.Close(err)
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func toContents(turns []core.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := "user"
		if m.Role == core.RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return out
}

func mapErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return provider.ErrFromStatus(name, gerr.Code, err)
	}
	return provider.ClassifyErr(name, err)
}
