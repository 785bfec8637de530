// Package stub is a deterministic in-process provider for tests. It
// replays a scripted sequence of chunks, optionally failing partway
// through with a typed error.
package stub

import (
	"context"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/provider"
)

const name = "stub"

// Provider replays Chunks in order, then either fails with Err or
// emits the terminal chunk. Calls records every history the provider
// was opened with, so tests can assert on what was sent.
type Provider struct {
	Chunks []string
	Err    error

	// FailAfter, when Err is set, is how many chunks are yielded
	// before the failure. Defaults to all of them.
	FailAfter int

	Calls [][]core.Message
}

// New returns a stub that streams the given chunks and completes
// cleanly.
func New(chunks ...string) *Provider {
	return &Provider{Chunks: chunks, FailAfter: len(chunks)}
}

func (p *Provider) Name() string { return name }

func (p *Provider) Stream(ctx context.Context, history []core.Message, params core.SamplingParams) (*provider.Stream, error) {
	if _, _, err := core.SplitSystem(history); err != nil {
		return nil, err
	}
	snapshot := make([]core.Message, len(history))
	copy(snapshot, history)
	p.Calls = append(p.Calls, snapshot)

	out, w := provider.Pipe()
	go func() {
		for i, text := range p.Chunks {
			if p.Err != nil && i >= p.FailAfter {
				break
			}
			chunk := core.StreamChunk{Role: core.RoleAssistant, Text: text}
			if err := w.Send(ctx, chunk); err != nil {
				w.Close(err)
				return
			}
		}
		if p.Err != nil {
			w.Close(p.Err)
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
