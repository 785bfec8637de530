// Package session drives one token stream end to end: it owns a
// single in-flight exchange, accumulates chunk text in arrival order,
// and translates cancellation and provider failures for the caller.
package session

import (
	"context"
	"strings"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/provider"
)

// ChunkFunc receives chunks during a streaming run. It is invoked
// synchronously, in arrival order, never concurrently for the same
// session, and never after cancellation has been observed.
type ChunkFunc func(chunk core.StreamChunk)

// Session owns one logical exchange against a provider. It performs
// no persistence of its own; whatever a caller does with partial text
// is the caller's policy.
type Session struct {
	provider provider.Provider
}

// New creates a session bound to a provider.
func New(p provider.Provider) *Session {
	return &Session{provider: p}
}

// Run consumes the whole stream and returns the accumulated text.
// On provider failure the text gathered so far is returned alongside
// the typed error; it is not retracted.
func (s *Session) Run(ctx context.Context, history []core.Message, params core.SamplingParams) (string, error) {
	return s.RunStreaming(ctx, history, params, nil)
}

// RunStreaming is Run with live relay: onChunk fires per chunk as it
// arrives. Both entry points share this one consumption loop, so a
// streaming and a non-streaming call over the same input yield the
// same accumulated text.
//
// Cancellation via ctx stops the stream before further chunks are
// delivered; the provider goroutine unwinds through its writer. The
// caller receives whatever text was accumulated plus ctx.Err().
func (s *Session) RunStreaming(ctx context.Context, history []core.Message, params core.SamplingParams, onChunk ChunkFunc) (string, error) {
	stream, err := s.provider.Stream(ctx, history, params)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for stream.Next() {
		if ctx.Err() != nil {
			// Drain stops here; the writer sees the dead context on
			// its next Send and unwinds.
			return b.String(), ctx.Err()
		}
		chunk := stream.Current()
		b.WriteString(chunk.Text)
		if onChunk != nil {
			onChunk(chunk)
		}
		if chunk.Done {
			// Terminal chunk seen; the writer closes right after it.
			return b.String(), nil
		}
	}
	// Channel closed without a terminal chunk: typed failure, or a
	// producer that observed our cancelled context.
	if err := stream.Err(); err != nil {
		return b.String(), err
	}
	if ctx.Err() != nil {
		return b.String(), ctx.Err()
	}
	return b.String(), nil
}
