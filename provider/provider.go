// Package provider normalizes heterogeneous token-generation APIs
// into one incremental-output contract: an ordered, lazy sequence of
// chunks terminated by a done marker or a typed failure.
package provider

import (
	"context"
	"fmt"

	"github.com/parleylabs/recall-go/core"
)

// Provider opens token streams against one backing model API.
// Implementations must not buffer the full response and must not
// touch persistence; their only side effect is the outbound call.
type Provider interface {
	// Name identifies the backend for error reporting.
	Name() string

	// Stream starts a completion for the given ordered history and
	// returns a lazy chunk sequence. History must be non-empty; at
	// most one leading system entry is honored. Params are clamped,
	// never rejected.
	Stream(ctx context.Context, history []core.Message, params core.SamplingParams) (*Stream, error)
}

// Kind selects a provider variant.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
	KindGemini    Kind = "gemini"
	KindLocal     Kind = "local" // OpenAI-compatible local endpoint (LM Studio etc.)
)

// Config carries everything a provider needs at construction. There
// is no process-wide client state; credentials live here and nowhere
// else.
type Config struct {
	Kind    Kind
	APIKey  string
	Model   string
	BaseURL string // Local/OpenAI-compatible endpoints only.
}

// Stream is a pull-based chunk sequence, consumed with the
// Next/Current/Err pattern:
//
//	for stream.Next() {
//	    chunk := stream.Current()
//	    ...
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Err returns nil after a clean terminal chunk and a *core.ProviderError
// after a failure. Chunks yielded before a failure stand.
type Stream struct {
	ch  chan core.StreamChunk
	cur core.StreamChunk
	err error
}

// Next blocks until the next chunk is available. It returns false
// once the sequence is exhausted, cleanly or not.
func (s *Stream) Next() bool {
	c, ok := <-s.ch
	if !ok {
		return false
	}
	s.cur = c
	return true
}

// Current returns the chunk most recently yielded by Next.
func (s *Stream) Current() core.StreamChunk { return s.cur }

// Err returns the terminal error, if any. Only valid after Next has
// returned false.
func (s *Stream) Err() error { return s.err }

// StreamWriter is the producer half of a stream. Provider
// implementations feed chunks through it from a goroutine.
type StreamWriter struct {
	s *Stream
}

// Pipe creates a connected Stream / StreamWriter pair.
func Pipe() (*Stream, *StreamWriter) {
	s := &Stream{ch: make(chan core.StreamChunk)}
	return s, &StreamWriter{s: s}
}

// Send yields one chunk to the consumer. It returns ctx.Err() if the
// consumer is gone, so producers unwind promptly on cancellation.
func (w *StreamWriter) Send(ctx context.Context, chunk core.StreamChunk) error {
	select {
	case w.s.ch <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the sequence. A nil err means the provider emitted
// its terminal chunk; a non-nil err must already be a typed provider
// error. Close must be called exactly once.
func (w *StreamWriter) Close(err error) {
	w.s.err = err
	close(w.s.ch)
}

// ParseKind converts a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAnthropic, KindOpenAI, KindGemini, KindLocal:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
}
