package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/provider/stub"
	"github.com/parleylabs/recall-go/session"
)

func history(texts ...string) []core.Message {
	msgs := []core.Message{{Role: core.RoleSystem, Content: "be brief"}}
	for i, text := range texts {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		msgs = append(msgs, core.Message{Role: role, Content: text})
	}
	return msgs
}

func TestRunStreaming_ChunksArriveInOrder(t *testing.T) {
	p := stub.New("Hel", "lo ", "there")
	s := session.New(p)

	var got []string
	text, err := s.RunStreaming(context.Background(), history("hi"), core.SamplingParams{}, func(chunk core.StreamChunk) {
		if !chunk.Done {
			got = append(got, chunk.Text)
		}
	})
	if err != nil {
		t.Fatalf("RunStreaming failed: %v", err)
	}
	if text != "Hello there" {
		t.Errorf("accumulated text = %q, want %q", text, "Hello there")
	}
	want := []string{"Hel", "lo ", "there"}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRun_MatchesStreamingAccumulation(t *testing.T) {
	chunks := []string{"one ", "two ", "three"}

	streamed, err := session.New(stub.New(chunks...)).RunStreaming(context.Background(), history("go"), core.SamplingParams{}, func(core.StreamChunk) {})
	if err != nil {
		t.Fatalf("RunStreaming failed: %v", err)
	}
	plain, err := session.New(stub.New(chunks...)).Run(context.Background(), history("go"), core.SamplingParams{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if streamed != plain {
		t.Errorf("streaming and non-streaming disagree: %q vs %q", streamed, plain)
	}
}

func TestRunStreaming_PartialTextKeptOnProviderError(t *testing.T) {
	p := stub.New("partial ", "answer")
	p.Err = &core.ProviderError{Kind: core.RateLimited, Provider: p.Name(), Err: errors.New("429")}
	p.FailAfter = 1

	text, err := session.New(p).Run(context.Background(), history("hi"), core.SamplingParams{})
	if core.ProviderErrKind(err) != core.RateLimited {
		t.Fatalf("expected RateLimited, got %v", err)
	}
	if text != "partial " {
		t.Errorf("partial text = %q, want %q", text, "partial ")
	}
}

func TestRunStreaming_CancellationStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := stub.New("a", "b", "c", "d")

	var afterCancel int
	cancelled := false
	text, err := session.New(p).RunStreaming(ctx, history("hi"), core.SamplingParams{}, func(chunk core.StreamChunk) {
		if cancelled {
			afterCancel++
		}
		if chunk.Text == "a" {
			cancel()
			cancelled = true
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if afterCancel != 0 {
		t.Errorf("%d chunks delivered after cancellation", afterCancel)
	}
	if text != "a" {
		t.Errorf("accumulated text = %q, want %q", text, "a")
	}
}

func TestRunStreaming_EmptyHistoryRejected(t *testing.T) {
	_, err := session.New(stub.New("x")).Run(context.Background(), nil, core.SamplingParams{})
	if !core.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
