// Package search answers "find me that conversation about X": it
// embeds a query string and matches it against the conversation
// index, joining results back to their stored records.
package search

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/embed"
	"github.com/parleylabs/recall-go/index"
	"github.com/parleylabs/recall-go/store"
)

// Defaults applied when an option is zero.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.3
)

// Options narrows a search. MinSimilarity is a pointer so an explicit
// floor of 0 is distinguishable from "use the default".
type Options struct {
	TopK          int
	MinSimilarity *float64
	From          *time.Time
	To            *time.Time
}

// Result is one scored conversation.
type Result struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary,omitempty"`
	Score          float64   `json:"score"`
	CreatedAt      time.Time `json:"created_at"`
	MessageCount   int       `json:"message_count"`
}

// Service runs semantic queries over ended conversations.
type Service struct {
	embedder embed.Embedder
	idx      index.Searcher
	store    store.Store
}

// New wires a search service.
func New(embedder embed.Embedder, idx index.Searcher, st store.Store) *Service {
	return &Service{embedder: embedder, idx: idx, store: st}
}

// Search embeds the query and returns the top matches in descending
// score order. Only ended conversations are candidates; the optional
// date range filters on conversation creation time.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if !core.ValidUserText(query) {
		return nil, &core.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if opts.TopK == 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopK < 1 {
		return nil, &core.ValidationError{Field: "top_k", Reason: "must be >= 1"}
	}
	minSimilarity := DefaultMinSimilarity
	if opts.MinSimilarity != nil {
		minSimilarity = *opts.MinSimilarity
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.idx.Query(qvec, opts.TopK, index.Filter{
		From:   opts.From,
		To:     opts.To,
		Status: string(core.StatusEnded),
	}, minSimilarity)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		conv, err := s.store.GetConversation(ctx, m.ID)
		if errors.Is(err, core.ErrNotFound) {
			// Index entry outlived its conversation; skip rather than
			// fail the whole query.
			log.Printf("[SEARCH] dropping stale index entry %s", m.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		res := Result{
			ConversationID: conv.ID,
			Title:          conv.Title,
			Summary:        conv.Summary,
			Score:          m.Score,
			CreatedAt:      conv.CreatedAt,
		}
		if n, ok := m.Metadata["message_count"].(int); ok {
			res.MessageCount = n
		} else if n, ok := m.Metadata["message_count"].(float64); ok {
			res.MessageCount = int(n)
		}
		results = append(results, res)
	}
	return results, nil
}
