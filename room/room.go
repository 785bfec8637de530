// Package room coordinates one conversation: it sequences the turn
// cycle (receive input, persist, broadcast, stream model output,
// persist, broadcast), owns the conversation's lifecycle, and on
// closure feeds the conversation into the similarity index.
package room

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/parleylabs/recall-go/analyze"
	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/embed"
	"github.com/parleylabs/recall-go/index"
	"github.com/parleylabs/recall-go/provider"
	"github.com/parleylabs/recall-go/session"
	"github.com/parleylabs/recall-go/store"
)

// State is the coordinator's position in the turn cycle. Exposed for
// observability; transitions are internal.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingUserInput  State = "awaiting_user_input"
	StatePersisting         State = "persisting"
	StateBroadcasting       State = "broadcasting"
	StateAwaitingModelOut   State = "awaiting_model_output"
	StateEnded              State = "ended"
)

// Config carries the room's collaborators and policy knobs.
type Config struct {
	Provider provider.Provider
	Store    store.Store
	Embedder embed.Embedder
	Index    index.Searcher

	// SystemPrompt, when set, leads every history sent to the model.
	SystemPrompt string

	// Sampling defaults to core.DefaultSamplingParams when zero.
	Sampling core.SamplingParams

	// TurnTimeout bounds one model exchange. Zero means no timeout.
	TurnTimeout time.Duration

	// HistoryBudget is the approximate token budget for history sent
	// to the provider; zero means 4000.
	HistoryBudget int

	// Summarize disables LLM summary generation on close when nil is
	// wanted; by default a summarizer over Provider is used.
	Summarizer *analyze.Summarizer
}

// Room is the per-conversation coordinator. All turn activity is
// serialized by the turn mutex: at most one turn is in flight, and a
// concurrent submission is rejected rather than queued.
type Room struct {
	conv core.Conversation
	cfg  Config

	session    *session.Session
	summarizer *analyze.Summarizer

	// turnMu guards the whole turn cycle and the close action.
	turnMu sync.Mutex

	stateMu sync.RWMutex
	state   State

	subMu sync.RWMutex
	subs  map[*Subscriber]struct{}
}

// retryBackoff is the pause before the single retry the coordinator
// grants transient provider failures.
const retryBackoff = 500 * time.Millisecond

// New wires a room around an already-persisted conversation record.
func New(conv core.Conversation, cfg Config) *Room {
	if cfg.Sampling == (core.SamplingParams{}) {
		cfg.Sampling = core.DefaultSamplingParams()
	}
	if cfg.HistoryBudget <= 0 {
		cfg.HistoryBudget = 4000
	}
	summarizer := cfg.Summarizer
	if summarizer == nil && cfg.Provider != nil {
		summarizer = analyze.NewSummarizer(cfg.Provider)
	}
	state := StateIdle
	if conv.Ended() {
		state = StateEnded
	}
	return &Room{
		conv:       conv,
		cfg:        cfg,
		session:    session.New(cfg.Provider),
		summarizer: summarizer,
		state:      state,
		subs:       make(map[*Subscriber]struct{}),
	}
}

// ID returns the conversation id this room coordinates.
func (r *Room) ID() string { return r.conv.ID }

// State returns the coordinator's current state.
func (r *Room) State() State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.state
}

func (r *Room) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
}

// Subscribe attaches a new subscriber to the room's event feed.
func (r *Room) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Event, subscriberBuffer)}
	r.subMu.Lock()
	r.subs[sub] = struct{}{}
	r.subMu.Unlock()
	return sub
}

// Unsubscribe detaches sub and closes its channel.
func (r *Room) Unsubscribe(sub *Subscriber) {
	r.subMu.Lock()
	if _, ok := r.subs[sub]; ok {
		delete(r.subs, sub)
		close(sub.ch)
	}
	r.subMu.Unlock()
}

// detachSubscribers closes every subscriber channel. An ended room
// emits nothing more, so attached clients see the feed end instead of
// holding a channel that never closes.
func (r *Room) detachSubscribers() {
	r.subMu.Lock()
	for sub := range r.subs {
		delete(r.subs, sub)
		close(sub.ch)
	}
	r.subMu.Unlock()
}

// broadcast relays an event to every subscriber, fire-and-forget: a
// full buffer drops the event for that subscriber instead of stalling
// the turn.
func (r *Room) broadcast(ev Event) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for sub := range r.subs {
		select {
		case sub.ch <- ev:
		default:
			log.Printf("[ROOM %s] subscriber lagging, dropping %s event", r.conv.ID, ev.Type)
		}
	}
}

// Typing relays a user typing indicator to the room's subscribers.
// Purely cosmetic; no state transition and no persistence.
func (r *Room) Typing(isTyping bool) {
	r.broadcast(Event{Type: EventUserTyping, IsTyping: isTyping})
}

// SubmitMessage runs one full turn: validate, persist and broadcast
// the user message, stream the model's reply to subscribers, persist
// the final text. It returns the assistant's full reply.
//
// Cancellation (or turn timeout) while the model is streaming leaves
// the message log exactly as it was before the model was invoked: the
// partial reply is relayed but never persisted.
func (r *Room) SubmitMessage(ctx context.Context, text string) (string, error) {
	if !core.ValidUserText(text) {
		return "", &core.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if !r.turnMu.TryLock() {
		return "", core.ErrTurnInFlight
	}
	defer r.turnMu.Unlock()

	if r.State() == StateEnded {
		return "", &core.ConversationClosedError{ConversationID: r.conv.ID}
	}
	defer r.setState(StateIdle)

	// Persist the user message before anyone sees it: whatever a
	// subscriber observes is already recoverable from storage.
	r.setState(StatePersisting)
	userMsg := core.Message{Role: core.RoleUser, Content: text}
	if err := r.cfg.Store.AppendMessage(ctx, r.conv.ID, &userMsg); err != nil {
		return "", err
	}

	r.setState(StateBroadcasting)
	r.broadcast(Event{
		Type:      EventMessage,
		Sender:    string(core.RoleUser),
		Text:      text,
		Timestamp: userMsg.CreatedAt,
	})

	r.setState(StateAwaitingModelOut)
	r.broadcast(Event{Type: EventTyping, IsTyping: true})
	defer r.broadcast(Event{Type: EventTyping, IsTyping: false})

	reply, err := r.generate(ctx)
	if err != nil {
		if isCancellation(err) {
			// Unwind with zero new records for this turn's reply.
			return "", err
		}
		// Provider failure: a single turnComplete with the partial
		// text and the failure flag, never a silent hang. The partial
		// reply is not persisted.
		log.Printf("[ROOM %s] turn failed: %v", r.conv.ID, err)
		r.broadcast(Event{
			Type:      EventTurnComplete,
			Sender:    string(core.RoleAssistant),
			Text:      reply,
			Failed:    true,
			Timestamp: time.Now().UTC(),
		})
		return reply, err
	}

	r.setState(StatePersisting)
	aiMsg := core.Message{Role: core.RoleAssistant, Content: reply}
	if err := r.cfg.Store.AppendMessage(ctx, r.conv.ID, &aiMsg); err != nil {
		return reply, err
	}

	r.setState(StateBroadcasting)
	r.broadcast(Event{
		Type:      EventTurnComplete,
		Sender:    string(core.RoleAssistant),
		Text:      reply,
		Timestamp: aiMsg.CreatedAt,
	})
	return reply, nil
}

// generate streams one model reply, relaying chunks as they arrive.
// Transient failures get one retry with backoff; the retry policy
// lives here, not in the session or adapter.
func (r *Room) generate(ctx context.Context) (string, error) {
	history, err := r.history(ctx)
	if err != nil {
		return "", err
	}

	text, err := r.streamOnce(ctx, history)
	if err == nil || isCancellation(err) {
		return text, err
	}

	switch core.ProviderErrKind(err) {
	case core.RateLimited, core.TransportError:
		log.Printf("[ROOM %s] retrying after %v: %v", r.conv.ID, retryBackoff, err)
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return text, ctx.Err()
		}
		// Text from the failed attempt is discarded. The reset event
		// tells chunk-accumulating clients to do the same before the
		// retry streams a fresh reply.
		r.broadcast(Event{Type: EventResponseReset, Sender: string(core.RoleAssistant)})
		return r.streamOnce(ctx, history)
	default:
		return text, err
	}
}

func (r *Room) streamOnce(ctx context.Context, history []core.Message) (string, error) {
	runCtx := ctx
	if r.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.TurnTimeout)
		defer cancel()
	}
	return r.session.RunStreaming(runCtx, history, r.cfg.Sampling, func(chunk core.StreamChunk) {
		if chunk.Text == "" {
			return
		}
		r.broadcast(Event{Type: EventChunk, Sender: string(core.RoleAssistant), Text: chunk.Text})
	})
}

// history assembles the ordered message history for the provider:
// optional system prompt plus the stored messages, oldest dropped to
// fit the token budget.
func (r *Room) history(ctx context.Context) ([]core.Message, error) {
	msgs, err := r.cfg.Store.ListMessages(ctx, r.conv.ID)
	if err != nil {
		return nil, err
	}
	msgs = analyze.TruncateHistory(msgs, r.cfg.HistoryBudget)
	if r.cfg.SystemPrompt == "" {
		return msgs, nil
	}
	history := make([]core.Message, 0, len(msgs)+1)
	history = append(history, core.Message{Role: core.RoleSystem, Content: r.cfg.SystemPrompt})
	return append(history, msgs...), nil
}

// Close ends the conversation: status flips to ended (one-way), a
// summary is generated, and the conversation is embedded and upserted
// into the similarity index. Summary, embedding, and index failures
// are degraded-but-recoverable: they are logged but never roll back
// the status transition.
func (r *Room) Close(ctx context.Context) (*core.Conversation, error) {
	if !r.turnMu.TryLock() {
		return nil, core.ErrTurnInFlight
	}
	defer r.turnMu.Unlock()

	if r.State() == StateEnded {
		return nil, &core.ConversationClosedError{ConversationID: r.conv.ID}
	}

	now := time.Now().UTC()
	r.conv.Status = core.StatusEnded
	r.conv.EndedAt = &now
	if err := r.cfg.Store.UpdateConversation(ctx, &r.conv); err != nil {
		r.conv.Status = core.StatusActive
		r.conv.EndedAt = nil
		return nil, err
	}
	r.setState(StateEnded)
	// The transition is final at this point; every exit path below
	// ends the subscriber feeds.
	defer r.detachSubscribers()

	msgs, err := r.cfg.Store.ListMessages(ctx, r.conv.ID)
	if err != nil {
		log.Printf("[ROOM %s] close: listing messages failed, skipping summary and embedding: %v", r.conv.ID, err)
		return &r.conv, nil
	}

	if r.summarizer != nil && len(msgs) > 0 {
		summary, err := r.summarizer.Summarize(ctx, msgs)
		if err != nil {
			log.Printf("[ROOM %s] close: summary generation failed: %v", r.conv.ID, err)
		} else {
			r.conv.Summary = summary
			if err := r.cfg.Store.UpdateConversation(ctx, &r.conv); err != nil {
				log.Printf("[ROOM %s] close: saving summary failed: %v", r.conv.ID, err)
			}
		}
	}

	if err := r.indexConversation(ctx, msgs); err != nil {
		log.Printf("[ROOM %s] close: embedding/index failed, search entry missing: %v", r.conv.ID, err)
	}
	return &r.conv, nil
}

// indexConversation derives the conversation's embedding record and
// upserts it. One record per conversation, keyed by its id.
func (r *Room) indexConversation(ctx context.Context, msgs []core.Message) error {
	if r.cfg.Embedder == nil || r.cfg.Index == nil {
		return nil
	}
	text := analyze.ConversationText(&r.conv, msgs)
	vec, err := r.cfg.Embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	metadata := map[string]any{
		"title":         r.conv.Title,
		"message_count": len(msgs),
		"keywords":      analyze.Keywords(text, 10),
	}
	return r.cfg.Index.Upsert(r.conv.ID, vec, metadata, index.Attrs{
		CreatedAt: r.conv.CreatedAt,
		Status:    string(core.StatusEnded),
	})
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
