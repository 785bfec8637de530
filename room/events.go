package room

import "time"

// EventType enumerates the event kinds a room emits to subscribers.
type EventType string

const (
	// EventMessage is a persisted message relayed to the room.
	EventMessage EventType = "chat_message"

	// EventChunk is one incremental unit of model output.
	EventChunk EventType = "ai_response_chunk"

	// EventTurnComplete closes a turn: the full accumulated text plus
	// a failure flag when the provider errored mid-turn.
	EventTurnComplete EventType = "ai_response_complete"

	// EventResponseReset tells clients to discard partial output
	// already relayed for the current turn; a fresh stream follows.
	EventResponseReset EventType = "ai_response_reset"

	// EventTyping signals whether the model is generating.
	EventTyping EventType = "ai_typing"

	// EventUserTyping relays a user's typing indicator to the room's
	// other subscribers.
	EventUserTyping EventType = "typing_indicator"
)

// Event is one outbound payload. The transport layer relays these
// verbatim.
type Event struct {
	Type      EventType `json:"type"`
	Sender    string    `json:"sender,omitempty"`
	Text      string    `json:"message,omitempty"`
	IsTyping  bool      `json:"is_typing,omitempty"`
	Failed    bool      `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// subscriberBuffer bounds per-subscriber queues; a subscriber that
// falls this far behind starts losing events rather than stalling
// generation.
const subscriberBuffer = 64

// Subscriber receives a room's event feed.
type Subscriber struct {
	ch chan Event
}

// Events is the subscriber's receive channel. It is closed when the
// subscriber is removed from the room.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}
