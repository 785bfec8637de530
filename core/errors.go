package core

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies failures surfaced by a token provider.
type ProviderErrorKind string

const (
	AuthFailure        ProviderErrorKind = "auth_failure"
	RateLimited        ProviderErrorKind = "rate_limited"
	Timeout            ProviderErrorKind = "timeout"
	TransportError     ProviderErrorKind = "transport_error"
	UnsupportedRequest ProviderErrorKind = "unsupported_request"
)

// ProviderError is a typed failure from a token provider. Partial
// output already yielded before the failure is not retracted; the
// caller decides whether it is usable.
type ProviderError struct {
	Kind     ProviderErrorKind
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderErrKind extracts the kind from err, or "" if err carries no
// ProviderError.
func ProviderErrKind(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ValidationError rejects malformed inbound input before any state
// transition happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConversationClosedError is returned when a message is submitted to
// a conversation already in the ended state.
type ConversationClosedError struct {
	ConversationID string
}

func (e *ConversationClosedError) Error() string {
	return fmt.Sprintf("conversation %s is closed", e.ConversationID)
}

// DimensionMismatchError is returned when a vector's length does not
// match the index's configured dimension.
type DimensionMismatchError struct {
	Want, Got int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// ErrDegenerateVector is returned when cosine similarity is requested
// for a zero-magnitude vector, where the score is undefined.
var ErrDegenerateVector = errors.New("degenerate vector: zero magnitude")

// ErrTurnInFlight is returned when a second submission arrives while a
// turn is already in progress for the same conversation.
var ErrTurnInFlight = errors.New("a turn is already in flight for this conversation")

// ErrNotFound is returned by storage lookups for unknown ids.
var ErrNotFound = errors.New("not found")
