package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInputDisabled is returned when free text arrives in a phase that does not accept it.
var ErrInputDisabled = errors.New("input disabled in current phase")

// ErrUnknownEvent is returned for an event type the engine does not understand,
// or one that is not valid in the current phase.
var ErrUnknownEvent = errors.New("unknown event")

// ErrInvalidAction is returned when the selected action is not recommend, modify or whatif.
var ErrInvalidAction = errors.New("invalid action")

// ErrNoHeaders is returned when an ingestion result carries no column headers.
var ErrNoHeaders = errors.New("ingestion produced no headers")

// FormEntryError reports why a structured form entry was rejected.
type FormEntryError struct {
	Column string
	Reason string
}

func (e *FormEntryError) Error() string {
	if e.Column == "" {
		return "invalid form entry: " + e.Reason
	}
	return "invalid form entry for " + e.Column + ": " + e.Reason
}

// IsRejection reports whether err is the engine refusing an event. The session is
// unchanged and the dialogue can go on, unlike storage or transport failures.
func IsRejection(err error) bool {
	var formErr *FormEntryError
	return errors.Is(err, ErrInputDisabled) ||
		errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrNoHeaders) ||
		errors.As(err, &formErr)
}
