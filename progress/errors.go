package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when no identity backs a store call, and
	// by Client when the API answers 401. It is terminal: never retried.
	ErrUnauthorized = errors.New("progress: unauthorized")

	// ErrInvalidDomain is returned for empty or malformed domain tokens, and
	// for domains outside the configured set.
	ErrInvalidDomain = errors.New("progress: invalid domain")

	// ErrInvalidPayload is returned when a payload fails write validation.
	ErrInvalidPayload = errors.New("progress: invalid payload")

	// ErrCorrupt marks a stored payload that no longer decodes. Only Upsert
	// writes payloads, so this is data corruption, not a user error.
	ErrCorrupt = errors.New("progress: stored payload is corrupt")
)

// RequestError is a non-success outcome of a call to the progress API.
type RequestError struct {
	Op      string // "session", "load", "save"
	Status  int    // HTTP status, 0 for transport failures
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("progress: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("progress: %s: %s (status %d)", e.Op, e.Message, e.Status)
}

func (e *RequestError) Unwrap() error { return e.Err }
