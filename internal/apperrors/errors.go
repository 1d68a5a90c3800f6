// Package apperrors defines the error kinds shared across the ingestion
// pipeline so HTTP handlers can map failures to status codes by
// errors.Is/errors.As instead of string matching.
package apperrors

import "errors"

var (
	// ErrOverload marks a rejection because a bounded queue (the batcher's
	// ring buffer or the worker pool's task queue) is full.
	ErrOverload = errors.New("server is overloaded")

	// ErrNotFound marks a trace-id query miss.
	ErrNotFound = errors.New("not found")

	// ErrClientInput marks malformed request bodies or invalid query
	// parameters.
	ErrClientInput = errors.New("invalid input")

	// ErrExternalFailure marks a failure talking to the external analyzer:
	// network error, non-200, malformed JSON, or schema violation.
	ErrExternalFailure = errors.New("external analyzer failure")

	// ErrPersistence marks a SQL step or commit failure. Callers must treat
	// the transaction as rolled back and in-memory snapshots as untouched.
	ErrPersistence = errors.New("persistence failure")

	// ErrStartup marks a failure that should abort process startup
	// (e.g. the database cannot be opened or migrated).
	ErrStartup = errors.New("startup failure")
)

// HTTPError wraps one of the sentinel kinds above with a human-readable
// message, so handlers can log detail while still classifying via Is/As.
type HTTPError struct {
	Kind    error
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Kind }

// Wrap builds an HTTPError carrying kind with a formatted message.
func Wrap(kind error, message string) *HTTPError {
	return &HTTPError{Kind: kind, Message: message}
}
