// Package traceid generates the trace identifiers that correlate a log
// submission with its eventual analysis result. This is the reference
// implementation of that externally-specified contract; the ingest handler
// calls it for every submission.
package traceid

import "github.com/google/uuid"

// New returns a fresh random trace id.
func New() string {
	return uuid.NewString()
}
