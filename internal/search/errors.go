package search

import "fmt"

const (
	msgTimedOut      = "search timed out"
	msgLookupDefault = "failed to search movies"
)

// LookupError is a failed catalog lookup. It is the only search failure
// surfaced to the user.
type LookupError struct {
	Query    string
	Err      error
	TimedOut bool
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("search %q: %s", e.Query, e.Reason())
}

func (e *LookupError) Unwrap() error { return e.Err }

// Reason is the human-readable message shown to the user.
func (e *LookupError) Reason() string {
	if e.TimedOut {
		return msgTimedOut
	}
	if e.Err == nil || e.Err.Error() == "" {
		return msgLookupDefault
	}
	return e.Err.Error()
}
