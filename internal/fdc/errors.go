package fdc

import (
	"fmt"
	"time"
)

// ThrottledError reports that the provider asked for a wait longer than the
// configured ceiling. The run should halt and be resumed later; the request
// that triggered it was never partially processed.
type ThrottledError struct {
	RetryAfter time.Duration
	Ceiling    time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("provider throttled: retry-after %s exceeds ceiling %s", e.RetryAfter, e.Ceiling)
}

// TransientNetworkError reports that a request kept failing past the retry
// bound. Callers treat it as a page-level failure: log, skip, continue.
type TransientNetworkError struct {
	Attempts int
	Cause    error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Cause
}

// FatalAuthError reports a credential rejection. Retrying only burns quota,
// so the fetcher fails immediately and the run aborts.
type FatalAuthError struct {
	StatusCode int
}

func (e *FatalAuthError) Error() string {
	return fmt.Sprintf("authentication rejected by provider (HTTP %d): check API key", e.StatusCode)
}
