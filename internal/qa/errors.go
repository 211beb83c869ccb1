package qa

import (
	"errors"
	"fmt"
)

// Component failure categories. Page-level failures (fetch, extraction,
// timeout) abort a URL's analysis and surface as one synthetic critical
// issue; block-level failures are logged and skipped (fail-open).
var (
	ErrFetch         = errors.New("fetch failed")
	ErrExtraction    = errors.New("extraction failed")
	ErrDetection     = errors.New("language detection failed")
	ErrVerification  = errors.New("verification failed")
	ErrConfiguration = errors.New("invalid configuration")
	ErrTimeout       = errors.New("analysis timed out")
)

// FetchError wraps a network/HTTP failure with its URL and, when available,
// the response status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return ErrFetch }

// Retryable reports whether the failure is transient. Client errors (4xx)
// are not retried; everything else is.
func (e *FetchError) Retryable() bool {
	return e.StatusCode < 400 || e.StatusCode >= 500
}

// TimeoutError marks an exceeded per-URL analysis budget.
type TimeoutError struct {
	Operation string
	Elapsed   float64
	Limit     float64
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %.1fs (limit: %.0fs)", e.Operation, e.Elapsed, e.Limit)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
