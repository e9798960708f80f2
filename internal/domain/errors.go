package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrContentUnavailable signals that a document's content could not be loaded.
	ErrContentUnavailable = errors.New("document content unavailable")
	// ErrDimensionMismatch signals an embedding dimension contract violation. Fatal, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrProviderUnavailable signals a transient embedding/rerank provider failure (timeout, 5xx).
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrRateLimited signals a 429 from a provider. Transient, retryable with backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrQueueUnavailable signals a queue infrastructure failure, propagated to the caller.
	ErrQueueUnavailable = errors.New("queue unavailable")
	// ErrAttemptsExhausted signals a job that hit the attempts ceiling and failed terminally.
	ErrAttemptsExhausted = errors.New("job attempts exhausted")
	// ErrInvalidQuery signals a malformed semantic query.
	ErrInvalidQuery = errors.New("invalid query")
)

// IsRetryable reports whether an indexing failure may be requeued.
// Dimension mismatches are provider contract violations and must never retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrContentUnavailable) ||
		errors.Is(err, ErrQueueUnavailable)
}

// DimensionMismatchError wraps ErrDimensionMismatch with the observed dimensions.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: want %d, got %d", ErrDimensionMismatch.Error(), e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}
