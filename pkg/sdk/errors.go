package lexibase

import "github.com/lexibase/lexibase/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrInvalidQuery        = domain.ErrInvalidQuery
	ErrContentUnavailable  = domain.ErrContentUnavailable
	ErrDimensionMismatch   = domain.ErrDimensionMismatch
	ErrProviderUnavailable = domain.ErrProviderUnavailable
	ErrRateLimited         = domain.ErrRateLimited
	ErrQueueUnavailable    = domain.ErrQueueUnavailable
	ErrAttemptsExhausted   = domain.ErrAttemptsExhausted
)
