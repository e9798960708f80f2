package domain

import "fmt"

// Query size ceilings. RecallK bounds the candidate pool retrieved before
// reranking; K bounds the final result set.
const (
	DefaultK       = 10
	DefaultRecallK = 50
	MaxK           = 100
	MaxRecallK     = 500
)

// SemanticQuery is a tenant-scoped search request.
type SemanticQuery struct {
	TenantID string
	Q        string
	K        int
	RecallK  int
}

// NewSemanticQuery validates and normalizes a query. Zero K/RecallK take the
// defaults. When recall_k < k the effective k is capped at recall_k — the
// engine never returns more results than it retrieved candidates.
func NewSemanticQuery(tenantID, q string, k, recallK int) (SemanticQuery, error) {
	if tenantID == "" {
		return SemanticQuery{}, fmt.Errorf("%w: tenant id is required", ErrInvalidQuery)
	}
	if q == "" {
		return SemanticQuery{}, fmt.Errorf("%w: query text is required", ErrInvalidQuery)
	}
	if k < 0 || k > MaxK {
		return SemanticQuery{}, fmt.Errorf("%w: k must be between 0 and %d", ErrInvalidQuery, MaxK)
	}
	if recallK < 0 || recallK > MaxRecallK {
		return SemanticQuery{}, fmt.Errorf("%w: recall_k must be between 0 and %d", ErrInvalidQuery, MaxRecallK)
	}
	if k == 0 {
		k = DefaultK
	}
	if recallK == 0 {
		recallK = DefaultRecallK
	}
	if k > recallK {
		k = recallK
	}
	return SemanticQuery{TenantID: tenantID, Q: q, K: k, RecallK: recallK}, nil
}

// SearchResult is one ranked document in a search response.
type SearchResult struct {
	DocumentID string
	Score      float64
}
