package search

import (
	"context"

	"github.com/lexibase/lexibase/internal/domain"
)

// Recaller retrieves the nearest indexed documents within a tenant.
type Recaller interface {
	Recall(ctx context.Context, tenantID string, vector []float32, k int) ([]domain.SearchResult, error)
}

// ContentReader loads document content for rerank candidates.
type ContentReader interface {
	Get(ctx context.Context, tenantID, documentID string) (string, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker orders candidates by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]domain.RankedCandidate, error)
}
