package domain

import "context"

// InputType selects provider-side weighting for an embedding request.
// It never changes the output dimension.
type InputType string

const (
	// InputDocument embeds text for storage in the index.
	InputDocument InputType = "document"
	// InputQuery embeds text for querying the index.
	InputQuery InputType = "query"
)

// EmbeddingResult holds vectors for a batch of inputs, in input order,
// plus provider token usage.
type EmbeddingResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text. Implementations guarantee that every returned
// vector has the configured dimension and that outputs preserve input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string, input InputType) (EmbeddingResult, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RankedCandidate refers back into a rerank candidate list by index.
type RankedCandidate struct {
	Index int
	Score float64
}

// Reranker orders candidate documents by relevance to a query. The returned
// indices are a subset or permutation of the input candidate indices,
// descending by score.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]RankedCandidate, error)
}

// HealthChecker is implemented by providers that can verify availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
