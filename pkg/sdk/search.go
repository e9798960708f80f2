package lexibase

import "context"

type searchParams struct {
	k       int
	recallK int
}

// SearchOption tunes a single Search call.
type SearchOption func(*searchParams)

// WithK sets how many results to return. Capped at the recall depth.
func WithK(k int) SearchOption {
	return func(p *searchParams) { p.k = k }
}

// WithRecallK sets how many nearest neighbours to retrieve before reranking.
func WithRecallK(recallK int) SearchOption {
	return func(p *searchParams) { p.recallK = recallK }
}

// Search runs semantic search within a tenant: embed the query, recall the
// nearest indexed documents, rerank, and return the top hits best-first.
func (c *Client) Search(ctx context.Context, tenantID, query string, opts ...SearchOption) ([]Result, error) {
	var p searchParams
	for _, o := range opts {
		o(&p)
	}

	results, err := c.search.Search(ctx, tenantID, query, p.k, p.recallK)
	if err != nil {
		return nil, err
	}

	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Result{DocumentID: r.DocumentID, Score: r.Score}
	}
	return out, nil
}
