// Package search implements the retrieve-then-rerank semantic search engine:
// embed the query, recall recall_k nearest candidates within the tenant by
// cosine similarity, rerank them, return the top k.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/metrics"
)

// Service handles tenant-scoped semantic search. Provider failures at query
// time are returned to the caller as-is; there are no mid-request retries.
type Service struct {
	recall         Recaller
	content        ContentReader
	embed          Embedder
	rerank         Reranker
	logger         *zap.Logger
	defaultK       int
	defaultRecallK int
}

// Option configures a Service.
type Option func(*Service)

// WithDefaults overrides the k and recall_k applied to queries that omit them.
func WithDefaults(k, recallK int) Option {
	return func(s *Service) {
		s.defaultK = k
		s.defaultRecallK = recallK
	}
}

// New creates a search service.
func New(recall Recaller, content ContentReader, embed Embedder, rerank Reranker, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		recall:         recall,
		content:        content,
		embed:          embed,
		rerank:         rerank,
		logger:         logger,
		defaultK:       domain.DefaultK,
		defaultRecallK: domain.DefaultRecallK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the full pipeline for one query. k and recallK of zero take the
// configured defaults; k is capped at recallK. An empty index yields an empty
// result.
func (s *Service) Search(ctx context.Context, tenantID, q string, k, recallK int) ([]domain.SearchResult, error) {
	if k == 0 {
		k = s.defaultK
	}
	if recallK == 0 {
		recallK = s.defaultRecallK
	}
	query, err := domain.NewSemanticQuery(tenantID, q, k, recallK)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	vector, err := s.embed.EmbedQuery(ctx, query.Q)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	candidates, err := s.recall.Recall(ctx, query.TenantID, vector, query.RecallK)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("recall candidates: %w", err)
	}
	if len(candidates) == 0 {
		metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
		return nil, nil
	}

	results, err := s.rerankCandidates(ctx, query, candidates)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	return results, nil
}

// rerankCandidates loads candidate content and reorders by provider relevance.
// Candidates whose content vanished between indexing and query time are
// dropped from the pool rather than failing the request.
func (s *Service) rerankCandidates(
	ctx context.Context, query domain.SemanticQuery, candidates []domain.SearchResult,
) ([]domain.SearchResult, error) {
	texts := make([]string, 0, len(candidates))
	docIDs := make([]string, 0, len(candidates))

	for _, c := range candidates {
		text, err := s.content.Get(ctx, query.TenantID, c.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrContentUnavailable) {
				s.logger.Debug("Dropping candidate without content",
					zap.String("tenant_id", query.TenantID),
					zap.String("document_id", c.DocumentID))
				continue
			}
			return nil, fmt.Errorf("load candidate content: %w", err)
		}
		texts = append(texts, text)
		docIDs = append(docIDs, c.DocumentID)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	ranked, err := s.rerank.Rerank(ctx, query.Q, texts)
	if err != nil {
		return nil, fmt.Errorf("rerank candidates: %w", err)
	}

	results := make([]domain.SearchResult, 0, query.K)
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(docIDs) {
			return nil, fmt.Errorf("rerank index %d out of range", r.Index)
		}
		results = append(results, domain.SearchResult{
			DocumentID: docIDs[r.Index],
			Score:      r.Score,
		})
		if len(results) == query.K {
			break
		}
	}
	return results, nil
}
