// Package indexstate persists the queryable projection of indexed documents:
// one hash per (tenant, document) under an FT index with a tenant TAG and an
// HNSW COSINE vector field. Rows are replaced on reindex, never appended.
package indexstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexibase/lexibase/internal/db"
	"github.com/lexibase/lexibase/internal/domain"
)

// store is the consumer interface for index state (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig tunes the vector index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo implements the index-state store used by the worker and the search
// engine.
type Repo struct {
	store     store
	vectorDim int
	hnsw      HNSWConfig
}

// New creates an index-state repository for vectors of the given dimension.
func New(s store, vectorDim int, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, vectorDim: vectorDim, hnsw: hnsw}
}

// EnsureIndex creates the FT index over state hashes if it does not exist.
// Call once at startup, before workers or queries run.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     indexName(),
		Prefixes: []string{statePrefix()},
		Fields: []db.IndexField{
			{Name: "tenant", Type: db.IndexFieldTag},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert writes the state row for (tenant, document), replacing any previous
// row. A row already carrying a later IndexedAt wins and the write is dropped,
// so out-of-order completions of the same document converge on the newest.
func (r *Repo) Upsert(ctx context.Context, s domain.DocumentIndexState) error {
	if len(s.Vector) != r.vectorDim {
		return domain.NewDimensionMismatch(r.vectorDim, len(s.Vector))
	}

	key := stateKey(s.TenantID, s.DocumentID)
	current, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("read current state %s: %w", key, err)
	}
	if len(current) > 0 {
		existing, err := stateFromFields(current)
		if err == nil && existing.Fresher(s) {
			return nil
		}
	}

	if err := r.store.HSet(ctx, key, stateToFields(s)); err != nil {
		return fmt.Errorf("hset state %s: %w", key, err)
	}
	return nil
}

// Get returns the state row for (tenant, document).
func (r *Repo) Get(ctx context.Context, tenantID, documentID string) (domain.DocumentIndexState, error) {
	fields, err := r.store.HGetAll(ctx, stateKey(tenantID, documentID))
	if err != nil {
		return domain.DocumentIndexState{}, fmt.Errorf("hgetall state: %w", err)
	}
	if len(fields) == 0 {
		return domain.DocumentIndexState{}, domain.ErrNotFound
	}
	return stateFromFields(fields)
}

// Delete removes the state row for (tenant, document). Missing rows are not
// an error: deletes must be idempotent under redelivery.
func (r *Repo) Delete(ctx context.Context, tenantID, documentID string) error {
	if err := r.store.Del(ctx, stateKey(tenantID, documentID)); err != nil {
		return fmt.Errorf("del state: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents for a tenant.
func (r *Repo) Count(ctx context.Context, tenantID string) (int, error) {
	query := fmt.Sprintf("@tenant:{%s}", db.TagEscape(tenantID))
	n, err := r.store.SearchCount(ctx, indexName(), query)
	if err != nil {
		return 0, fmt.Errorf("count states for %s: %w", tenantID, err)
	}
	return n, nil
}

// Recall returns up to k nearest documents to the query vector within the
// tenant, by cosine similarity, best first. An empty index yields no results.
func (r *Repo) Recall(ctx context.Context, tenantID string, vector []float32, k int) ([]domain.SearchResult, error) {
	q := &db.KNNQuery{
		IndexName:    indexName(),
		Prefilter:    fmt.Sprintf("@tenant:{%s}", db.TagEscape(tenantID)),
		Vector:       vector,
		K:            k,
		ReturnFields: []string{"doc", "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn recall for %s: %w", tenantID, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	results := make([]domain.SearchResult, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		docID := entry.Fields["doc"]
		if docID == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			DocumentID: docID,
			Score:      entry.Score,
		})
	}
	return results, nil
}

func stateKey(tenantID, documentID string) string {
	return fmt.Sprintf("%s%s:%s", statePrefix(), tenantID, documentID)
}

func statePrefix() string {
	return fmt.Sprintf("%sstate:", domain.KeyPrefix)
}

func indexName() string {
	return fmt.Sprintf("%sstate:idx", domain.KeyPrefix)
}
