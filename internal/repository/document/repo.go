// Package document persists raw document content per tenant. The indexing
// worker reads from here when a job is processed; a row deleted between
// enqueue and processing surfaces as ErrContentUnavailable.
package document

import (
	"context"
	"fmt"
	"time"

	"github.com/lexibase/lexibase/internal/domain"
)

// store is the consumer interface for document content (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Repo implements the document content store.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Put writes the content for (tenant, document), replacing any previous
// version.
func (r *Repo) Put(ctx context.Context, tenantID, documentID, content string, now time.Time) error {
	fields := map[string]string{
		"content":    content,
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}
	if err := r.store.HSet(ctx, docKey(tenantID, documentID), fields); err != nil {
		return fmt.Errorf("hset document %s/%s: %w", tenantID, documentID, err)
	}
	return nil
}

// Get returns the content for (tenant, document). A missing row maps to
// ErrContentUnavailable so the worker can treat it as a skippable job.
func (r *Repo) Get(ctx context.Context, tenantID, documentID string) (string, error) {
	fields, err := r.store.HGetAll(ctx, docKey(tenantID, documentID))
	if err != nil {
		return "", fmt.Errorf("hgetall document %s/%s: %w", tenantID, documentID, err)
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("document %s/%s: %w", tenantID, documentID, domain.ErrContentUnavailable)
	}
	return fields["content"], nil
}

// Exists reports whether content is stored for (tenant, document).
func (r *Repo) Exists(ctx context.Context, tenantID, documentID string) (bool, error) {
	ok, err := r.store.Exists(ctx, docKey(tenantID, documentID))
	if err != nil {
		return false, fmt.Errorf("exists document %s/%s: %w", tenantID, documentID, err)
	}
	return ok, nil
}

// Delete removes the content row. Missing rows are not an error.
func (r *Repo) Delete(ctx context.Context, tenantID, documentID string) error {
	if err := r.store.Del(ctx, docKey(tenantID, documentID)); err != nil {
		return fmt.Errorf("del document %s/%s: %w", tenantID, documentID, err)
	}
	return nil
}

func docKey(tenantID, documentID string) string {
	return fmt.Sprintf("%sdoc:%s:%s", domain.KeyPrefix, tenantID, documentID)
}
