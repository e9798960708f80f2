package indexing

import (
	"context"
	"time"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/queue"
)

// JobLedger persists job lifecycle state.
type JobLedger interface {
	Create(ctx context.Context, j domain.IndexJob) error
	Get(ctx context.Context, jobID string) (domain.IndexJob, error)
	Update(ctx context.Context, j domain.IndexJob) error
	Delete(ctx context.Context, j domain.IndexJob) error
	PendingForDocument(ctx context.Context, tenantID, documentID string) ([]string, error)
}

// JobQueue is the durable transport between enqueue and workers.
type JobQueue interface {
	Enqueue(ctx context.Context, msg queue.Message) error
	Dequeue(ctx context.Context) (queue.Message, queue.Lease, error)
	Ack(ctx context.Context, lease queue.Lease) error
	Nack(ctx context.Context, lease queue.Lease, delay time.Duration) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}

// DocumentStore persists raw document content.
type DocumentStore interface {
	Put(ctx context.Context, tenantID, documentID, content string, now time.Time) error
	Get(ctx context.Context, tenantID, documentID string) (string, error)
	Exists(ctx context.Context, tenantID, documentID string) (bool, error)
	Delete(ctx context.Context, tenantID, documentID string) error
}

// StateStore persists the queryable index-state projection.
type StateStore interface {
	Upsert(ctx context.Context, s domain.DocumentIndexState) error
	Delete(ctx context.Context, tenantID, documentID string) error
}

// Embedder vectorizes document content.
type Embedder interface {
	Embed(ctx context.Context, texts []string, input domain.InputType) (domain.EmbeddingResult, error)
}
