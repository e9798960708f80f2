package status

import (
	"context"

	"github.com/lexibase/lexibase/internal/domain"
)

// JobLedger reads aggregate job lifecycle state.
type JobLedger interface {
	CountByStatus(ctx context.Context, status domain.JobStatus) (int, error)
	ListFailed(ctx context.Context, limit int) ([]domain.FailedJob, error)
	RecentlyIndexed(ctx context.Context, count int) ([]domain.IndexedDocument, error)
}

// QueueLength reports how many entries sit in the index-document stream.
type QueueLength interface {
	Len(ctx context.Context) (int64, error)
}
