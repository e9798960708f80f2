// Package status assembles the on-demand operational view of the indexing
// pipeline. Everything is derived from the job ledger and the queue at read
// time; nothing here is persisted.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/metrics"
	"github.com/lexibase/lexibase/internal/queue"
)

const (
	defaultFailedLimit = 20
	defaultRecentCount = 10
)

// Service builds pipeline status snapshots.
type Service struct {
	jobs  JobLedger
	queue QueueLength
	now   func() time.Time
}

// NewService creates the status reporter.
func NewService(jobs JobLedger, q QueueLength) *Service {
	return &Service{
		jobs:  jobs,
		queue: q,
		now:   time.Now,
	}
}

// Snapshot reads the current pipeline state. The recently indexed list is
// fetched only when includeRecent is set. Each call hits the backing stores;
// callers that poll should do so at operator timescales.
func (s *Service) Snapshot(ctx context.Context, includeRecent bool) (domain.StatusSnapshot, error) {
	depth, err := s.queue.Len(ctx)
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("queue depth: %w", err)
	}
	metrics.QueueDepth.WithLabelValues(queue.ChannelIndexDocument).Set(float64(depth))

	inFlight, err := s.jobs.CountByStatus(ctx, domain.JobProcessing)
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("count processing: %w", err)
	}
	failedCount, err := s.jobs.CountByStatus(ctx, domain.JobFailed)
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("count failed: %w", err)
	}
	indexedCount, err := s.jobs.CountByStatus(ctx, domain.JobIndexed)
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("count indexed: %w", err)
	}

	failed, err := s.jobs.ListFailed(ctx, defaultFailedLimit)
	if err != nil {
		return domain.StatusSnapshot{}, fmt.Errorf("list failed: %w", err)
	}
	var recent []domain.IndexedDocument
	if includeRecent {
		recent, err = s.jobs.RecentlyIndexed(ctx, defaultRecentCount)
		if err != nil {
			return domain.StatusSnapshot{}, fmt.Errorf("recently indexed: %w", err)
		}
	}

	return domain.StatusSnapshot{
		QueueDepth:      int(depth),
		InFlight:        inFlight,
		FailedCount:     failedCount,
		IndexedCount:    indexedCount,
		Failed:          failed,
		RecentlyIndexed: recent,
		GeneratedAt:     s.now(),
	}, nil
}
