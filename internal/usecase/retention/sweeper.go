// Package retention prunes old indexed jobs from the ledger. Failed jobs and
// index state are never touched: failures stay visible for triage, and the
// index serves queries for as long as the document lives.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/metrics"
)

const (
	// DefaultWindow is how long indexed jobs are kept after completion.
	DefaultWindow = 24 * time.Hour

	defaultInterval  = 10 * time.Minute
	defaultBatchSize = 100
)

// JobLedger is the slice of the job repository the sweeper needs.
type JobLedger interface {
	IndexedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	Get(ctx context.Context, jobID string) (domain.IndexJob, error)
	Delete(ctx context.Context, j domain.IndexJob) error
}

// Config tunes the sweeper.
type Config struct {
	// Window is the retention period for indexed jobs.
	Window time.Duration
	// Interval is how often a sweep runs.
	Interval time.Duration
	// BatchSize bounds deletions per sweep pass.
	BatchSize int
}

func (c *Config) applyDefaults() {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
}

// Sweeper periodically deletes indexed jobs past the retention window.
type Sweeper struct {
	jobs   JobLedger
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewSweeper creates a sweeper over the job ledger.
func NewSweeper(jobs JobLedger, cfg Config, logger *zap.Logger) *Sweeper {
	cfg.applyDefaults()
	return &Sweeper{
		jobs:   jobs,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run sweeps on an interval until ctx is cancelled. Sweep failures are logged
// and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			deleted, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("Retention sweep failed, will retry next tick", zap.Error(err))
				continue
			}
			if deleted > 0 {
				s.logger.Info("Retention sweep completed", zap.Int("deleted", deleted))
			}
		}
	}
}

// Sweep deletes one pass of expired indexed jobs and returns how many went.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.Window)

	jobIDs, err := s.jobs.IndexedBefore(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired jobs: %w", err)
	}

	deleted := 0
	for _, jobID := range jobIDs {
		job, err := s.jobs.Get(ctx, jobID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return deleted, fmt.Errorf("load job %s: %w", jobID, err)
		}
		if job.Status != domain.JobIndexed {
			// The completion set should only hold indexed jobs; leave
			// anything else alone.
			s.logger.Warn("Skipping non-indexed job in completion set",
				zap.String("job_id", jobID), zap.String("status", string(job.Status)))
			continue
		}
		if err := s.jobs.Delete(ctx, job); err != nil {
			return deleted, fmt.Errorf("delete job %s: %w", jobID, err)
		}
		deleted++
	}

	metrics.SweeperDeletedTotal.Add(float64(deleted))
	return deleted, nil
}
