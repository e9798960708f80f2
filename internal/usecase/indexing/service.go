// Package indexing owns the write side of the pipeline: accepting documents,
// recording jobs in the durable ledger, moving them through the queue, and
// running the worker pool that turns queued jobs into index state.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/queue"
)

// Service accepts document writes and schedules index jobs.
type Service struct {
	jobs      JobLedger
	queue     JobQueue
	documents DocumentStore
	state     StateStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the enqueue-side indexing service.
func NewService(jobs JobLedger, q JobQueue, documents DocumentStore, state StateStore, logger *zap.Logger) *Service {
	return &Service{
		jobs:      jobs,
		queue:     q,
		documents: documents,
		state:     state,
		logger:    logger,
		now:       time.Now,
	}
}

// IndexDocument stores content for (tenant, document) and enqueues an index
// job. Returns the job ID. Rewrites of the same document enqueue a new job;
// the index state converges on the newest completion.
func (s *Service) IndexDocument(ctx context.Context, tenantID, documentID, content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("%w: content is required", domain.ErrInvalidQuery)
	}
	if err := s.documents.Put(ctx, tenantID, documentID, content, s.now()); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return s.schedule(ctx, tenantID, documentID)
}

// Reindex enqueues a fresh index job for already-stored content.
func (s *Service) Reindex(ctx context.Context, tenantID, documentID string) (string, error) {
	exists, err := s.documents.Exists(ctx, tenantID, documentID)
	if err != nil {
		return "", fmt.Errorf("check document: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("document %s/%s: %w", tenantID, documentID, domain.ErrNotFound)
	}
	return s.schedule(ctx, tenantID, documentID)
}

// DeleteDocument removes content, index state, and pending ledger rows for
// (tenant, document). Stream entries already in flight are not touched: the
// worker drops any message whose ledger row is gone.
func (s *Service) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	if err := s.documents.Delete(ctx, tenantID, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.state.Delete(ctx, tenantID, documentID); err != nil {
		return fmt.Errorf("delete index state: %w", err)
	}

	pending, err := s.jobs.PendingForDocument(ctx, tenantID, documentID)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	for _, jobID := range pending {
		j, err := s.jobs.Get(ctx, jobID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return fmt.Errorf("load pending job %s: %w", jobID, err)
		}
		if err := s.jobs.Delete(ctx, j); err != nil {
			return fmt.Errorf("delete pending job %s: %w", jobID, err)
		}
	}

	s.logger.Info("Document deleted",
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
		zap.Int("cancelled_jobs", len(pending)))
	return nil
}

func (s *Service) schedule(ctx context.Context, tenantID, documentID string) (string, error) {
	jobID := uuid.NewString()
	job, err := domain.NewIndexJob(jobID, tenantID, documentID, s.now())
	if err != nil {
		return "", err
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, queue.Message{
		JobID:      jobID,
		TenantID:   tenantID,
		DocumentID: documentID,
	}); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("Index job enqueued",
		zap.String("job_id", jobID),
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID))
	return jobID, nil
}
