package indexing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/metrics"
	"github.com/lexibase/lexibase/internal/queue"
)

const (
	// DefaultMaxAttempts is the attempts ceiling before a job fails terminally.
	DefaultMaxAttempts = 5

	defaultBackoffBase  = 2 * time.Second
	defaultBackoffCap   = 5 * time.Minute
	defaultMaxInFlight  = 4
	defaultPromoteEvery = time.Second
)

// WorkerConfig tunes the worker pool.
type WorkerConfig struct {
	// Workers is the number of concurrent dequeue loops.
	Workers int
	// MaxAttempts is the per-job attempts ceiling.
	MaxAttempts int
	// MaxInFlight bounds concurrent embedding provider calls across workers.
	MaxInFlight int
	// BackoffBase is the delay before the second attempt; it doubles per
	// failed attempt up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func (c *WorkerConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = defaultMaxInFlight
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = defaultBackoffCap
	}
}

// Worker consumes index jobs and drives them through the
// queued → processing → indexed|failed lifecycle.
type Worker struct {
	jobs      JobLedger
	queue     JobQueue
	documents DocumentStore
	state     StateStore
	embed     Embedder
	sem       *semaphore.Weighted
	cfg       WorkerConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewWorker creates a worker pool over the given collaborators.
func NewWorker(
	jobs JobLedger, q JobQueue, documents DocumentStore, state StateStore,
	embed Embedder, cfg WorkerConfig, logger *zap.Logger,
) *Worker {
	cfg.applyDefaults()
	return &Worker{
		jobs:      jobs,
		queue:     q,
		documents: documents,
		state:     state,
		embed:     embed,
		sem:       semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run starts the dequeue loops and the delayed-retry promoter and blocks
// until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.cfg.Workers; i++ {
		g.Go(func() error { return w.consumeLoop(ctx) })
	}
	g.Go(func() error { return w.promoteLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) consumeLoop(ctx context.Context) error {
	for {
		msg, lease, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("Dequeue failed, backing off", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		w.Process(ctx, msg, lease)
	}
}

func (w *Worker) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(defaultPromoteEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.queue.PromoteDue(ctx, w.now()); err != nil {
				w.logger.Warn("Promoting delayed jobs failed", zap.Error(err))
			}
		}
	}
}

// Process runs a single job attempt end to end. Failures never escape: every
// outcome resolves the lease so one bad job cannot stall the channel.
func (w *Worker) Process(ctx context.Context, msg queue.Message, lease queue.Lease) {
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()
	start := w.now()

	log := w.logger.With(
		zap.String("job_id", msg.JobID),
		zap.String("tenant_id", msg.TenantID),
		zap.String("document_id", msg.DocumentID),
	)

	job, err := w.jobs.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Ledger row gone: the document was deleted after enqueue.
			log.Info("Dropping job without ledger row")
			w.ack(ctx, lease, log)
			metrics.IndexJobsTotal.WithLabelValues("skipped").Inc()
			return
		}
		log.Error("Loading job failed, releasing lease", zap.Error(err))
		w.nack(ctx, lease, 0, log)
		return
	}

	if job.Status == domain.JobIndexed {
		// Redelivery of a finished job (crash between upsert and ack).
		w.ack(ctx, lease, log)
		metrics.IndexJobsTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := job.BeginAttempt(); err != nil {
		log.Warn("Job not runnable, dropping", zap.String("status", string(job.Status)), zap.Error(err))
		w.ack(ctx, lease, log)
		metrics.IndexJobsTotal.WithLabelValues("skipped").Inc()
		return
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		log.Error("Recording attempt failed, releasing lease", zap.Error(err))
		w.nack(ctx, lease, 0, log)
		return
	}

	if err := w.runAttempt(ctx, &job); err != nil {
		w.handleFailure(ctx, job, lease, err, log)
		metrics.IndexJobDuration.Observe(w.now().Sub(start).Seconds())
		return
	}

	if err := job.MarkIndexed(w.now()); err != nil {
		log.Error("Marking job indexed failed", zap.Error(err))
		w.nack(ctx, lease, 0, log)
		return
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		// State is written; redelivery will see status indexed and skip.
		log.Error("Persisting indexed status failed", zap.Error(err))
		w.nack(ctx, lease, 0, log)
		return
	}
	w.ack(ctx, lease, log)

	metrics.IndexJobsTotal.WithLabelValues("indexed").Inc()
	metrics.IndexJobDuration.Observe(w.now().Sub(start).Seconds())
	log.Info("Document indexed", zap.Int("attempts", job.Attempts))
}

// runAttempt loads content, embeds it, and upserts the index state.
func (w *Worker) runAttempt(ctx context.Context, job *domain.IndexJob) error {
	content, err := w.documents.Get(ctx, job.TenantID, job.DocumentID)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire embed slot: %w", err)
	}
	result, err := w.embed.Embed(ctx, []string{content}, domain.InputDocument)
	w.sem.Release(1)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	if len(result.Vectors) != 1 {
		return fmt.Errorf("expected 1 vector, got %d: %w", len(result.Vectors), domain.ErrProviderUnavailable)
	}

	state := domain.DocumentIndexState{
		TenantID:    job.TenantID,
		DocumentID:  job.DocumentID,
		Vector:      result.Vectors[0],
		IndexedAt:   w.now(),
		SourceJobID: job.JobID,
	}
	if err := w.state.Upsert(ctx, state); err != nil {
		return fmt.Errorf("upsert index state: %w", err)
	}
	return nil
}

// handleFailure decides between retry with backoff and terminal failure.
func (w *Worker) handleFailure(
	ctx context.Context, job domain.IndexJob, lease queue.Lease, cause error, log *zap.Logger,
) {
	job.MarkFailed(cause, w.now())

	retryable := domain.IsRetryable(cause)
	exhausted := job.Attempts >= w.cfg.MaxAttempts

	if !retryable || exhausted {
		if exhausted && retryable {
			log.Error("Job failed terminally",
				zap.Int("attempts", job.Attempts),
				zap.Error(fmt.Errorf("%w: %w", domain.ErrAttemptsExhausted, cause)))
		} else {
			log.Error("Job failed terminally", zap.Int("attempts", job.Attempts), zap.Error(cause))
		}
		if err := w.jobs.Update(ctx, job); err != nil {
			log.Error("Persisting failed status failed, releasing lease", zap.Error(err))
			w.nack(ctx, lease, 0, log)
			return
		}
		w.ack(ctx, lease, log)
		metrics.IndexJobsTotal.WithLabelValues("failed").Inc()
		return
	}

	if err := job.Requeue(); err != nil {
		log.Error("Requeueing job failed", zap.Error(err))
		w.nack(ctx, lease, 0, log)
		return
	}
	if err := w.jobs.Update(ctx, job); err != nil {
		log.Error("Persisting requeue failed, releasing lease", zap.Error(err))
		w.nack(ctx, lease, 0, log)
		return
	}

	delay := backoff(w.cfg.BackoffBase, w.cfg.BackoffCap, job.Attempts)
	w.nack(ctx, lease, delay, log)
	metrics.IndexJobsTotal.WithLabelValues("retried").Inc()
	log.Warn("Job attempt failed, retrying",
		zap.Int("attempt", job.Attempts),
		zap.Duration("retry_in", delay),
		zap.Error(cause))
}

func (w *Worker) ack(ctx context.Context, lease queue.Lease, log *zap.Logger) {
	if err := w.queue.Ack(ctx, lease); err != nil {
		log.Warn("Ack failed, message will be redelivered", zap.Error(err))
	}
}

func (w *Worker) nack(ctx context.Context, lease queue.Lease, delay time.Duration, log *zap.Logger) {
	if err := w.queue.Nack(ctx, lease, delay); err != nil {
		log.Warn("Nack failed, lease will expire on its own", zap.Error(err))
	}
}
