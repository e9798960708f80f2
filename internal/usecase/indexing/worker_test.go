package indexing

import (
	"context"
	"testing"
	"time"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/metrics"
)

func init() {
	metrics.RegisterPipelineMetrics()
}

func TestProcess_IndexesDocument(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{})
	msg := fx.seedJob(t, "job-1")

	fx.worker.Process(context.Background(), msg, leaseFor(msg))

	job, err := fx.ledger.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.Status != domain.JobIndexed {
		t.Errorf("Status = %q, want %q", job.Status, domain.JobIndexed)
	}
	if job.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", job.Attempts)
	}
	if job.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}

	if len(fx.state.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(fx.state.upserts))
	}
	state := fx.state.upserts[0]
	if state.TenantID != "tenant-1" || state.DocumentID != "doc-1" {
		t.Errorf("upsert for %s/%s, want tenant-1/doc-1", state.TenantID, state.DocumentID)
	}
	if state.SourceJobID != "job-1" {
		t.Errorf("SourceJobID = %q, want job-1", state.SourceJobID)
	}
	if len(state.Vector) != 4 {
		t.Errorf("vector length = %d, want 4", len(state.Vector))
	}

	if fx.queue.acks != 1 {
		t.Errorf("acks = %d, want 1", fx.queue.acks)
	}
	if len(fx.queue.nacks) != 0 {
		t.Errorf("nacks = %v, want none", fx.queue.nacks)
	}
}

func TestProcess_TransientFailureRetriesThenSucceeds(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{BackoffBase: time.Second, BackoffCap: time.Minute})
	msg := fx.seedJob(t, "job-1")
	fx.embed.failures = []error{domain.ErrProviderUnavailable, domain.ErrRateLimited}

	ctx := context.Background()

	// First two attempts fail and go back through the queue with growing delay.
	fx.worker.Process(ctx, msg, leaseFor(msg))
	fx.worker.Process(ctx, msg, leaseFor(msg))

	if fx.queue.acks != 0 {
		t.Errorf("acks after failures = %d, want 0", fx.queue.acks)
	}
	wantDelays := []time.Duration{time.Second, 2 * time.Second}
	if len(fx.queue.nacks) != len(wantDelays) {
		t.Fatalf("nacks = %v, want %v", fx.queue.nacks, wantDelays)
	}
	for i, want := range wantDelays {
		if fx.queue.nacks[i] != want {
			t.Errorf("nack[%d] delay = %v, want %v", i, fx.queue.nacks[i], want)
		}
	}
	job, _ := fx.ledger.Get(ctx, "job-1")
	if job.Status != domain.JobQueued {
		t.Errorf("Status after retries = %q, want %q", job.Status, domain.JobQueued)
	}

	// Third attempt succeeds.
	fx.worker.Process(ctx, msg, leaseFor(msg))

	job, _ = fx.ledger.Get(ctx, "job-1")
	if job.Status != domain.JobIndexed {
		t.Errorf("Status = %q, want %q", job.Status, domain.JobIndexed)
	}
	if job.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", job.Attempts)
	}
	if fx.embed.calls != 3 {
		t.Errorf("embed calls = %d, want 3", fx.embed.calls)
	}
	if fx.queue.acks != 1 {
		t.Errorf("acks = %d, want 1", fx.queue.acks)
	}
}

func TestProcess_DimensionMismatchFailsWithoutRetry(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{})
	msg := fx.seedJob(t, "job-1")
	fx.embed.failures = []error{domain.NewDimensionMismatch(4, 8)}

	fx.worker.Process(context.Background(), msg, leaseFor(msg))

	job, _ := fx.ledger.Get(context.Background(), "job-1")
	if job.Status != domain.JobFailed {
		t.Errorf("Status = %q, want %q", job.Status, domain.JobFailed)
	}
	if job.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", job.Attempts)
	}
	if job.LastError == "" {
		t.Error("LastError not recorded")
	}
	if len(fx.queue.nacks) != 0 {
		t.Errorf("nacks = %v, want none", fx.queue.nacks)
	}
	if fx.queue.acks != 1 {
		t.Errorf("acks = %d, want 1", fx.queue.acks)
	}
	if len(fx.state.upserts) != 0 {
		t.Errorf("upserts = %d, want 0", len(fx.state.upserts))
	}
}

func TestProcess_AttemptsCeilingExhausts(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{MaxAttempts: 2, BackoffBase: time.Second})
	msg := fx.seedJob(t, "job-1")
	fx.embed.failures = []error{domain.ErrProviderUnavailable, domain.ErrProviderUnavailable}

	ctx := context.Background()
	fx.worker.Process(ctx, msg, leaseFor(msg))
	fx.worker.Process(ctx, msg, leaseFor(msg))

	job, _ := fx.ledger.Get(ctx, "job-1")
	if job.Status != domain.JobFailed {
		t.Errorf("Status = %q, want %q", job.Status, domain.JobFailed)
	}
	if job.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", job.Attempts)
	}
	if len(fx.queue.nacks) != 1 {
		t.Errorf("nacks = %v, want exactly the first retry", fx.queue.nacks)
	}
	if fx.queue.acks != 1 {
		t.Errorf("acks = %d, want 1", fx.queue.acks)
	}

	// Exhausted jobs stay put; no further attempts run.
	fx.worker.Process(ctx, msg, leaseFor(msg))
	if fx.embed.calls != 2 {
		t.Errorf("embed calls = %d, want 2", fx.embed.calls)
	}
}

func TestProcess_MissingContentIsRetryable(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{BackoffBase: time.Second})
	msg := fx.seedJob(t, "job-1")
	if err := fx.docs.Delete(context.Background(), "tenant-1", "doc-1"); err != nil {
		t.Fatalf("delete content: %v", err)
	}
	// Keep the ledger row so this models a storage hiccup, not a deleted doc.

	fx.worker.Process(context.Background(), msg, leaseFor(msg))

	job, _ := fx.ledger.Get(context.Background(), "job-1")
	if job.Status != domain.JobQueued {
		t.Errorf("Status = %q, want %q", job.Status, domain.JobQueued)
	}
	if len(fx.queue.nacks) != 1 {
		t.Errorf("nacks = %v, want 1", fx.queue.nacks)
	}
	if fx.embed.calls != 0 {
		t.Errorf("embed calls = %d, want 0", fx.embed.calls)
	}
}

func TestProcess_DropsMessageWithoutLedgerRow(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{})
	msg := fx.seedJob(t, "job-1")
	job, _ := fx.ledger.Get(context.Background(), "job-1")
	if err := fx.ledger.Delete(context.Background(), job); err != nil {
		t.Fatalf("delete job: %v", err)
	}

	fx.worker.Process(context.Background(), msg, leaseFor(msg))

	if fx.queue.acks != 1 {
		t.Errorf("acks = %d, want 1", fx.queue.acks)
	}
	if fx.embed.calls != 0 {
		t.Errorf("embed calls = %d, want 0", fx.embed.calls)
	}
	if len(fx.state.upserts) != 0 {
		t.Errorf("upserts = %d, want 0", len(fx.state.upserts))
	}
}

func TestProcess_SkipsAlreadyIndexedRedelivery(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{})
	msg := fx.seedJob(t, "job-1")

	ctx := context.Background()
	fx.worker.Process(ctx, msg, leaseFor(msg))
	// Simulated redelivery after a crash between upsert and ack.
	fx.worker.Process(ctx, msg, leaseFor(msg))

	if fx.embed.calls != 1 {
		t.Errorf("embed calls = %d, want 1", fx.embed.calls)
	}
	if len(fx.state.upserts) != 1 {
		t.Errorf("upserts = %d, want 1", len(fx.state.upserts))
	}
	if fx.queue.acks != 2 {
		t.Errorf("acks = %d, want 2", fx.queue.acks)
	}
	job, _ := fx.ledger.Get(ctx, "job-1")
	if job.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", job.Attempts)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	fx := newWorkerFixture(t, WorkerConfig{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- fx.worker.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
