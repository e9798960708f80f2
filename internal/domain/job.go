package domain

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an index job.
type JobStatus string

const (
	// JobQueued means the job is waiting for a worker.
	JobQueued JobStatus = "queued"
	// JobProcessing means a worker holds a lease on the job.
	JobProcessing JobStatus = "processing"
	// JobIndexed means the job completed and the index state was written.
	JobIndexed JobStatus = "indexed"
	// JobFailed means the last attempt failed. Terminal once attempts are exhausted.
	JobFailed JobStatus = "failed"
)

// IndexJob is one entry in the durable job ledger. Transitions are monotonic
// (queued → processing → indexed|failed) except failed → queued on retry.
type IndexJob struct {
	JobID       string
	TenantID    string
	DocumentID  string
	Status      JobStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// NewIndexJob creates a queued job for a tenant's document.
func NewIndexJob(jobID, tenantID, documentID string, now time.Time) (IndexJob, error) {
	if jobID == "" {
		return IndexJob{}, fmt.Errorf("job id is required")
	}
	if tenantID == "" {
		return IndexJob{}, fmt.Errorf("tenant id is required")
	}
	if documentID == "" {
		return IndexJob{}, fmt.Errorf("document id is required")
	}
	return IndexJob{
		JobID:      jobID,
		TenantID:   tenantID,
		DocumentID: documentID,
		Status:     JobQueued,
		CreatedAt:  now,
	}, nil
}

// BeginAttempt transitions the job to processing and counts the attempt.
func (j *IndexJob) BeginAttempt() error {
	if j.Status != JobQueued && j.Status != JobProcessing {
		return fmt.Errorf("cannot begin attempt from status %q", j.Status)
	}
	j.Status = JobProcessing
	j.Attempts++
	return nil
}

// MarkIndexed transitions the job to its terminal indexed state.
func (j *IndexJob) MarkIndexed(now time.Time) error {
	if j.Status != JobProcessing {
		return fmt.Errorf("cannot mark indexed from status %q", j.Status)
	}
	j.Status = JobIndexed
	j.LastError = ""
	j.CompletedAt = now
	return nil
}

// MarkFailed records the attempt error and moves the job to failed.
func (j *IndexJob) MarkFailed(cause error, now time.Time) {
	j.Status = JobFailed
	if cause != nil {
		j.LastError = cause.Error()
	}
	j.CompletedAt = now
}

// Requeue moves a failed job back to queued for another attempt.
// Callers enforce the attempts ceiling before requeueing.
func (j *IndexJob) Requeue() error {
	if j.Status != JobFailed && j.Status != JobProcessing {
		return fmt.Errorf("cannot requeue from status %q", j.Status)
	}
	j.Status = JobQueued
	j.CompletedAt = time.Time{}
	return nil
}
