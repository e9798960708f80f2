// Package job persists the durable index-job ledger: one hash per job,
// per-status membership sets, a completion sorted set scored by completedAt
// (retention and recent-indexed queries), and a per-document set of pending
// jobs (delete cascade).
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/lexibase/lexibase/internal/db"
	"github.com/lexibase/lexibase/internal/domain"
)

// store is the consumer interface for the job ledger (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SCard(ctx context.Context, key string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	ZAdd(ctx context.Context, key string, members ...db.ScoredMember) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int) ([]string, error)
	ZRevRangeWithScores(ctx context.Context, key string, count int) ([]db.ScoredMember, error)
}

var allStatuses = []domain.JobStatus{
	domain.JobQueued, domain.JobProcessing, domain.JobIndexed, domain.JobFailed,
}

// Repo implements the job ledger used by the indexing worker, the status
// reporter and the retention sweeper.
type Repo struct {
	store store
}

// New creates a job ledger repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create persists a freshly queued job and registers it against its document.
func (r *Repo) Create(ctx context.Context, j domain.IndexJob) error {
	if err := r.store.HSet(ctx, jobKey(j.JobID), jobToFields(j)); err != nil {
		return fmt.Errorf("hset job %s: %w", j.JobID, err)
	}
	if err := r.store.SAdd(ctx, statusKey(j.Status), j.JobID); err != nil {
		return fmt.Errorf("add to %s set: %w", j.Status, err)
	}
	if err := r.store.SAdd(ctx, docJobsKey(j.TenantID, j.DocumentID), j.JobID); err != nil {
		return fmt.Errorf("add to document set: %w", err)
	}
	return nil
}

// Get returns a job by ID.
func (r *Repo) Get(ctx context.Context, jobID string) (domain.IndexJob, error) {
	fields, err := r.store.HGetAll(ctx, jobKey(jobID))
	if err != nil {
		return domain.IndexJob{}, fmt.Errorf("hgetall job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return domain.IndexJob{}, domain.ErrNotFound
	}
	return jobFromFields(fields)
}

// Update persists a job after a status transition and moves it between the
// status sets. An indexed job enters the completion set and leaves its
// document's pending set.
func (r *Repo) Update(ctx context.Context, j domain.IndexJob) error {
	if err := r.store.HSet(ctx, jobKey(j.JobID), jobToFields(j)); err != nil {
		return fmt.Errorf("hset job %s: %w", j.JobID, err)
	}

	for _, s := range allStatuses {
		if s == j.Status {
			continue
		}
		if err := r.store.SRem(ctx, statusKey(s), j.JobID); err != nil {
			return fmt.Errorf("remove from %s set: %w", s, err)
		}
	}
	if err := r.store.SAdd(ctx, statusKey(j.Status), j.JobID); err != nil {
		return fmt.Errorf("add to %s set: %w", j.Status, err)
	}

	if j.Status == domain.JobIndexed {
		score := float64(j.CompletedAt.UnixMilli())
		if err := r.store.ZAdd(ctx, completedKey(), db.ScoredMember{Member: j.JobID, Score: score}); err != nil {
			return fmt.Errorf("add to completion set: %w", err)
		}
		if err := r.store.SRem(ctx, docJobsKey(j.TenantID, j.DocumentID), j.JobID); err != nil {
			return fmt.Errorf("remove from document set: %w", err)
		}
	}
	return nil
}

// Delete removes a job and all its set memberships.
func (r *Repo) Delete(ctx context.Context, j domain.IndexJob) error {
	if err := r.store.Del(ctx, jobKey(j.JobID)); err != nil {
		return fmt.Errorf("del job %s: %w", j.JobID, err)
	}
	for _, s := range allStatuses {
		if err := r.store.SRem(ctx, statusKey(s), j.JobID); err != nil {
			return fmt.Errorf("remove from %s set: %w", s, err)
		}
	}
	if err := r.store.ZRem(ctx, completedKey(), j.JobID); err != nil {
		return fmt.Errorf("remove from completion set: %w", err)
	}
	if err := r.store.SRem(ctx, docJobsKey(j.TenantID, j.DocumentID), j.JobID); err != nil {
		return fmt.Errorf("remove from document set: %w", err)
	}
	return nil
}

// CountByStatus returns the number of jobs currently in the given status.
func (r *Repo) CountByStatus(ctx context.Context, status domain.JobStatus) (int, error) {
	n, err := r.store.SCard(ctx, statusKey(status))
	if err != nil {
		return 0, fmt.Errorf("count %s jobs: %w", status, err)
	}
	return int(n), nil
}

// ListFailed returns up to limit terminally failed jobs for operator triage.
func (r *Repo) ListFailed(ctx context.Context, limit int) ([]domain.FailedJob, error) {
	ids, err := r.store.SMembers(ctx, statusKey(domain.JobFailed))
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch failed jobs: %w", err)
	}

	failed := make([]domain.FailedJob, 0, len(hashes))
	for _, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		j, err := jobFromFields(fields)
		if err != nil {
			continue
		}
		failed = append(failed, domain.FailedJob{
			JobID:      j.JobID,
			DocumentID: j.DocumentID,
			Attempts:   j.Attempts,
			LastError:  j.LastError,
			FailedAt:   j.CompletedAt,
		})
	}
	return failed, nil
}

// RecentlyIndexed returns the most recently completed documents, newest first.
func (r *Repo) RecentlyIndexed(ctx context.Context, count int) ([]domain.IndexedDocument, error) {
	members, err := r.store.ZRevRangeWithScores(ctx, completedKey(), count)
	if err != nil {
		return nil, fmt.Errorf("recently indexed: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = jobKey(m.Member)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch indexed jobs: %w", err)
	}

	recent := make([]domain.IndexedDocument, 0, len(members))
	for i, m := range members {
		if i >= len(hashes) || len(hashes[i]) == 0 {
			continue
		}
		recent = append(recent, domain.IndexedDocument{
			DocumentID: hashes[i]["doc"],
			IndexedAt:  time.UnixMilli(int64(m.Score)).UTC(),
		})
	}
	return recent, nil
}

// IndexedBefore returns up to limit IDs of indexed jobs completed before the
// cutoff, oldest first. Drives the retention sweeper.
func (r *Repo) IndexedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	ids, err := r.store.ZRangeByScore(ctx, completedKey(), 0, float64(cutoff.UnixMilli()), limit)
	if err != nil {
		return nil, fmt.Errorf("indexed before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return ids, nil
}

// PendingForDocument returns IDs of jobs for the document that have not
// reached the indexed state. Used by the delete cascade.
func (r *Repo) PendingForDocument(ctx context.Context, tenantID, documentID string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, docJobsKey(tenantID, documentID))
	if err != nil {
		return nil, fmt.Errorf("pending jobs for %s/%s: %w", tenantID, documentID, err)
	}
	return ids, nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("%sjob:%s", domain.KeyPrefix, jobID)
}

func statusKey(status domain.JobStatus) string {
	return fmt.Sprintf("%sjobs:%s", domain.KeyPrefix, status)
}

func completedKey() string {
	return fmt.Sprintf("%sjobs:completed", domain.KeyPrefix)
}

func docJobsKey(tenantID, documentID string) string {
	return fmt.Sprintf("%sdocjobs:%s:%s", domain.KeyPrefix, tenantID, documentID)
}
