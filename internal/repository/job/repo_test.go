package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexibase/lexibase/internal/domain"
)

func TestCreateAndGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	j := testJob(t, "j1")
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.JobID != "j1" || got.TenantID != "tenant-1" || got.DocumentID != "doc-j1" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Status != domain.JobQueued {
		t.Errorf("expected queued, got %s", got.Status)
	}
	if !got.CreatedAt.Equal(j.CreatedAt) {
		t.Errorf("created_at mismatch: %s vs %s", got.CreatedAt, j.CreatedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_MovesBetweenStatusSets(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	j := testJob(t, "j1")
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := j.BeginAttempt(); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("Update: %v", err)
	}

	queued, _ := repo.CountByStatus(ctx, domain.JobQueued)
	processing, _ := repo.CountByStatus(ctx, domain.JobProcessing)
	if queued != 0 || processing != 1 {
		t.Errorf("queued=%d processing=%d, want 0/1", queued, processing)
	}

	got, err := repo.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
}

func TestUpdate_IndexedEntersCompletionSet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	j := testJob(t, "j1")
	_ = repo.Create(ctx, j)
	_ = j.BeginAttempt()
	_ = repo.Update(ctx, j)

	completedAt := time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC)
	if err := j.MarkIndexed(completedAt); err != nil {
		t.Fatalf("MarkIndexed: %v", err)
	}
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("Update: %v", err)
	}

	ids, err := repo.IndexedBefore(ctx, completedAt.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("IndexedBefore: %v", err)
	}
	if len(ids) != 1 || ids[0] != "j1" {
		t.Errorf("expected [j1] in completion set, got %v", ids)
	}

	// Indexed job leaves its document's pending set.
	pending, err := repo.PendingForDocument(ctx, j.TenantID, j.DocumentID)
	if err != nil {
		t.Fatalf("PendingForDocument: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending jobs, got %v", pending)
	}
}

func TestRecentlyIndexed_NewestFirst(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"j1", "j2", "j3"} {
		j := testJob(t, id)
		_ = repo.Create(ctx, j)
		_ = j.BeginAttempt()
		if err := j.MarkIndexed(base.Add(time.Duration(i) * time.Minute)); err != nil {
			t.Fatalf("MarkIndexed %s: %v", id, err)
		}
		if err := repo.Update(ctx, j); err != nil {
			t.Fatalf("Update %s: %v", id, err)
		}
	}

	recent, err := repo.RecentlyIndexed(ctx, 2)
	if err != nil {
		t.Fatalf("RecentlyIndexed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].DocumentID != "doc-j3" || recent[1].DocumentID != "doc-j2" {
		t.Errorf("wrong order: %+v", recent)
	}
	if !recent[0].IndexedAt.After(recent[1].IndexedAt) {
		t.Errorf("expected newest first: %s vs %s", recent[0].IndexedAt, recent[1].IndexedAt)
	}
}

func TestListFailed(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	j := testJob(t, "j1")
	_ = repo.Create(ctx, j)
	_ = j.BeginAttempt()
	failedAt := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	j.MarkFailed(errors.New("embedding provider error"), failedAt)
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("Update: %v", err)
	}

	failed, err := repo.ListFailed(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed job, got %d", len(failed))
	}
	f := failed[0]
	if f.JobID != "j1" || f.DocumentID != "doc-j1" || f.Attempts != 1 {
		t.Errorf("failed job mismatch: %+v", f)
	}
	if f.LastError != "embedding provider error" {
		t.Errorf("last error = %q", f.LastError)
	}
	if !f.FailedAt.Equal(failedAt) {
		t.Errorf("failed_at = %s, want %s", f.FailedAt, failedAt)
	}
}

func TestIndexedBefore_RespectsCutoff(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	old := testJob(t, "old")
	_ = repo.Create(ctx, old)
	_ = old.BeginAttempt()
	_ = old.MarkIndexed(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	_ = repo.Update(ctx, old)

	fresh := testJob(t, "fresh")
	_ = repo.Create(ctx, fresh)
	_ = fresh.BeginAttempt()
	_ = fresh.MarkIndexed(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))
	_ = repo.Update(ctx, fresh)

	cutoff := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	ids, err := repo.IndexedBefore(ctx, cutoff, 100)
	if err != nil {
		t.Fatalf("IndexedBefore: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("expected only the old job, got %v", ids)
	}
}

func TestDelete_RemovesAllMemberships(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	j := testJob(t, "j1")
	_ = repo.Create(ctx, j)
	_ = j.BeginAttempt()
	_ = j.MarkIndexed(time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC))
	_ = repo.Update(ctx, j)

	if err := repo.Delete(ctx, j); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := repo.Get(ctx, "j1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	for key, set := range ms.sets {
		if _, ok := set["j1"]; ok {
			t.Errorf("job still member of %s", key)
		}
	}
	for key, z := range ms.zsets {
		if _, ok := z["j1"]; ok {
			t.Errorf("job still member of %s", key)
		}
	}
}

func TestPendingForDocument_TracksUnfinishedJobs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	j1 := testJob(t, "j1")
	j2, err := domain.NewIndexJob("j2", "tenant-1", "doc-j1", time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewIndexJob: %v", err)
	}
	_ = repo.Create(ctx, j1)
	_ = repo.Create(ctx, j2)

	pending, err := repo.PendingForDocument(ctx, "tenant-1", "doc-j1")
	if err != nil {
		t.Fatalf("PendingForDocument: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("expected 2 pending jobs, got %v", pending)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.err = errors.New("connection refused")

	if err := repo.Create(context.Background(), testJob(t, "j1")); err == nil {
		t.Error("expected error from failing store")
	}
	if _, err := repo.CountByStatus(context.Background(), domain.JobQueued); err == nil {
		t.Error("expected error from failing store")
	}
}
