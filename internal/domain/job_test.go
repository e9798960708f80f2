package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestJob(t *testing.T) IndexJob {
	t.Helper()
	j, err := NewIndexJob("job-1", "tenant-1", "doc-42", time.Now())
	if err != nil {
		t.Fatalf("NewIndexJob: %v", err)
	}
	return j
}

func TestNewIndexJob_Validation(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name          string
		jobID, tenant string
		document      string
		wantErr       bool
	}{
		{"valid", "j1", "t1", "d1", false},
		{"missing job id", "", "t1", "d1", true},
		{"missing tenant", "j1", "", "d1", true},
		{"missing document", "j1", "t1", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j, err := NewIndexJob(tc.jobID, tc.tenant, tc.document, now)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if j.Status != JobQueued {
				t.Errorf("expected queued, got %s", j.Status)
			}
			if j.Attempts != 0 {
				t.Errorf("expected 0 attempts, got %d", j.Attempts)
			}
		})
	}
}

func TestIndexJob_HappyTransition(t *testing.T) {
	j := newTestJob(t)

	if err := j.BeginAttempt(); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if j.Status != JobProcessing || j.Attempts != 1 {
		t.Fatalf("expected processing/1, got %s/%d", j.Status, j.Attempts)
	}

	done := time.Now()
	if err := j.MarkIndexed(done); err != nil {
		t.Fatalf("MarkIndexed: %v", err)
	}
	if j.Status != JobIndexed {
		t.Errorf("expected indexed, got %s", j.Status)
	}
	if !j.CompletedAt.Equal(done) {
		t.Errorf("expected completedAt %v, got %v", done, j.CompletedAt)
	}
	if j.LastError != "" {
		t.Errorf("lastError should be cleared, got %q", j.LastError)
	}
}

func TestIndexJob_MarkIndexedFromQueued_Rejected(t *testing.T) {
	j := newTestJob(t)
	if err := j.MarkIndexed(time.Now()); err == nil {
		t.Fatal("expected error marking a queued job indexed")
	}
}

func TestIndexJob_FailAndRequeue(t *testing.T) {
	j := newTestJob(t)
	if err := j.BeginAttempt(); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	j.MarkFailed(errors.New("embed timeout"), time.Now())
	if j.Status != JobFailed {
		t.Fatalf("expected failed, got %s", j.Status)
	}
	if j.LastError != "embed timeout" {
		t.Errorf("expected lastError recorded, got %q", j.LastError)
	}

	if err := j.Requeue(); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if j.Status != JobQueued {
		t.Errorf("expected queued after requeue, got %s", j.Status)
	}
	if !j.CompletedAt.IsZero() {
		t.Errorf("completedAt should reset on requeue, got %v", j.CompletedAt)
	}
	if j.Attempts != 1 {
		t.Errorf("requeue must not touch attempts, got %d", j.Attempts)
	}
}

func TestIndexJob_RequeueFromIndexed_Rejected(t *testing.T) {
	j := newTestJob(t)
	_ = j.BeginAttempt()
	_ = j.MarkIndexed(time.Now())
	if err := j.Requeue(); err == nil {
		t.Fatal("indexed jobs are immutable, requeue must fail")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{ErrProviderUnavailable, true},
		{ErrRateLimited, true},
		{ErrContentUnavailable, true},
		{ErrQueueUnavailable, true},
		{ErrDimensionMismatch, false},
		{NewDimensionMismatch(1024, 7), false},
		{errors.New("something else"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
