package job

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lexibase/lexibase/internal/domain"
)

// jobToFields converts a ledger entry into a flat map[string]string for HSET.
func jobToFields(j domain.IndexJob) map[string]string {
	m := map[string]string{
		"job":        j.JobID,
		"tenant":     j.TenantID,
		"doc":        j.DocumentID,
		"status":     string(j.Status),
		"attempts":   strconv.Itoa(j.Attempts),
		"created_at": j.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if j.LastError != "" {
		m["last_error"] = j.LastError
	}
	if !j.CompletedAt.IsZero() {
		m["completed_at"] = j.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

// jobFromFields converts a flat hash map back into a ledger entry.
func jobFromFields(m map[string]string) (domain.IndexJob, error) {
	j := domain.IndexJob{
		JobID:      m["job"],
		TenantID:   m["tenant"],
		DocumentID: m["doc"],
		Status:     domain.JobStatus(m["status"]),
		LastError:  m["last_error"],
	}
	if j.JobID == "" {
		return domain.IndexJob{}, fmt.Errorf("job hash missing job id")
	}

	if v := m["attempts"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.IndexJob{}, fmt.Errorf("parse attempts: %w", err)
		}
		j.Attempts = n
	}

	if v := m["created_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return domain.IndexJob{}, fmt.Errorf("parse created_at: %w", err)
		}
		j.CreatedAt = t
	}

	if v := m["completed_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return domain.IndexJob{}, fmt.Errorf("parse completed_at: %w", err)
		}
		j.CompletedAt = t
	}

	return j, nil
}
