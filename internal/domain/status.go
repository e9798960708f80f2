package domain

import "time"

// FailedJob is a terminally failed job surfaced for operator triage.
type FailedJob struct {
	JobID      string
	DocumentID string
	Attempts   int
	LastError  string
	FailedAt   time.Time
}

// IndexedDocument is a recently indexed document in a status snapshot.
type IndexedDocument struct {
	DocumentID string
	IndexedAt  time.Time
}

// StatusSnapshot is the on-demand operational health view of a tenant's
// pipeline. Derived from the job ledger and index state, never persisted.
type StatusSnapshot struct {
	QueueDepth      int
	InFlight        int
	FailedCount     int
	IndexedCount    int
	Failed          []FailedJob
	RecentlyIndexed []IndexedDocument
	GeneratedAt     time.Time
}
