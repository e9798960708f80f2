package domain

import "time"

// DocumentIndexState is the durable, queryable projection of one document.
// There is at most one row per (tenant, document); it is replaced on reindex,
// never appended. The last completed job wins by IndexedAt.
type DocumentIndexState struct {
	TenantID    string
	DocumentID  string
	Vector      []float32
	IndexedAt   time.Time
	SourceJobID string
}

// Fresher reports whether this state was written after other. Used to keep
// last-writer-wins semantics across out-of-order job completions.
func (s DocumentIndexState) Fresher(other DocumentIndexState) bool {
	return s.IndexedAt.After(other.IndexedAt)
}
