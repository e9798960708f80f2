package lexibase

import (
	"time"

	"github.com/lexibase/lexibase/internal/domain"
)

// Embedder is the embedding provider contract the client expects.
type Embedder = domain.Embedder

// Reranker is the rerank provider contract the client expects.
type Reranker = domain.Reranker

// Result is one search hit.
type Result struct {
	DocumentID string
	Score      float64
}

// FailedJob is a terminally failed index job.
type FailedJob struct {
	JobID      string
	DocumentID string
	Attempts   int
	LastError  string
	FailedAt   time.Time
}

// IndexedDocument is a recently indexed document.
type IndexedDocument struct {
	DocumentID string
	IndexedAt  time.Time
}

// Status is the pipeline's operational view at a point in time.
type Status struct {
	QueueDepth      int
	InFlight        int
	FailedCount     int
	IndexedCount    int
	Failed          []FailedJob
	RecentlyIndexed []IndexedDocument
	GeneratedAt     time.Time
}
