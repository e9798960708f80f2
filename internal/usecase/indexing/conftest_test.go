package indexing

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/queue"
)

// fakeLedger is an in-memory job ledger.
type fakeLedger struct {
	jobs map[string]domain.IndexJob
	err  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{jobs: make(map[string]domain.IndexJob)}
}

func (f *fakeLedger) Create(_ context.Context, j domain.IndexJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs[j.JobID] = j
	return nil
}

func (f *fakeLedger) Get(_ context.Context, jobID string) (domain.IndexJob, error) {
	if f.err != nil {
		return domain.IndexJob{}, f.err
	}
	j, ok := f.jobs[jobID]
	if !ok {
		return domain.IndexJob{}, domain.ErrNotFound
	}
	return j, nil
}

func (f *fakeLedger) Update(_ context.Context, j domain.IndexJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs[j.JobID] = j
	return nil
}

func (f *fakeLedger) Delete(_ context.Context, j domain.IndexJob) error {
	if f.err != nil {
		return f.err
	}
	delete(f.jobs, j.JobID)
	return nil
}

func (f *fakeLedger) PendingForDocument(_ context.Context, tenantID, documentID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var ids []string
	for id, j := range f.jobs {
		if j.TenantID == tenantID && j.DocumentID == documentID && j.Status != domain.JobIndexed {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// fakeQueue records queue interactions; Dequeue is not used by these tests.
type fakeQueue struct {
	enqueued []queue.Message
	acks     int
	nacks    []time.Duration
	err      error
}

func (f *fakeQueue) Enqueue(_ context.Context, msg queue.Message) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, msg)
	return nil
}

func (f *fakeQueue) Dequeue(ctx context.Context) (queue.Message, queue.Lease, error) {
	if f.err != nil {
		return queue.Message{}, queue.Lease{}, f.err
	}
	<-ctx.Done()
	return queue.Message{}, queue.Lease{}, ctx.Err()
}

func (f *fakeQueue) Ack(_ context.Context, _ queue.Lease) error {
	if f.err != nil {
		return f.err
	}
	f.acks++
	return nil
}

func (f *fakeQueue) Nack(_ context.Context, _ queue.Lease, delay time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.nacks = append(f.nacks, delay)
	return nil
}

func (f *fakeQueue) PromoteDue(_ context.Context, _ time.Time) (int, error) {
	return 0, f.err
}

// fakeDocs is an in-memory document content store.
type fakeDocs struct {
	docs map[string]string // "tenant/doc" -> content
	err  error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]string)}
}

func (f *fakeDocs) key(tenantID, documentID string) string { return tenantID + "/" + documentID }

func (f *fakeDocs) Put(_ context.Context, tenantID, documentID, content string, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.docs[f.key(tenantID, documentID)] = content
	return nil
}

func (f *fakeDocs) Get(_ context.Context, tenantID, documentID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	content, ok := f.docs[f.key(tenantID, documentID)]
	if !ok {
		return "", domain.ErrContentUnavailable
	}
	return content, nil
}

func (f *fakeDocs) Exists(_ context.Context, tenantID, documentID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.docs[f.key(tenantID, documentID)]
	return ok, nil
}

func (f *fakeDocs) Delete(_ context.Context, tenantID, documentID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.docs, f.key(tenantID, documentID))
	return nil
}

// fakeState records index-state writes.
type fakeState struct {
	upserts []domain.DocumentIndexState
	deletes []string
	err     error
}

func (f *fakeState) Upsert(_ context.Context, s domain.DocumentIndexState) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, s)
	return nil
}

func (f *fakeState) Delete(_ context.Context, tenantID, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.deletes = append(f.deletes, tenantID+"/"+documentID)
	return nil
}

// scriptedEmbedder returns queued errors first, then succeeds.
type scriptedEmbedder struct {
	failures []error
	vector   []float32
	calls    int
}

func (s *scriptedEmbedder) Embed(_ context.Context, texts []string, _ domain.InputType) (domain.EmbeddingResult, error) {
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return domain.EmbeddingResult{}, err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = s.vector
	}
	return domain.EmbeddingResult{Vectors: vectors, TotalTokens: 5 * len(texts)}, nil
}

type workerFixture struct {
	worker *Worker
	ledger *fakeLedger
	queue  *fakeQueue
	docs   *fakeDocs
	state  *fakeState
	embed  *scriptedEmbedder
}

func newWorkerFixture(t *testing.T, cfg WorkerConfig) *workerFixture {
	t.Helper()
	ledger := newFakeLedger()
	q := &fakeQueue{}
	docs := newFakeDocs()
	state := &fakeState{}
	embed := &scriptedEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}

	return &workerFixture{
		worker: NewWorker(ledger, q, docs, state, embed, cfg, zap.NewNop()),
		ledger: ledger,
		queue:  q,
		docs:   docs,
		state:  state,
		embed:  embed,
	}
}

// leaseFor stands in for the lease a real dequeue would hand out.
func leaseFor(_ queue.Message) queue.Lease { return queue.Lease{} }

// seedJob stores content and a queued ledger row, returning the queue message.
func (fx *workerFixture) seedJob(t *testing.T, jobID string) queue.Message {
	t.Helper()
	ctx := context.Background()
	if err := fx.docs.Put(ctx, "tenant-1", "doc-1", "some content", time.Now()); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	j, err := domain.NewIndexJob(jobID, "tenant-1", "doc-1", time.Now())
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if err := fx.ledger.Create(ctx, j); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	return queue.Message{JobID: jobID, TenantID: "tenant-1", DocumentID: "doc-1"}
}
