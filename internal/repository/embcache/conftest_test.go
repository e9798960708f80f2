package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/domain"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, nil
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

// mockEmbedder is the inner embedder behind the cache.
type mockEmbedder struct {
	vector     []float32
	tokens     int
	err        error
	batchCalls int
	queryCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string, _ domain.InputType) (domain.EmbeddingResult, error) {
	m.batchCalls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = m.vector
	}
	return domain.EmbeddingResult{
		Vectors:      vectors,
		PromptTokens: m.tokens * len(texts),
		TotalTokens:  m.tokens * len(texts),
	}, nil
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	m.queryCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(inner, ms, nil, zap.NewNop()), ms
}
