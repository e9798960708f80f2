package job

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/lexibase/lexibase/internal/db"
	"github.com/lexibase/lexibase/internal/domain"
)

// memStore is an in-memory stand-in for the hash/set/zset surface the ledger
// uses. Stateful on purpose: the ledger's reads are only meaningful against
// its own writes.
type memStore struct {
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	zsets  map[string]map[string]float64
	err    error
}

func newMemStore() *memStore {
	return &memStore{
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
		zsets:  make(map[string]map[string]float64),
	}
}

func (m *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if m.err != nil {
		return m.err
	}
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]map[string]string, len(keys))
	for i, key := range keys {
		h, _ := m.HGetAll(ctx, key)
		out[i] = h
	}
	return out, nil
}

func (m *memStore) Del(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.hashes, key)
	return nil
}

func (m *memStore) SAdd(_ context.Context, key string, members ...string) error {
	if m.err != nil {
		return m.err
	}
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = struct{}{}
	}
	return nil
}

func (m *memStore) SRem(_ context.Context, key string, members ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, mem := range members {
		delete(m.sets[key], mem)
	}
	return nil
}

func (m *memStore) SCard(_ context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.sets[key])), nil
}

func (m *memStore) SMembers(_ context.Context, key string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]string, 0, len(m.sets[key]))
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ZAdd(_ context.Context, key string, members ...db.ScoredMember) error {
	if m.err != nil {
		return m.err
	}
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	for _, mem := range members {
		z[mem.Member] = mem.Score
	}
	return nil
}

func (m *memStore) ZRem(_ context.Context, key string, members ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, mem := range members {
		delete(m.zsets[key], mem)
	}
	return nil
}

func (m *memStore) ZRangeByScore(_ context.Context, key string, min, max float64, limit int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	scored := m.sortedByScore(key, false)
	out := make([]string, 0)
	for _, sm := range scored {
		if sm.Score < min || sm.Score > max {
			continue
		}
		out = append(out, sm.Member)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) ZRevRangeWithScores(_ context.Context, key string, count int) ([]db.ScoredMember, error) {
	if m.err != nil {
		return nil, m.err
	}
	scored := m.sortedByScore(key, true)
	if count > 0 && len(scored) > count {
		scored = scored[:count]
	}
	return scored, nil
}

func (m *memStore) sortedByScore(key string, desc bool) []db.ScoredMember {
	scored := make([]db.ScoredMember, 0, len(m.zsets[key]))
	for mem, score := range m.zsets[key] {
		scored = append(scored, db.ScoredMember{Member: mem, Score: score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if desc {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Score < scored[j].Score
	})
	return scored
}

func newTestRepo(t *testing.T) (*Repo, *memStore) {
	t.Helper()
	ms := newMemStore()
	return New(ms), ms
}

func testJob(t *testing.T, id string) domain.IndexJob {
	t.Helper()
	j, err := domain.NewIndexJob(id, "tenant-1", "doc-"+id, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewIndexJob: %v", err)
	}
	return j
}
