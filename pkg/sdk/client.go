package lexibase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexibase/lexibase/internal/db"
	dbRedis "github.com/lexibase/lexibase/internal/db/redis"
	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/queue"
	documentrepo "github.com/lexibase/lexibase/internal/repository/document"
	indexstaterepo "github.com/lexibase/lexibase/internal/repository/indexstate"
	jobrepo "github.com/lexibase/lexibase/internal/repository/job"
	healthuc "github.com/lexibase/lexibase/internal/usecase/health"
	indexinguc "github.com/lexibase/lexibase/internal/usecase/indexing"
	searchuc "github.com/lexibase/lexibase/internal/usecase/search"
	statusuc "github.com/lexibase/lexibase/internal/usecase/status"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces so tests can substitute the wired services.
type indexingUseCase interface {
	IndexDocument(ctx context.Context, tenantID, documentID, content string) (string, error)
	Reindex(ctx context.Context, tenantID, documentID string) (string, error)
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
}

type searchUseCase interface {
	Search(ctx context.Context, tenantID, query string, k, recallK int) ([]domain.SearchResult, error)
}

type statusUseCase interface {
	Snapshot(ctx context.Context, includeRecent bool) (domain.StatusSnapshot, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the lexibase SDK entry point.
type Client struct {
	store    db.Store
	indexing indexingUseCase
	search   searchUseCase
	status   statusUseCase
	health   healthUseCase
	worker   *indexinguc.Worker
}

// New creates a lexibase Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	cfg.applyDefaults()

	if len(cfg.addrs) == 0 {
		return nil, errors.New("lexibase: database address required (use WithValkey or WithRedis)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("lexibase: embedder required (use WithEmbedder)")
	}
	if cfg.vectorDim <= 0 {
		return nil, errors.New("lexibase: embedder dimensions must be positive")
	}
	if cfg.reranker == nil {
		return nil, errors.New("lexibase: reranker required (use WithReranker)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("lexibase: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("lexibase: database not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	jobRepo := jobrepo.New(store)
	docRepo := documentrepo.New(store)
	stateRepo := indexstaterepo.New(store, cfg.vectorDim, indexstaterepo.HNSWConfig{
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
	})
	if err := stateRepo.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("lexibase: ensure vector index: %w", err)
	}

	q := queue.New(store, queue.ChannelIndexDocument, cfg.consumer, cfg.logger)
	if err := q.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("lexibase: init job queue: %w", err)
	}

	worker := indexinguc.NewWorker(jobRepo, q, docRepo, stateRepo, cfg.embedder, indexinguc.WorkerConfig{
		Workers:     cfg.workers,
		MaxAttempts: cfg.maxAttempts,
	}, cfg.logger)

	return &Client{
		store:    store,
		indexing: indexinguc.NewService(jobRepo, q, docRepo, stateRepo, cfg.logger),
		search:   searchuc.New(stateRepo, docRepo, cfg.embedder, cfg.reranker, cfg.logger),
		status:   statusuc.NewService(jobRepo, q),
		health:   healthuc.New(store, asChecker(cfg.embedder), asChecker(cfg.reranker)),
		worker:   worker,
	}, nil
}

// RunWorker runs the indexing worker pool until ctx is cancelled. Without at
// least one running worker (here or in another process on the same database)
// enqueued documents are never indexed.
func (c *Client) RunWorker(ctx context.Context) error {
	return c.worker.Run(ctx)
}

// Close releases the database connection. In-flight jobs keep their leases
// and are redelivered to the next worker.
func (c *Client) Close() {
	c.store.Close()
}

// asChecker exposes a provider's health check when it has one.
func asChecker(v any) healthuc.ProviderChecker {
	if hc, ok := v.(healthuc.ProviderChecker); ok {
		return hc
	}
	return nil
}
