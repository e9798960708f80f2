package lexibase

import (
	"os"

	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/domain"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	embedder  domain.Embedder
	reranker  Reranker
	vectorDim int

	hnswM           int
	hnswEFConstruct int

	consumer    string
	workers     int
	maxAttempts int

	logger *zap.Logger
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance.
// Valkey and Redis share a wire protocol; the two options are equivalent.
func WithRedis(addr, password string) Option {
	return WithValkey(addr, password)
}

// WithEmbedder sets the embedding provider and its fixed output dimension.
// Required: every write and query goes through it.
func WithEmbedder(e domain.Embedder, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.vectorDim = dimensions
	})
}

// WithReranker sets the rerank provider. Required for Search.
func WithReranker(r Reranker) Option {
	return optionFunc(func(c *clientConfig) {
		c.reranker = r
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=32, EFConstruct=400.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithConsumer names this process within the queue consumer group.
// Defaults to the hostname.
func WithConsumer(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.consumer = name
	})
}

// WithWorkers sets the worker pool size and attempts ceiling for RunWorker.
// Defaults: 1 worker, 5 attempts.
func WithWorkers(workers, maxAttempts int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = workers
		c.maxAttempts = maxAttempts
	})
}

// WithLogger enables structured logging for client operations.
// Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

func (c *clientConfig) applyDefaults() {
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.hnswM <= 0 {
		c.hnswM = 32
	}
	if c.hnswEFConstruct <= 0 {
		c.hnswEFConstruct = 400
	}
	if c.consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "lexibase"
		}
		c.consumer = host
	}
	if c.workers <= 0 {
		c.workers = 1
	}
}
