package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/config"
	dbRedis "github.com/lexibase/lexibase/internal/db/redis"
	logpkg "github.com/lexibase/lexibase/internal/logger"
	"github.com/lexibase/lexibase/internal/metrics"
	"github.com/lexibase/lexibase/internal/queue"
	documentrepo "github.com/lexibase/lexibase/internal/repository/document"
	"github.com/lexibase/lexibase/internal/repository/embcache"
	indexstaterepo "github.com/lexibase/lexibase/internal/repository/indexstate"
	jobrepo "github.com/lexibase/lexibase/internal/repository/job"
	chiTransport "github.com/lexibase/lexibase/internal/transport/chi"
	"github.com/lexibase/lexibase/internal/transport/cohere"
	openaiEmb "github.com/lexibase/lexibase/internal/transport/openai"
	healthuc "github.com/lexibase/lexibase/internal/usecase/health"
	indexinguc "github.com/lexibase/lexibase/internal/usecase/indexing"
	"github.com/lexibase/lexibase/internal/usecase/retention"
	searchuc "github.com/lexibase/lexibase/internal/usecase/search"
	statusuc "github.com/lexibase/lexibase/internal/usecase/status"
	"github.com/lexibase/lexibase/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lexibase API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Both valkey and redis speak RESP; rueidis covers the two drivers.
	switch cfg.Database.Driver {
	case "valkey", "redis":
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	// Provider clients
	baseEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:              cfg.Embedding.APIKey,
		BaseURL:             cfg.Embedding.BaseURL,
		Model:               cfg.Embedding.Model,
		Dimensions:          cfg.Embedding.Dimensions,
		Provider:            cfg.Embedding.Provider,
		DocumentInstruction: cfg.Embedding.DocumentInstruction,
		QueryInstruction:    cfg.Embedding.QueryInstruction,
		RequestsPerSecond:   cfg.Embedding.RequestsPerSecond,
		Logger:              logger,
	})
	embedder := embcache.New(baseEmbedder, store, metrics.EmbeddingCacheTotal, logger)

	reranker := cohere.NewReranker(&cohere.Config{
		APIKey:            cfg.Rerank.APIKey,
		BaseURL:           cfg.Rerank.BaseURL,
		Model:             cfg.Rerank.Model,
		Provider:          "cohere",
		RequestsPerSecond: cfg.Rerank.RequestsPerSecond,
		Logger:            logger,
	})
	logger.Info("Provider clients created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("rerank_model", cfg.Rerank.Model),
	)

	// Repositories
	jobRepo := jobrepo.New(store)
	docRepo := documentrepo.New(store)
	stateRepo := indexstaterepo.New(store, cfg.Embedding.Dimensions, indexstaterepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := stateRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	// Job queue: created at startup, consumer group bound to this process
	q := queue.New(store, queue.ChannelIndexDocument, cfg.Queue.Consumer, logger,
		queue.WithLease(time.Duration(cfg.Queue.LeaseSec)*time.Second))
	if err := q.Init(ctx); err != nil {
		logger.Fatal("Failed to init job queue", zap.Error(err))
	}

	// Use case services
	indexingSvc := indexinguc.NewService(jobRepo, q, docRepo, stateRepo, logger)
	searchSvc := searchuc.New(stateRepo, docRepo, embedder, reranker, logger,
		searchuc.WithDefaults(cfg.Search.DefaultK, cfg.Search.DefaultRecallK))
	statusSvc := statusuc.NewService(jobRepo, q)
	healthSvc := healthuc.New(store, baseEmbedder, reranker)

	// Background loops: worker pool and retention sweeper
	worker := indexinguc.NewWorker(jobRepo, q, docRepo, stateRepo, embedder, indexinguc.WorkerConfig{
		Workers:     cfg.Worker.Workers,
		MaxAttempts: cfg.Worker.MaxAttempts,
		MaxInFlight: cfg.Worker.MaxInFlight,
		BackoffBase: time.Duration(cfg.Worker.BackoffBaseSec) * time.Second,
		BackoffCap:  time.Duration(cfg.Worker.BackoffCapSec) * time.Second,
	}, logger)
	sweeper := retention.NewSweeper(jobRepo, retention.Config{
		Window:    time.Duration(cfg.Retention.WindowHours) * time.Hour,
		Interval:  time.Duration(cfg.Retention.IntervalMin) * time.Minute,
		BatchSize: cfg.Retention.BatchSize,
	}, logger)

	bgCtx, stopBackground := context.WithCancel(ctx)
	var bg sync.WaitGroup
	bg.Add(2)
	go func() {
		defer bg.Done()
		if err := worker.Run(bgCtx); err != nil {
			logger.Error("Worker pool stopped", zap.Error(err))
		}
	}()
	go func() {
		defer bg.Done()
		if err := sweeper.Run(bgCtx); err != nil {
			logger.Error("Retention sweeper stopped", zap.Error(err))
		}
	}()

	// HTTP server
	server := chiTransport.NewServer(indexingSvc, searchSvc, statusSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Stop the worker and sweeper after the HTTP server so in-flight writes
	// still reach the queue; leased jobs not yet acked will be redelivered.
	stopBackground()
	bg.Wait()

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
