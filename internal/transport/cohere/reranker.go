// Package cohere implements the rerank provider on the Cohere-compatible
// rerank API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lexibase/lexibase/internal/domain"
	"github.com/lexibase/lexibase/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Reranker is a rerank provider using the Cohere-compatible API.
type Reranker struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	provider   string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Config holds the rerank provider settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Provider          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// NewReranker creates a Cohere-compatible rerank provider.
func NewReranker(cfg *Config) *Reranker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Reranker{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		provider:   cfg.Provider,
		limiter:    limiter,
		logger:     cfg.Logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Rerank implements domain.Reranker. The returned candidates refer back into
// the input slice by index, best first.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []string) ([]domain.RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := r.httpClient.Do(req)

	duration := time.Since(start)

	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues(r.provider, r.model, "error").Inc()
		return nil, fmt.Errorf("rerank request failed: %w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RerankRequestsTotal.WithLabelValues(r.provider, r.model, "error").Inc()
		return nil, r.statusError(resp)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.RerankRequestsTotal.WithLabelValues(r.provider, r.model, "error").Inc()
		return nil, fmt.Errorf("decode rerank response: %w: %w", domain.ErrProviderUnavailable, err)
	}

	metrics.RerankRequestsTotal.WithLabelValues(r.provider, r.model, "success").Inc()
	metrics.RerankRequestDuration.WithLabelValues(r.provider, r.model).Observe(duration.Seconds())

	ranked := make([]domain.RankedCandidate, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank returned out-of-range index %d: %w", res.Index, domain.ErrProviderUnavailable)
		}
		ranked = append(ranked, domain.RankedCandidate{Index: res.Index, Score: res.RelevanceScore})
	}
	return ranked, nil
}

// HealthCheck verifies API availability via the models listing endpoint.
func (r *Reranker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("rerank health check: status %d", resp.StatusCode)
	}
	return nil
}

func (r *Reranker) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := string(raw)

	var parsed errorResponse
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		msg = parsed.Message
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			r.logger.Warn("Rerank provider rate limited",
				zap.String("retry_after", ra))
		}
		return fmt.Errorf("rerank API error %d: %s: %w", resp.StatusCode, msg, domain.ErrRateLimited)
	}
	return fmt.Errorf("rerank API error %d: %s: %w", resp.StatusCode, msg, domain.ErrProviderUnavailable)
}
