// Package chi exposes the HTTP API: document writes, semantic search, and
// the operational status endpoint.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lexibase/lexibase/internal/domain"
	healthuc "github.com/lexibase/lexibase/internal/usecase/health"
	indexinguc "github.com/lexibase/lexibase/internal/usecase/indexing"
	searchuc "github.com/lexibase/lexibase/internal/usecase/search"
	statusuc "github.com/lexibase/lexibase/internal/usecase/status"
)

// ErrorCode identifies an error class in the JSON error envelope.
type ErrorCode string

const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeNotFound            ErrorCode = "not_found"
	CodeRateLimited         ErrorCode = "rate_limited"
	CodeProviderUnavailable ErrorCode = "provider_unavailable"
	CodeQueueUnavailable    ErrorCode = "queue_unavailable"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the usecase services into HTTP handlers.
type Server struct {
	indexing      *indexinguc.Service
	search        *searchuc.Service
	status        *statusuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	indexing *indexinguc.Service,
	search *searchuc.Service,
	status *statusuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		indexing: indexing,
		search:   search,
		status:   status,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadGateway, CodeProviderUnavailable),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, CodeProviderUnavailable),
		sentinelHandler(domain.ErrQueueUnavailable, http.StatusServiceUnavailable, CodeQueueUnavailable),
	}
	return s
}

// Routes mounts all API handlers on the given router.
func (s *Server) Routes(r gochi.Router) {
	r.Post("/search", s.Search)
	r.Get("/indexing-status", s.IndexingStatus)
	r.Put("/tenants/{tenant}/documents/{id}", s.UpsertDocument)
	r.Post("/tenants/{tenant}/documents/{id}/reindex", s.ReindexDocument)
	r.Delete("/tenants/{tenant}/documents/{id}", s.DeleteDocument)
	r.Get("/health", s.Health)
	r.Get("/metrics", s.Metrics)
}

// SearchRequest is the POST /search body.
type SearchRequest struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query"`
	K        int    `json:"k,omitempty"`
	RecallK  int    `json:"recall_k,omitempty"`
}

// SearchResultItem is one search hit.
type SearchResultItem struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
}

// SearchResponse is the POST /search reply.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "tenant_id is required")
		return
	}

	results, err := s.search.Search(r.Context(), req.TenantID, req.Query, req.K, req.RecallK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]SearchResultItem, len(results))
	for i, res := range results {
		items[i] = SearchResultItem{DocumentID: res.DocumentID, Score: res.Score}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: items})
}

// UpsertDocumentRequest is the PUT document body.
type UpsertDocumentRequest struct {
	Content string `json:"content"`
}

// EnqueueResponse reports the job scheduled for a document write.
type EnqueueResponse struct {
	JobID string `json:"job_id"`
}

// UpsertDocument handles PUT /tenants/{tenant}/documents/{id}.
func (s *Server) UpsertDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := gochi.URLParam(r, "tenant")
	documentID := gochi.URLParam(r, "id")

	var req UpsertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	jobID, err := s.indexing.IndexDocument(r.Context(), tenantID, documentID, req.Content)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueueResponse{JobID: jobID})
}

// ReindexDocument handles POST /tenants/{tenant}/documents/{id}/reindex.
func (s *Server) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := gochi.URLParam(r, "tenant")
	documentID := gochi.URLParam(r, "id")

	jobID, err := s.indexing.Reindex(r.Context(), tenantID, documentID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, EnqueueResponse{JobID: jobID})
}

// DeleteDocument handles DELETE /tenants/{tenant}/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID := gochi.URLParam(r, "tenant")
	documentID := gochi.URLParam(r, "id")

	if err := s.indexing.DeleteDocument(r.Context(), tenantID, documentID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FailedJobItem is a terminally failed job in the status reply.
type FailedJobItem struct {
	JobID      string    `json:"job_id"`
	DocumentID string    `json:"document_id"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	FailedAt   time.Time `json:"failed_at"`
}

// IndexedDocumentItem is a recently indexed document in the status reply.
type IndexedDocumentItem struct {
	DocumentID string    `json:"document_id"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// StatusResponse is the GET /indexing-status reply. RecentlyIndexed is only
// present when the request asked for it.
type StatusResponse struct {
	QueueDepth      int                   `json:"queue_depth"`
	InFlight        int                   `json:"in_flight"`
	FailedCount     int                   `json:"failed_count"`
	IndexedCount    int                   `json:"indexed_count"`
	Failed          []FailedJobItem       `json:"failed"`
	RecentlyIndexed []IndexedDocumentItem `json:"recently_indexed,omitempty"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

// IndexingStatus handles GET /indexing-status. The includeRecent query
// parameter opts into the recently indexed list; anything but a true value
// leaves it out.
func (s *Server) IndexingStatus(w http.ResponseWriter, r *http.Request) {
	includeRecent, _ := strconv.ParseBool(r.URL.Query().Get("includeRecent"))

	snap, err := s.status.Snapshot(r.Context(), includeRecent)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := StatusResponse{
		QueueDepth:      snap.QueueDepth,
		InFlight:        snap.InFlight,
		FailedCount:     snap.FailedCount,
		IndexedCount:    snap.IndexedCount,
		Failed:          make([]FailedJobItem, len(snap.Failed)),
		RecentlyIndexed: make([]IndexedDocumentItem, len(snap.RecentlyIndexed)),
		GeneratedAt:     snap.GeneratedAt,
	}
	for i, f := range snap.Failed {
		resp.Failed[i] = FailedJobItem{
			JobID:      f.JobID,
			DocumentID: f.DocumentID,
			Attempts:   f.Attempts,
			LastError:  f.LastError,
			FailedAt:   f.FailedAt,
		}
	}
	for i, d := range snap.RecentlyIndexed {
		resp.RecentlyIndexed[i] = IndexedDocumentItem{DocumentID: d.DocumentID, IndexedAt: d.IndexedAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthResponse is the GET /health reply.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("Unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrDimensionMismatch,
		domain.ErrProviderUnavailable,
		domain.ErrQueueUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
