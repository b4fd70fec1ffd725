// Package api exposes the HTTP interface for the search-core service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-search/search-core/internal/admission"
	"github.com/atlas-search/search-core/internal/config"
	"github.com/atlas-search/search-core/internal/search"
	"github.com/atlas-search/search-core/internal/telemetry"
)

// Server wires HTTP handlers to the admission controller and stores.
type Server struct {
	router     chi.Router
	controller *admission.Controller
	jobStore   search.JobStore
	index      search.Index
	cfg        config.Config
	version    string
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	controller *admission.Controller,
	jobStore search.JobStore,
	index search.Index,
	cfg config.Config,
	version string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		controller: controller,
		jobStore:   jobStore,
		index:      index,
		cfg:        cfg,
		version:    version,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(time.Duration(cfg.Server.TimeoutSeconds) * time.Second))
	r.Use(telemetry.Middleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.searchPages)
		r.With(s.bearerAuth).Post("/crawl", s.submitCrawl)
		r.Get("/jobs/{job_id}", s.getJobStatus)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

type searchMeta struct {
	TotalHits       int     `json:"total_hits"`
	NextCursor      string  `json:"next_cursor,omitempty"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

type searchResponse struct {
	Data []search.ScoredDocument `json:"data"`
	Meta searchMeta              `json:"meta"`
}

func (s *Server) searchPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if len([]rune(q)) < 2 {
		telemetry.ObserveSearchQuery("rejected")
		writeError(w, http.StatusBadRequest, "query too short")
		return
	}

	limit := s.cfg.Search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > s.cfg.Search.MaxLimit {
		limit = s.cfg.Search.MaxLimit
	}
	cursor := r.URL.Query().Get("cursor")

	start := time.Now()
	result, err := s.index.Query(r.Context(), q, limit, cursor)
	if err != nil {
		telemetry.ObserveSearchQuery("error")
		s.writeClassified(w, err)
		return
	}
	telemetry.ObserveSearchQuery("ok")

	hits := result.Hits
	if hits == nil {
		hits = []search.ScoredDocument{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Data: hits,
		Meta: searchMeta{
			TotalHits:       result.TotalHits,
			NextCursor:      result.NextCursor,
			ExecutionTimeMs: float64(time.Since(start).Microseconds()) / 1000.0,
		},
	})
}

type crawlRequest struct {
	URL   string `json:"url"`
	Depth *int   `json:"depth"`
}

type crawlResponse struct {
	JobID               string    `json:"job_id"`
	Status              string    `json:"status"`
	Priority            string    `json:"priority"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
	QueuePosition       int       `json:"queue_position"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	depth := 1
	if req.Depth != nil {
		depth = *req.Depth
	}

	ticket, err := s.controller.Submit(r.Context(), req.URL, depth)
	if err != nil {
		s.writeClassified(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, crawlResponse{
		JobID:               ticket.JobID,
		Status:              string(ticket.Status),
		Priority:            string(ticket.Priority),
		EstimatedCompletion: ticket.EstimatedCompletion,
		QueuePosition:       ticket.QueuePosition,
	})
}

type jobStatusResponse struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeClassified(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	})
}

// writeClassified maps the error taxonomy to stable status codes. Nothing
// reaches the client unclassified.
func (s *Server) writeClassified(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrForbiddenNetwork),
		errors.Is(err, search.ErrResolutionFailure),
		errors.Is(err, search.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, search.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, search.ErrQueueUnavailable):
		writeError(w, http.StatusServiceUnavailable, "ingestion queue unavailable, retry later")
	default:
		s.logger.Error("unclassified handler error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// bearerAuth enforces "scheme present and well-formed" on the write path.
// Validating the token's signature and claims is an external collaborator's
// responsibility.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "invalid token format")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
