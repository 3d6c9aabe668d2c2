package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/crawlersvc/internal/crawler"
	"github.com/JakeFAU/crawlersvc/internal/metrics"
	"github.com/JakeFAU/crawlersvc/internal/results"
)

// Submitter starts crawls in the background and returns the job ID.
type Submitter interface {
	Submit(url string) (string, error)
	SubmitBatch(urls []string) (string, error)
}

// DuplicateChecker reports whether a URL was crawled recently.
type DuplicateChecker interface {
	Check(ctx context.Context, url string) crawler.Verdict
}

// ResultLister pages through the stored results of a job.
type ResultLister interface {
	List(ctx context.Context, jobID string, page int) (results.Page, error)
}

// ReadinessFunc reports whether a dependency can serve traffic.
type ReadinessFunc func(ctx context.Context) error

// Server wires HTTP handlers to the dispatcher, ledger and result store.
type Server struct {
	router    chi.Router
	submitter Submitter
	ledger    DuplicateChecker
	results   ResultLister
	ready     []ReadinessFunc
	logger    *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithReadiness adds checks consulted by /readyz.
func WithReadiness(checks ...ReadinessFunc) Option {
	return func(s *Server) {
		s.ready = append(s.ready, checks...)
	}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	submitter Submitter,
	ledger DuplicateChecker,
	lister ResultLister,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		submitter: submitter,
		ledger:    ledger,
		results:   lister,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/submit_url", s.submitURL)
	r.Post("/submit", s.submitBatch)
	r.Get("/results/{job_id}", s.getResults)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, check := range s.ready {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

// writeError uses the {"detail": "..."} body existing clients parse.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
