// Package server provides the HTTP REST API for the thesis service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/scribenet/thesis-service/internal/database"
	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/observability"
	"github.com/scribenet/thesis-service/internal/pipeline"
	"github.com/scribenet/thesis-service/internal/repository"
	"github.com/scribenet/thesis-service/internal/writing"
)

// Runner executes the research pipeline for one thesis. It is satisfied by
// *pipeline.Driver.
type Runner interface {
	Run(ctx context.Context, thesisID uuid.UUID, progress pipeline.ProgressFunc) (*domain.ResearchResult, error)
}

// Drafter produces a thesis draft from the researched sources. It is
// satisfied by *writing.Pipeline.
type Drafter interface {
	Produce(ctx context.Context, thesis domain.ThesisRequest, sources []domain.Source) (*writing.Draft, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	MetricsPath     string
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      repository.RecordStore
	runner     Runner
	drafter    Drafter
	gate       *pipeline.Gate
	db         *database.DB
	metrics    *observability.Metrics
	validate   *validator.Validate
	logger     zerolog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]int
}

// NewServer creates a new HTTP server with all dependencies. db and metrics
// may be nil; health then reports only process liveness and no run metrics
// are recorded. drafter may be nil; the draft endpoint then returns 503.
func NewServer(
	cfg Config,
	store repository.RecordStore,
	runner Runner,
	drafter Drafter,
	gate *pipeline.Gate,
	db *database.DB,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Server {
	if gate == nil {
		gate = pipeline.NewGate(pipeline.DefaultMaxConcurrentRuns)
	}

	s := &Server{
		store:    store,
		runner:   runner,
		drafter:  drafter,
		gate:     gate,
		db:       db,
		metrics:  metrics,
		validate: validator.New(),
		logger:   logger.With().Str("component", "http-server").Logger(),
		inFlight: make(map[uuid.UUID]int),
	}

	s.router = s.buildRouter(cfg)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter(cfg Config) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(s.requestLogger)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/api/v1/theses", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/", s.createThesis)
		r.Post("/{thesisID}/research", s.startResearch)
		r.Get("/{thesisID}/research", s.getResearchStatus)
		r.Post("/{thesisID}/draft", s.draftThesis)
	})

	return r
}

// Handler returns the underlying router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including database connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		health := s.db.Health(r.Context())
		if health.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "not_ready",
				"database": health.Status,
				"error":    health.Error,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
