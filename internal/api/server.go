// Package api exposes the daemon over HTTP: job inspection, non-blocking
// triggers, run history, and a live event stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/asubexec/internal/events"
	"github.com/mattjoyce/asubexec/internal/job"
	"github.com/mattjoyce/asubexec/internal/runlog"
)

// JobDirectory is the part of the job manager the API needs.
type JobDirectory interface {
	List() []*job.Job
	Get(name string) (*job.Job, bool)
	Trigger(name string) error
}

// RunHistory serves recorded runs.
type RunHistory interface {
	Recent(ctx context.Context, job string, limit int) ([]runlog.Run, error)
}

// EventSource feeds the SSE endpoint.
type EventSource interface {
	Subscribe() (<-chan events.Event, func())
	SnapshotSince(lastID int64) []events.Event
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the bearer token clients must present. Empty disables auth.
	APIKey string
}

// Server represents the HTTP API server.
type Server struct {
	config    Config
	jobs      JobDirectory
	history   RunHistory
	events    EventSource
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, jobs JobDirectory, history RunHistory, eventSource EventSource, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		jobs:      jobs,
		history:   history,
		events:    eventSource,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // SSE clients hold their response open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Routes configures the HTTP router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/v1/jobs", s.handleListJobs)
		r.Get("/v1/jobs/{name}", s.handleGetJob)
		r.Post("/v1/jobs/{name}/trigger", s.handleTrigger)
		r.Get("/v1/jobs/{name}/runs", s.handleJobRuns)
		r.Get("/v1/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
