// Package api exposes the HTTP interface for the jobradar service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/domain"
	"github.com/openhire/jobradar/internal/store"
)

// Pipeline is the run-control capability the HTTP layer needs.
type Pipeline interface {
	// Start creates a run and executes it in the background.
	Start(ctx context.Context, stage domain.Stage, params domain.StageParams) (domain.PipelineRun, error)
	// Cancel flags a running run for cooperative cancellation.
	Cancel(ctx context.Context, id uuid.UUID) error
}

// Server wires HTTP handlers to the pipeline and stores.
type Server struct {
	router    chi.Router
	pipeline  Pipeline
	runs      store.RunRepository
	companies store.CompanyRepository
	jobs      store.JobRepository
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	pipeline Pipeline,
	runs store.RunRepository,
	companies store.CompanyRepository,
	jobs store.JobRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		pipeline:  pipeline,
		runs:      runs,
		companies: companies,
		jobs:      jobs,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/", s.getRun)
				r.Post("/cancel", s.cancelRun)
			})
		})
		r.Post("/stages/{stage}", s.startStage)
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", s.listCompanies)
			r.Get("/{company_id}", s.getCompany)
		})
		r.Get("/jobs", s.listJobs)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The run store is the dependency every stage needs; probe it.
	if _, err := s.runs.List(r.Context(), nil, 1, 0); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}
