package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/job-aggregator/internal/core"
	"github.com/baxromumarov/job-aggregator/internal/logging"
	"github.com/baxromumarov/job-aggregator/internal/store"
)

// VacancyReader is the read side of the vacancy store.
type VacancyReader interface {
	ListVacancies(ctx context.Context, q store.Query) ([]store.Vacancy, int, error)
	ListBatches(ctx context.Context, limit int) ([]store.BatchSummary, error)
}

// RunController starts runs and reports on them.
type RunController interface {
	Trigger(ctx context.Context) (string, error)
	LastReport() (core.RunReport, bool)
	State() core.State
}

type Server struct {
	router *chi.Mux
	reader VacancyReader
	runs   RunController
	log    *logging.Logger
	// base outlives requests; triggered runs are bound to it.
	base context.Context
}

func NewServer(base context.Context, reader VacancyReader, runs RunController, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		router: chi.NewRouter(),
		reader: reader,
		runs:   runs,
		log:    log,
		base:   base,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/vacancies", s.handleListVacancies)
	s.router.Get("/batches", s.handleListBatches)
	s.router.Get("/stats", s.handleStats)

	s.router.Get("/runs/latest", s.handleLatestRun)
	s.router.Post("/runs", s.handleTriggerRun)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// requestLogger writes one line per request through the service logger.
func requestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"latency", time.Since(start).String(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
