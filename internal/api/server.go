// Package api wires the HTTP surface: ingest, result lookup, dashboard,
// history, and settings read/write, plus the CORS and logging middleware
// every response goes through. Adapted from the corpus's router + CORS
// middleware, with handlers following the "worker produces a value, then
// the response is written" shape described for this service.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/logsentinel/logsentinel/internal/apperrors"
	"github.com/logsentinel/logsentinel/internal/config"
	"github.com/logsentinel/logsentinel/internal/domain"
	"github.com/logsentinel/logsentinel/internal/notifier"
	"github.com/logsentinel/logsentinel/internal/traceid"
	"github.com/logsentinel/logsentinel/internal/workerpool"

	apimw "github.com/logsentinel/logsentinel/internal/api/middleware"
)

// Ingester is the narrow view of the Batcher a handler needs.
type Ingester interface {
	Push(task domain.AnalysisTask) error
}

// Pool is the narrow view of the worker pool a handler needs to schedule
// read work off the request goroutine, matching the "query handler
// schedules work on the worker pool" data flow.
type Pool interface {
	Submit(task workerpool.Task) error
	Stopped() bool
}

// Repository is the narrow view of the Log Repository a handler needs.
type Repository interface {
	GetDashboardStats() domain.DashboardStats
	GetHistoricalLogs(ctx context.Context, page, pageSize int, level, keyword string) (domain.HistoryPage, error)
	QueryResultByTraceID(ctx context.Context, traceID string) (domain.LogAnalysisResult, error)
}

// ConfigStore is the narrow view of the Config Store a handler needs.
type ConfigStore struct {
	GetSnapshot    func() *config.SystemConfig
	UpdateAppCfg   func(ctx context.Context, updates map[string]string) error
	UpdatePrompts  func(ctx context.Context, items []config.PromptConfig) error
	UpdateChannels func(ctx context.Context, items []config.AlertChannel) error
}

// Server holds every dependency a handler needs and implements
// http.Handler via its mux.Router.
type Server struct {
	ingester Ingester
	pool     Pool
	repo     Repository
	cfg      ConfigStore
	notifier *notifier.Notifier
	logger   *slog.Logger
	validate *validator.Validate

	router *mux.Router
	// handler wraps router in the CORS and logging middleware. They sit
	// outside the router because mux only runs router.Use middleware on a
	// matched route, which would skip OPTIONS and 404/405 responses.
	handler http.Handler
}

// New builds a Server and its routing table.
func New(ingester Ingester, pool Pool, repo Repository, cfg ConfigStore, notify *notifier.Notifier, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		ingester: ingester,
		pool:     pool,
		repo:     repo,
		cfg:      cfg,
		notifier: notify,
		logger:   logger,
		validate: validator.New(),
	}
	s.router = s.buildRouter()
	s.handler = apimw.CORS(apimw.RequestLogging(s.logger)(s.router))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/logs", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/results/{trace_id}", s.handleResult).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/settings/all", s.handleSettingsAll).Methods(http.MethodGet)
	r.HandleFunc("/settings/config", s.handleSettingsConfig).Methods(http.MethodPost)
	r.HandleFunc("/settings/prompts", s.handleSettingsPrompts).Methods(http.MethodPost)
	r.HandleFunc("/settings/channels", s.handleSettingsChannels).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	return r
}

// traceIDFromExternal returns a fresh trace-id from the external generator
// (internal/traceid). Ingest does not accept a caller-provided trace-id.
func traceIDFromExternal() string {
	return traceid.New()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handlerTimeout bounds how long a handler waits for the worker pool to
// produce a value before giving up and replying 500; the pool goroutine
// itself is not canceled, matching "in-flight batches are not
// cancellable" — this applies to reads, not the batch processor.
const handlerTimeout = 10 * time.Second

func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case isKind(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not found"
	case isKind(err, apperrors.ErrOverload):
		return http.StatusServiceUnavailable, "Server is overloaded"
	case isKind(err, apperrors.ErrClientInput):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func isKind(err error, kind error) bool {
	for err != nil {
		if err == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
