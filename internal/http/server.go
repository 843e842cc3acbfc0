// Package http exposes the ledger, automations, categories and sync jobs as
// a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/period"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/syncjobs"
)

type LedgerReader interface {
	Ledger(ctx context.Context, req services.LedgerRequest) (services.LedgerPage, error)
	Dashboard(ctx context.Context, expr string, search period.Search) (services.Dashboard, error)
}

type TransactionStore interface {
	Get(ctx context.Context, id int64) (core.Transaction, error)
	Create(ctx context.Context, in services.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, id int64, in services.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type AutomationStore interface {
	List(ctx context.Context) ([]services.Automation, error)
	Get(ctx context.Context, id int64) (services.Automation, error)
	Add(ctx context.Context, in services.AutomationInput) (int64, error)
	Update(ctx context.Context, id int64, patch services.AutomationPatch) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type AutomationRunner interface {
	Run(ctx context.Context, now time.Time) (services.MaterializeResult, error)
}

type CategoryStore interface {
	List(ctx context.Context) ([]storage.Category, error)
	Add(ctx context.Context, name string) (int64, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	AddKeyword(ctx context.Context, categoryID int64, keyword string) (int64, error)
	DeleteKeyword(ctx context.Context, id int64) error
}

type JobRunner interface {
	Start(ctx context.Context, script string, args []string) (*syncjobs.Job, error)
	Get(ctx context.Context, id string) (*syncjobs.Job, error)
	List(ctx context.Context) ([]*syncjobs.Job, error)
	Log(ctx context.Context, id string, maxBytes int) (syncjobs.LogTail, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the collaborators behind the API.
type Services struct {
	Reports      LedgerReader
	Transactions TransactionStore
	Automations  AutomationStore
	Materializer AutomationRunner
	Categories   CategoryStore
	Jobs         JobRunner
	Health       Pinger
}

type Server struct {
	http.Server
	svc         Services
	logger      *applog.Logger
	rateLimiter *rateLimiter
	startedAt   time.Time
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:         svc,
		logger:      logger.WithComponent(applog.ComponentHTTP),
		rateLimiter: newRateLimiter(),
		startedAt:   time.Now(),
		now:         time.Now,
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(applog.Middleware(s.logger, func(r *http.Request) string { return middleware.GetReqID(r.Context()) }))
	r.Use(s.withRequestLogging)
	r.Use(s.withSecurityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", s.handleLedger)
		r.Get("/dashboard", s.handleDashboard)

		r.Post("/transactions", s.handleCreateTransaction)
		r.Get("/transactions/{id}", s.handleGetTransaction)
		r.Put("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Get("/automations", s.handleListAutomations)
		r.Post("/automations", s.handleCreateAutomation)
		r.Post("/automations/run", s.handleRunAutomations)
		r.Get("/automations/{id}", s.handleGetAutomation)
		r.Put("/automations/{id}", s.handleUpdateAutomation)
		r.Delete("/automations/{id}", s.handleDeleteAutomation)

		r.Get("/categories", s.handleListCategories)
		r.Post("/categories", s.handleCreateCategory)
		r.Put("/categories/{id}", s.handleRenameCategory)
		r.Delete("/categories/{id}", s.handleDeleteCategory)
		r.Post("/categories/{id}/keywords", s.handleAddKeyword)
		r.Delete("/keywords/{id}", s.handleDeleteKeyword)

		r.Get("/sync-jobs", s.handleListJobs)
		r.Post("/sync-jobs", s.handleStartJob)
		r.Get("/sync-jobs/{id}", s.handleGetJob)
		r.Get("/sync-jobs/{id}/log", s.handleJobLog)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks the database within a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.Health.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": map[string]string{"database": "failed"},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{"database": "ok"},
	})
}
