// Package http is the ledger's JSON boundary. It resolves the caller's
// identity, validates request shapes and maps service errors to status
// codes; all ledger rules live in the services package.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"budgetledger/internal/cache"
	applog "budgetledger/internal/log"
	"budgetledger/internal/middleware/ratelimit"
	"budgetledger/internal/middleware/security"
	"budgetledger/internal/middleware/trace"
	"budgetledger/internal/services"
)

// Services bundles the units of work the handlers call.
type Services struct {
	Ledger        *services.LedgerService
	Categories    *services.CategoryService
	Budgets       *services.BudgetService
	Subscriptions *services.SubscriptionService
	Goals         *services.GoalService
	Dashboard     *services.DashboardService
	Reports       *services.ReportService
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	JWTSecret           string
	Location            *time.Location
	IdempotencyTTL      time.Duration
	IdempotencyCapacity int
	RequestsPerMinute   int
	Logger              *applog.Logger
	// Ready is checked by /readyz. Nil means always ready.
	Ready Pinger
}

type Server struct {
	http.Server

	svc      Services
	opts     Options
	validate *validator.Validate
	loc      *time.Location

	limiter     *ratelimit.Limiter
	detector    *security.Detector
	idempotency *cache.LRUCache[*storedResponse]
	caches      *cache.Manager
}

func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.IdempotencyCapacity <= 0 {
		opts.IdempotencyCapacity = 10000
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	s := &Server{
		svc:         svc,
		opts:        opts,
		validate:    newValidator(),
		loc:         opts.Location,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector:    security.NewDetector(),
		idempotency: cache.NewLRUCache[*storedResponse](opts.IdempotencyCapacity, opts.IdempotencyTTL),
		caches:      cache.NewManager(),
	}
	s.caches.Register(s.idempotency)
	s.caches.StartCleanup(5 * time.Minute)

	s.Addr = addr
	s.Handler = s.routes()
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(trace.NewMiddleware(s.opts.Logger, s.detector.ExtractClientIP).Handler)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler)
	r.Use(s.detector.Handler)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded", nil)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(middleware.AllowContentType("application/json"))

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Post("/provision", s.handleProvision)
			r.Delete("/{id}", s.handleDeleteAccount)
			r.Get("/{id}/balance", s.handleAccountBalance)
			r.Get("/{id}/transactions", s.handleAccountTransactions)
		})

		r.With(s.idempotent).Post("/income", s.handleRecordIncome)
		r.With(s.idempotent).Post("/expenses", s.handleRecordExpense)
		r.Get("/transactions", s.handleRecentTransactions)
		r.Get("/transactions/export", s.handleExportTransactions)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Post("/merge", s.handleMergeCategories)
			r.Patch("/{id}", s.handleRenameCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
			r.Get("/{id}/summary", s.handleCategorySummary)
			r.Get("/{id}/records", s.handleCategoryRecords)
			r.Get("/{id}/budgets/{month}", s.handleBudgetSummary)
			r.Put("/{id}/budgets/{month}", s.handleSetBudget)
			r.Delete("/{id}/budgets/{month}", s.handleDeleteBudget)
		})
		r.Get("/budgets", s.handleMonthBudgets)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", s.handleListSubscriptions)
			r.Post("/", s.handleCreateSubscription)
			r.Get("/monthly-total", s.handleSubscriptionsMonthlyTotal)
			r.Get("/{id}", s.handleGetSubscription)
			r.Patch("/{id}", s.handleUpdateSubscription)
			r.Post("/{id}/pause", s.handlePauseSubscription)
			r.Post("/{id}/resume", s.handleResumeSubscription)
			r.Delete("/{id}", s.handleDeleteSubscription)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Get("/{id}", s.handleGetGoal)
			r.Patch("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeleteGoal)
			r.Post("/{id}/contributions", s.handleContribute)
			r.Get("/{id}/contributions", s.handleGoalContributions)
		})

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/reports", s.handleReport)
		r.Get("/reports/trend", s.handleSpendingTrend)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown drains in-flight requests and stops background sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.limiter.Stop()
	s.caches.Stop()
	return err
}
