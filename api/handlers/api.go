// Package handlers is the HTTP surface of the review and settlement engine.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/doublescoop/punto/api/metrics"
	"github.com/doublescoop/punto/api/solana"
	"github.com/doublescoop/punto/ledger/pkg/review"
	"github.com/doublescoop/punto/ledger/pkg/store"
	"github.com/doublescoop/punto/ledger/pkg/treasury"
)

// BalanceReader fetches a treasury wallet's USDC balance in cents.
// solana.GetUSDCBalance in production; stubbed in tests.
type BalanceReader func(ctx context.Context, owner string) (int64, error)

type Config struct {
	Logger   *slog.Logger
	Store    *store.Store
	Engine   *review.Engine
	Treasury *treasury.Calculator
	Balances BalanceReader
	// Limiter guards mutating routes; defaults to the shared per-IP limiter.
	Limiter *RateLimiter
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Engine == nil {
		return errors.New("review engine is required")
	}
	if cfg.Treasury == nil {
		return errors.New("treasury calculator is required")
	}
	if cfg.Balances == nil {
		cfg.Balances = solana.GetUSDCBalance
	}
	if cfg.Limiter == nil {
		cfg.Limiter = MutationRateLimiter
	}
	return nil
}

// API holds the wired handler dependencies.
type API struct {
	log      *slog.Logger
	store    *store.Store
	engine   *review.Engine
	treasury *treasury.Calculator
	balances BalanceReader
	limiter  *RateLimiter
}

func New(cfg Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &API{
		log:      cfg.Logger,
		store:    cfg.Store,
		engine:   cfg.Engine,
		treasury: cfg.Treasury,
		balances: cfg.Balances,
		limiter:  cfg.Limiter,
	}, nil
}

// Router builds the chi router with all routes and middleware mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Get("/version", a.handleVersion)

	r.Route("/api", func(r chi.Router) {
		limit := RateLimitMiddleware(a.limiter)

		r.With(limit).Post("/contributors", a.handleCreateContributor)

		r.Route("/issues", func(r chi.Router) {
			r.With(limit).Post("/", a.handleCreateIssue)
			r.Get("/{issueID}", a.handleGetIssue)
			r.With(limit).Post("/{issueID}/topics", a.handleCreateTopic)
			r.Get("/{issueID}/topics", a.handleListTopics)
			r.Get("/{issueID}/submissions", a.handleListSubmissions)
			r.Get("/{issueID}/payments/pending", a.handleListPendingPayments)
			r.With(limit).Post("/{issueID}/stipends", a.handleCreateStipend)
			r.Get("/{issueID}/funding", a.handleGetFunding)
			r.With(limit).Post("/{issueID}/funding/refresh", a.handleRefreshFunding)
		})

		r.Route("/submissions", func(r chi.Router) {
			r.With(limit).Post("/", a.handleCreateSubmission)
			r.Get("/{submissionID}", a.handleGetSubmission)
			r.With(limit).Post("/{submissionID}/review", a.handleReviewSubmission)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{paymentID}", a.handleGetPayment)
			r.With(limit).Post("/{paymentID}/paid", a.handleMarkPaymentPaid)
			r.With(limit).Post("/{paymentID}/failed", a.handleMarkPaymentFailed)
		})
	})

	return r
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		a.log.Error("failed to write healthz response", "error", err)
	}
}

// handleReadyz reports ready once the database answers.
func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.log.Debug("readyz: database not ready", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("database not ready\n")); err != nil {
			a.log.Error("failed to write readyz response", "error", err)
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		a.log.Error("failed to write readyz response", "error", err)
	}
}
