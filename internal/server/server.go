package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kx0101/sessioncheck/internal/artifacts"
	"github.com/kx0101/sessioncheck/internal/input"
	"github.com/kx0101/sessioncheck/internal/metrics"
	"github.com/kx0101/sessioncheck/internal/ruleset"
	"github.com/kx0101/sessioncheck/internal/store"
)

type Options struct {
	Rules *ruleset.Set
	// RuleStore, when set, receives the rule list after every change.
	RuleStore ruleset.Store
	Provider  input.Provider
	History   store.HistoryStore
	Artifacts artifacts.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	APIKey                  string
	CORSAllowedOrigins      []string
	RateLimitRequestsPerSec float64
	RateLimitBurst          int
	Workers                 int
	ExportPrefix            string
}

type Server struct {
	rules        *ruleset.Set
	ruleStore    ruleset.Store
	provider     input.Provider
	history      store.HistoryStore
	artifacts    artifacts.Store
	metrics      *metrics.Metrics
	logger       *slog.Logger
	apiKeyHash   string
	corsOrigins  []string
	rateLimiter  *apiRateLimiter
	workers      int
	exportPrefix string
}

func New(opts Options) *Server {
	s := &Server{
		rules:        opts.Rules,
		ruleStore:    opts.RuleStore,
		provider:     opts.Provider,
		history:      opts.History,
		artifacts:    opts.Artifacts,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		corsOrigins:  opts.CORSAllowedOrigins,
		rateLimiter:  newAPIRateLimiter(opts.RateLimitRequestsPerSec, opts.RateLimitBurst),
		workers:      opts.Workers,
		exportPrefix: opts.ExportPrefix,
	}

	if s.rules == nil {
		s.rules = ruleset.New(ruleset.Defaults())
	}
	if s.history == nil {
		s.history = store.NewMemoryStore(100)
	}
	if s.artifacts == nil {
		s.artifacts = artifacts.NoopStore{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if len(s.corsOrigins) == 0 {
		s.corsOrigins = []string{"*"}
	}
	if opts.APIKey != "" {
		s.apiKeyHash = HashAPIKey(opts.APIKey)
	}
	if s.rateLimiter != nil {
		s.rateLimiter.onReject = s.metrics.RateLimited
	}

	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if s.rateLimiter != nil {
		r.Use(s.rateLimiter.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyAuth(s.apiKeyHash))

		r.Get("/conditions", s.listConditions)
		r.Get("/kind", s.inferKind)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.listRules)
			r.Post("/", s.createRule)
			r.Get("/{id}", s.getRule)
			r.Put("/{id}", s.updateRule)
			r.Delete("/{id}", s.deleteRule)
			r.Post("/{id}/toggle", s.toggleRule)
		})

		r.Post("/validate", s.validate)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/{id}", s.getRun)
			r.Get("/{id}/csv", s.getRunCSV)
			r.Get("/{id}/report", s.getRunReport)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rules":  s.rules.Len(),
	})
}
