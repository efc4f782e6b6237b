package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/bakesched/internal/catalog"
	"github.com/me/bakesched/internal/config"
	"github.com/me/bakesched/internal/engine"
	"github.com/me/bakesched/internal/store"
)

// Server is the bakery scheduling REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	catalog   *catalog.Catalog
	store     store.Store
	scheduler *engine.Scheduler
	validator *engine.Validator

	// optimizerSeed produces the seed for each optimization run. Tests pin
	// it for reproducible results.
	optimizerSeed func() int64
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithOptimizerSeed fixes the optimizer's random seed.
func WithOptimizerSeed(seed int64) Option {
	return func(s *Server) {
		s.optimizerSeed = func() int64 { return seed }
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.Config, st store.Store, cat *catalog.Catalog, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger.With("component", "server"),
		config:        cfg,
		startTime:     time.Now(),
		catalog:       cat,
		store:         st,
		scheduler:     engine.NewScheduler(cat, cfg.Kitchen, logger),
		validator:     engine.NewValidator(cat, cfg.Kitchen, logger),
		optimizerSeed: func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Health
		r.Get("/health", s.handleHealth)

		// Recipe catalog
		r.Get("/recipes", s.handleListRecipes)

		// Orders
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", s.handleListOrders)
			r.Post("/", s.handleCreateOrder)
			r.Post("/validate", s.handleValidateOrder)
			r.Get("/{id}", s.handleGetOrder)
		})

		// Daily schedule
		r.Route("/schedule/{date}", func(r chi.Router) {
			r.Get("/", s.handleGetSchedule)
			r.Post("/optimize", s.handleOptimizeSchedule)
		})
	})
}
