// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/donationwatch/internal/auth"
	"github.com/pendergraft/donationwatch/internal/chains"
	"github.com/pendergraft/donationwatch/internal/config"
	donationsDomain "github.com/pendergraft/donationwatch/internal/donations/domain"
	donationsTransport "github.com/pendergraft/donationwatch/internal/donations/transport"
	"github.com/pendergraft/donationwatch/internal/middleware/logging"
	"github.com/pendergraft/donationwatch/internal/middleware/ratelimit"
	"github.com/pendergraft/donationwatch/internal/middleware/realip"
	"github.com/pendergraft/donationwatch/internal/observability/metrics"
	projectsDomain "github.com/pendergraft/donationwatch/internal/projects/domain"
	projectsTransport "github.com/pendergraft/donationwatch/internal/projects/transport"
	"github.com/pendergraft/donationwatch/internal/storage"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	donationsSvc donationsDomain.Service
	projectsSvc  projectsDomain.Service
}

// New creates a new server
func New(cfg *config.Config, store storage.Store, registry *chains.Registry, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	// Create domain services
	donationsImpl := donationsDomain.NewService(store, store, registry)
	s.donationsSvc = donationsDomain.LoggingMiddleware(logger)(donationsImpl)
	s.projectsSvc = projectsDomain.NewService(store)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Order matters.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Rate limiting (bypasses health checks and metrics)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 3. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 4. CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	// Prometheus metrics (404s when disabled)
	s.router.Handle("/metrics", metrics.Handler())

	donationsHandler := donationsTransport.NewHandler(s.donationsSvc)
	projectsHandler := projectsTransport.NewHandler(s.projectsSvc)

	// Auth middleware for write operations
	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type == "api-key" {
			r.Use(auth.Middleware(s.store, writeError))
		}
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Donations - split read/write
		r.Route("/donations", func(r chi.Router) {
			donationsHandler.RegisterReadRoutes(r)

			r.Group(func(r chi.Router) {
				requireAuth(r)
				donationsHandler.RegisterWriteRoutes(r)
			})
		})

		// Projects - split read/write, with nested donation listing
		r.Route("/projects", func(r chi.Router) {
			projectsHandler.RegisterReadRoutes(r)
			donationsHandler.RegisterProjectRoutes(r)

			r.Group(func(r chi.Router) {
				requireAuth(r)
				projectsHandler.RegisterWriteRoutes(r)
			})
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
