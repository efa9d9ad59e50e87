// Package server provides the HTTP server and routing for the stock agent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ataha322/stock-agent-hackathon/internal/analysis"
	"github.com/ataha322/stock-agent-hackathon/internal/cache"
	"github.com/ataha322/stock-agent-hackathon/internal/database"
	"github.com/ataha322/stock-agent-hackathon/internal/market"
	"github.com/ataha322/stock-agent-hackathon/internal/reliability"
	"github.com/ataha322/stock-agent-hackathon/internal/watchlist"
)

// Config holds everything the server serves.
type Config struct {
	Log       zerolog.Logger
	DB        *database.DB
	Cache     *cache.Repository
	Market    *market.Adapter
	Analysis  *analysis.Adapter
	Watchlist *watchlist.Repository
	Refresh   *watchlist.RefreshService
	Backups   *reliability.BackupService // nil when backups are disabled
	Port      int
	DevMode   bool
}

// Server is the HTTP front of the caching core.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	db        *database.DB
	cache     *cache.Repository
	market    *market.Adapter
	analysis  *analysis.Adapter
	watchlist *watchlist.Repository
	refresh   *watchlist.RefreshService
	backups   *reliability.BackupService
	startedAt time.Time
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		db:        cfg.DB,
		cache:     cfg.Cache,
		market:    cfg.Market,
		analysis:  cfg.Analysis,
		watchlist: cfg.Watchlist,
		refresh:   cfg.Refresh,
		backups:   cfg.Backups,
		startedAt: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// AI calls can legitimately take a while.
	s.router.Use(middleware.Timeout(90 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/quote/{symbol}", s.handleGetQuote)
		r.Get("/validate/{symbol}", s.handleValidateSymbol)
		r.Get("/history/{symbol}", s.handleGetHistory)
		r.Get("/analysis/{symbol}", s.handleGetAnalysis)
		r.Get("/analysis/{symbol}/events", s.handleGetEvents)

		r.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.handleListWatchlist)
			r.Post("/", s.handleAddWatchlist)
			r.Delete("/{symbol}", s.handleRemoveWatchlist)
			r.Post("/refresh", s.handleRefreshWatchlist)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Post("/invalidate", s.handleInvalidateCache)
			r.Get("/stats", s.handleCacheStats)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
			r.Get("/backups", s.handleListBackups)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
