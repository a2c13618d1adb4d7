package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/observability"
	"github.com/kozaktomas/facegraph/internal/web/handlers"
	"github.com/kozaktomas/facegraph/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	backend    database.Backend
	svc        handlers.Consolidator
	logger     zerolog.Logger
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, backend database.Backend, svc handlers.Consolidator, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	logger = logger.With().Str("component", "web").Logger()

	s := &Server{
		config:  cfg,
		router:  r,
		backend: backend,
		svc:     svc,
		logger:  logger,
	}

	observability.RegisterMetrics()

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout(cfg)))
	r.Use(observability.RequestMetricsMiddleware)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout(cfg) + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// requestTimeout leaves room for one merge attempt plus its retries.
func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.Consolidation.Timeout <= 0 {
		return time.Minute
	}
	return 2 * cfg.Consolidation.Timeout
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
