package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/contact-scrub/internal/config"
	"github.com/contact-scrub/internal/web/handlers"
	"github.com/contact-scrub/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *Config
	run        *config.File
	log        *zap.Logger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance serving scrubs with the run configuration
func NewServer(cfg *Config, run *config.File, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if run == nil {
		run = config.Default()
	}
	if err := run.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}

	server := &Server{
		config: cfg,
		run:    run,
		log:    log.Named("web"),
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	apiHandler := &handlers.APIHandler{Run: s.run}
	scrubHandler := handlers.NewScrubHandler(s.run, s.config.Features.MaxUploadMB<<20, s.log)

	// Health stays outside the authenticated subrouter
	s.router.HandleFunc("/api/health", apiHandler.Health).Methods("GET")

	if s.config.Features.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", apiHandler.GetConfig).Methods("GET")
	api.HandleFunc("/scrub", scrubHandler.Scrub).Methods("POST", "OPTIONS")

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.log))

	if s.config.Auth.Enabled {
		api.Use(middleware.Authentication(s.config.Auth.APIKey))
	}
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled or the process receives SIGINT or SIGTERM,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info("server stopped")
	return nil
}
