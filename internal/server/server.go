package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/cache"
	"github.com/jackzampolin/bookdeck/internal/config"
	"github.com/jackzampolin/bookdeck/internal/home"
	"github.com/jackzampolin/bookdeck/internal/prompts"
	"github.com/jackzampolin/bookdeck/internal/providers"
	"github.com/jackzampolin/bookdeck/internal/server/endpoints"
	"github.com/jackzampolin/bookdeck/internal/svcctx"
	"github.com/jackzampolin/bookdeck/internal/wizard"
)

// Server is the bookdeck HTTP server. It hosts the wizard UI and drives
// runs submitted through it in the background.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	registry   *providers.Registry
	sessions   *wizard.Sessions
	runner     *wizard.Runner
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Registry holds the providers runs use. Reloaded when the config changes.
	Registry *providers.Registry
	// Executor carries out submitted runs. Without one, run creation answers 503.
	Executor wizard.Executor
	// Home is the bookdeck home directory; uploads land under it.
	Home *home.Dir
	// Cache is the API response cache handed to reloaded providers.
	Cache *cache.Cache
	// Prompts resolves prompt templates and book overrides.
	Prompts     *prompts.Resolver
	PromptStore *prompts.Store
	// Defaults fill settings a run request leaves out.
	Defaults wizard.Settings
	// RunsPerMinute limits run creation per client IP. Zero disables it.
	RunsPerMinute int
	// MaxUploadBytes caps uploaded book size.
	MaxUploadBytes int64
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = endpoints.DefaultMaxUploadBytes
	}

	registry := cfg.Registry
	if registry == nil {
		registry = providers.NewRegistry()
		registry.SetLogger(cfg.Logger)
	}

	// Watch for config changes
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig(cfg.Cache))
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		registry: registry,
		sessions: wizard.NewSessions(),
		logger:   cfg.Logger,
	}
	if cfg.Executor != nil {
		s.runner = wizard.NewRunner(s.sessions, cfg.Executor, cfg.Logger)
	}

	s.services = &svcctx.Services{
		Registry:    registry,
		Sessions:    s.sessions,
		Runner:      s.runner,
		Prompts:     cfg.Prompts,
		PromptStore: cfg.PromptStore,
		Cache:       cfg.Cache,
		Home:        cfg.Home,
		Logger:      cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		Defaults:       cfg.Defaults,
		RunsPerMinute:  cfg.RunsPerMinute,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}) {
		s.endpointRegistry.Register(ep)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(requestLogger(cfg.Logger))
	router.Use(s.withServices)
	s.endpointRegistry.RegisterRoutes(router)
	s.handler = router

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start serves HTTP until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops the HTTP server and cancels in-flight runs.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.runner != nil {
		s.logger.Info("stopping runs")
		s.runner.Close()
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler returns the routed handler, for serving without a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Sessions returns the wizard sessions the server tracks.
func (s *Server) Sessions() *wizard.Sessions {
	return s.sessions
}

// Runner returns the background runner, or nil without an executor.
func (s *Server) Runner() *wizard.Runner {
	return s.runner
}

// withServices enriches the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
