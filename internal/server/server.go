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

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/config"
	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/home"
	"github.com/jackzampolin/promptpal/internal/kvstore"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/llmcall"
	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/providers"
	"github.com/jackzampolin/promptpal/internal/server/endpoints"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// OptimizePath is the throttled route.
const OptimizePath = "/api/optimize"

// Server is the main PromptPal HTTP server.
// It opens the local database on start and closes it on shutdown.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	configMgr  *config.Manager
	fs         afero.Fs
	logger     *slog.Logger

	store        *kvstore.SQLiteStore
	orchestrator *optimizer.Orchestrator

	// limiter throttles OptimizePath; nil when throttling is disabled.
	limiter *rate.Limiter

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
	// Home is the promptpal home directory holding the database
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Fs is the filesystem exports are written to (default: OS filesystem)
	Fs afero.Fs
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
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	s := &Server{
		home:      cfg.Home,
		configMgr: cfg.ConfigManager,
		fs:        cfg.Fs,
		logger:    cfg.Logger,
	}
	s.limiter = newLimiter(cfg.ConfigManager.Get().Server)

	// Watch for config changes
	cfg.ConfigManager.OnChange(s.reload)

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = endpoints.NewRegistry()

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(s.throttle(mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // optimize waits on the remote model
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens storage and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.initServices(ctx); err != nil {
		_ = s.closeStore()
		s.setNotRunning()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
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

// initServices opens the database and wires the services handlers use.
func (s *Server) initServices(ctx context.Context) error {
	s.logger.Info("opening database", "path", s.home.DatabasePath())
	store, err := kvstore.Open(ctx, s.home.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.store = store

	calls, err := llmcall.NewStore(ctx, store.DB())
	if err != nil {
		return fmt.Errorf("failed to create LLM call store: %w", err)
	}

	cfg := s.configMgr.Get()
	creds := credential.NewStore(store)
	orch := optimizer.NewOrchestrator(optimizer.OrchestratorConfig{
		Credentials: creds,
		Client:      cfg.NewOptimizerClient(s.logger),
		Notifier:    llmcall.NewRecorder(calls, providers.OpenAIName, s.logger).Notifier(),
		Logger:      s.logger,
	})

	s.mu.Lock()
	s.orchestrator = orch
	s.services = &svcctx.Services{
		KV:           store,
		Credentials:  creds,
		Library:      library.New(store, cfg.Library.User, library.Options{Logger: s.logger}),
		Orchestrator: orch,
		LLMCallStore: calls,
		Config:       s.configMgr,
		Logger:       s.logger,
		Home:         s.home,
		Fs:           s.fs,
	}
	s.mu.Unlock()
	return nil
}

// reload applies a changed configuration to the running server.
func (s *Server) reload(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orchestrator != nil {
		s.orchestrator.SetClient(cfg.NewOptimizerClient(s.logger))
	}
	s.limiter = newLimiter(cfg.Server)
	s.logger.Info("optimizer reloaded from config", "model", cfg.Optimizer.Model)
}

// shutdown performs graceful shutdown of the HTTP server and closes storage.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.closeStore(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) closeStore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = nil
	s.orchestrator = nil
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
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

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Services returns the wired services.
// Returns nil if the server hasn't started yet.
func (s *Server) Services() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svcs := s.Services(); svcs != nil {
			ctx = svcctx.WithServices(ctx, svcs)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// throttle rejects optimize calls over the configured rate with 429.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == OptimizePath {
			s.mu.RLock()
			limiter := s.limiter
			s.mu.RUnlock()
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too many optimization requests, try again shortly"}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if storage isn't open yet.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Services() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// newLimiter builds the optimize-route limiter; zero RPS disables it.
func newLimiter(cfg config.ServerCfg) *rate.Limiter {
	if cfg.OptimizeRPS <= 0 {
		return nil
	}
	burst := cfg.OptimizeBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.OptimizeRPS), burst)
}
