// Package server wires the content store, vision client, and the three core
// components into a single HTTP server.
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

	"satchel/internal/api"
	"satchel/internal/classifier"
	"satchel/internal/config"
	"satchel/internal/home"
	"satchel/internal/indexer"
	"satchel/internal/search"
	"satchel/internal/server/endpoints"
	"satchel/internal/store"
	"satchel/internal/svcctx"
	"satchel/internal/vision"
)

// Server is the main Satchel HTTP server. It owns the SQLite content store,
// opening it on start and closing it on shutdown.
type Server struct {
	httpServer *http.Server
	home       *home.Dir
	configMgr  *config.Manager
	logger     *slog.Logger

	store        *store.Store
	visionClient *swappableClient

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
	// Home is the satchel home directory (database, page images)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// VisionClient overrides the configured gateway client (tests)
	VisionClient vision.Client
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
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}

	s := &Server{
		home:      cfg.Home,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Vision client: explicit override wins, else built from config and
	// rebuilt on hot reload.
	s.visionClient = &swappableClient{}
	if cfg.VisionClient != nil {
		s.visionClient.swap(cfg.VisionClient)
	} else if cfg.ConfigManager != nil {
		s.visionClient.swap(vision.NewGatewayClient(cfg.ConfigManager.Get().ToGatewayConfig()))
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			s.visionClient.swap(vision.NewGatewayClient(c.ToGatewayConfig()))
			cfg.Logger.Info("vision client reloaded from config")
		})
	} else {
		s.visionClient.swap(vision.NewGatewayClient(vision.GatewayConfig{}))
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: endpoints.GetSwaggerSpecPath()}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // classify calls wait on the vision service
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the store and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to create home directory: %w", err)
	}

	s.logger.Info("opening content store", "path", s.home.DatabasePath())
	st, err := store.Open(ctx, s.home.DatabasePath(), s.logger)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open content store: %w", err)
	}
	s.store = st
	if !st.RankedSearchEnabled() {
		s.logger.Warn("ranked search unavailable, substring fallback only")
	}

	indexerCfg := indexer.DefaultConfig()
	if s.configMgr != nil {
		indexerCfg = s.configMgr.Get().ToIndexerConfig()
	}
	orch := indexer.New(st, s.visionClient, indexerCfg, s.logger)

	s.services = &svcctx.Services{
		Store:      st,
		Classifier: classifier.New(st, s.visionClient, s.logger),
		Indexer:    orch,
		Search:     search.New(st, s.logger),
		Home:       s.home,
		Logger:     s.logger,
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
			_ = s.shutdown(orch)
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown(orch)
}

// shutdown performs graceful shutdown: HTTP server first, then any
// in-flight indexing run, then the store.
func (s *Server) shutdown(orch *indexer.Orchestrator) error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if orch != nil {
		s.logger.Info("waiting for in-flight indexing runs")
		orch.Wait()
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
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

// Store returns the content store.
// Returns nil if the server hasn't started yet.
func (s *Server) Store() *store.Store {
	return s.store
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the store is open.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// swappableClient lets config hot reload replace the vision client while
// the classifier and orchestrator keep a stable reference.
type swappableClient struct {
	mu     sync.RWMutex
	client vision.Client
}

func (c *swappableClient) swap(client vision.Client) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

func (c *swappableClient) current() vision.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

func (c *swappableClient) Analyze(ctx context.Context, req *vision.Request) (*vision.Result, error) {
	return c.current().Analyze(ctx, req)
}

func (c *swappableClient) Name() string {
	return c.current().Name()
}
