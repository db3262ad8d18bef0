// Package server provides the admin HTTP API of the retention service.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chryso-hq/forms/pkg/config"
	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/engine"
	"chryso-hq/forms/pkg/telemetry/health"
	"chryso-hq/forms/pkg/telemetry/metrics"
	"chryso-hq/forms/pkg/telemetry/tracing"
)

// Runner triggers a policy outside its schedule.
type Runner interface {
	RunNow(ctx context.Context, id string, now time.Time) (*engine.Result, error)
}

// Previewer computes what a run would do without side effects.
type Previewer interface {
	Preview(ctx context.Context, p *retention.Policy, now time.Time) *engine.Result
}

// Deps are the collaborators the API serves. Policies, Holds, Runner and
// Previewer are required.
type Deps struct {
	Policies  retention.PolicyStore
	Holds     retention.HoldStore
	Runner    Runner
	Previewer Previewer

	// Health serves /health and /ready. Nil gets an empty checker.
	Health *health.Checker

	// Metrics serves the scrape endpoint and records request metrics.
	// Nil disables both.
	Metrics     *metrics.Collector
	MetricsPath string

	// TLS, when set, serves HTTPS. Its certificates come from
	// GetCertificate.
	TLS *tls.Config

	// Tracer starts one server span per request. Nil disables tracing,
	// though incoming trace context is still passed on.
	Tracer trace.Tracer

	Version health.VersionInfo
	Logger  *slog.Logger
}

// Server is the admin HTTP server.
type Server struct {
	config *config.ServerConfig
	auth   *config.AuthConfig
	deps   Deps

	router     http.Handler
	limiter    *clientLimiter
	now        func() time.Time
	logger     *slog.Logger
	httpServer *http.Server

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates an admin server. Routes are built once here; Handler
// exposes them for tests.
func New(cfg *config.ServerConfig, authCfg *config.AuthConfig, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is required")
	}
	if authCfg == nil {
		authCfg = &config.AuthConfig{}
	}
	if deps.Policies == nil || deps.Holds == nil {
		return nil, errors.New("policy and hold stores are required")
	}
	if deps.Runner == nil || deps.Previewer == nil {
		return nil, errors.New("runner and previewer are required")
	}
	if authCfg.Enabled && authCfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required when auth is enabled")
	}
	if deps.Health == nil {
		deps.Health = health.New(0)
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = config.DefaultMetricsPath
	}
	deps.Tracer = tracing.OrNoop(deps.Tracer)
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		auth:   authCfg,
		deps:   deps,
		now:    time.Now,
		logger: logger.With("component", "server"),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.router = s.routes()
	return s, nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		TLSConfig:    s.deps.TLS,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server",
			"address", s.config.ListenAddress,
			"auth_enabled", s.auth.Enabled,
			"tls", s.deps.TLS != nil,
		)
		var err error
		if s.deps.TLS != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown gracefully shuts down the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("admin server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
