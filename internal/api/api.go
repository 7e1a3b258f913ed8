// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/api/health"
	"github.com/good-yellow-bee/followwatch/internal/api/profiles"
	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	AccessTokenTTL   time.Duration
	CORSOrigins      []string
	RateLimitPerIP   int // requests per minute on public routes
	RateLimitPerUser int // requests per minute on authenticated routes
	LockoutThreshold int
	LockoutDuration  time.Duration
	RequestTimeout   time.Duration
	Version          string
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 30 * time.Minute
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 10
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 120
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = 5
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = 15 * time.Minute
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	storage       storage.Storage
	refresher     profiles.Refresher
	insights      profiles.InsightsReader
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, store storage.Storage, refresher profiles.Refresher, insights profiles.InsightsReader) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if refresher == nil || insights == nil {
		return nil, errors.New("refresher and insights are required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("JWT secret is required")
	}

	cfg.SetDefaults()

	s := &Server{
		config:        cfg,
		storage:       store,
		refresher:     refresher,
		insights:      insights,
		healthHandler: health.NewHandler(cfg.Version),
	}

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.setupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		logger.Info("HTTP API listening", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http api: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("http api: %w", err)
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the readiness probe.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	s.healthHandler.RegisterChecker(c)
}
