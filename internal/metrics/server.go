package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/logger"
)

// Server exposes /metrics on its own listener so scrapes bypass API auth
// and rate limiting.
type Server struct {
	srv *http.Server
}

// NewServer returns a metrics server for addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())

	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Handler serves the default registry in text or OpenMetrics format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start blocks until Shutdown is called.
func (s *Server) Start() error {
	logger.Info("metrics server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
