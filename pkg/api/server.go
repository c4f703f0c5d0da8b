package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/config"
)

// Server is the HTTP server for the REST API.
//
// The server supports graceful shutdown: cancelling the Start context
// drains in-flight requests within the shutdown timeout.
type Server struct {
	server          *http.Server
	cfg             config.ServerConfig
	shutdownTimeout time.Duration
	shutdownOnce    sync.Once
}

// NewServer creates the API HTTP server over a router.
//
// The server is created in a stopped state. Call Start to begin
// serving requests. A zero shutdownTimeout defaults to 10 seconds.
func NewServer(cfg config.ServerConfig, shutdownTimeout time.Duration, handler http.Handler) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		server:          server,
		cfg:             cfg,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts the server and blocks until the context is cancelled
// or the listener fails.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns its result.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// A fresh context: the cancelled one would abort the drain
		// immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.cfg.Port
}
