package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/millworks/millstream-core/internal/infrastructure/config"
	"github.com/millworks/millstream-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnChecker reports transport connection state; satisfied by the
// MQTT client wrapper.
type ConnChecker interface {
	IsConnected() bool
}

// FlushHealth reports whether recent store flushes are succeeding;
// satisfied by the batch writer.
type FlushHealth interface {
	Healthy() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Conn     ConnChecker
	Writer   FlushHealth
	Gatherer prometheus.Gatherer
	Version  string
}

// Server is the liveness/readiness/metrics HTTP server.
//
// It exposes three endpoints for the supervisor and scrapers; nothing
// here is authenticated, and nothing mutates processor state.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	conn     ConnChecker
	writer   FlushHealth
	gatherer prometheus.Gatherer
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection checker is required")
	}
	if deps.Writer == nil {
		return nil, fmt.Errorf("writer health is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		conn:     deps.Conn,
		writer:   deps.Writer,
		gatherer: deps.Gatherer,
		version:  deps.Version,
	}, nil
}

// Start launches the HTTP listener in a background goroutine. The
// server is stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to the shutdown timeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
