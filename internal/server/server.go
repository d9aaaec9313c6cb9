// Package server exposes the recognition pipeline over HTTP. The server
// owns the OCR engine lifecycle: Start initializes the engines before
// accepting connections and closes them after the listener drains.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/engines"
	"github.com/jackzampolin/rapor/internal/server/endpoints"
	"github.com/jackzampolin/rapor/internal/svcctx"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = "8080"

	// A multi-page PDF is recognized inside one request.
	writeTimeout = 10 * time.Minute
	drainTimeout = 30 * time.Second
)

// Config holds server settings. Services must carry a pipeline and engines.
type Config struct {
	Host            string
	Port            string
	Services        *svcctx.Services
	SwaggerSpecPath string
	Logger          *slog.Logger
}

type Server struct {
	http     *http.Server
	engines  *engines.Registry
	services *svcctx.Services
	routes   *api.Registry
	logger   *slog.Logger
	running  atomic.Bool
}

// New builds the server and its routes. Nothing is started.
func New(cfg Config) (*Server, error) {
	svc := cfg.Services
	if svc == nil || svc.Pipeline == nil || svc.Engines == nil {
		return nil, errors.New("server: services with a pipeline and engines are required")
	}
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = defaultHost
	}
	if port == "" {
		port = defaultPort
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if svc.Logger == nil {
		svc.Logger = logger
	}

	s := &Server{
		engines:  svc.Engines,
		services: svc,
		logger:   logger.With("component", "server"),
		routes:   api.NewRegistry(endpoints.All(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath})...),
	}

	mux := http.NewServeMux()
	s.routes.Mount(mux, s.requireInit)
	s.http = &http.Server{
		Addr:         net.JoinHostPort(host, port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  2 * time.Minute,
	}
	return s, nil
}

// Start initializes the engines, listens and serves until ctx is done.
// Engines are closed on every return path.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server: already running")
	}
	defer s.running.Store(false)

	s.logger.Info("initializing OCR engines", "engines", s.engines.Names())
	if err := s.engines.Init(ctx); err != nil {
		s.closeEngines()
		return fmt.Errorf("initialize engines: %w", err)
	}
	defer s.closeEngines()

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	s.logger.Info("listening", "addr", ln.Addr().String(), "routes", len(s.routes.Patterns()))
	s.logger.Debug("routes", "patterns", s.routes.Patterns())

	served := make(chan error, 1)
	go func() { served <- s.http.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := s.http.Shutdown(drainCtx); err != nil {
		s.logger.Warn("connections did not drain", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) closeEngines() {
	if err := s.engines.Close(); err != nil {
		s.logger.Error("closing OCR engines", "error", err)
	}
}

// IsRunning reports whether Start is in progress.
func (s *Server) IsRunning() bool { return s.running.Load() }

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Handler is the root handler, usable with httptest.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), s.services)))
	})
}

// requireInit answers 503 until Start has initialized the engines.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.engines.Initialized() {
			next(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"OCR engines not initialized"}`))
	}
}
