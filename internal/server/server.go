// Package server hosts the contact functions behind one HTTP listener.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"contact-functions/internal/common/errors"
	"contact-functions/internal/common/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Function is an HTTP function mounted at its own path.
type Function interface {
	http.Handler
	Path() string
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// RequestObserver receives one observation per request.
type RequestObserver interface {
	RecordRequest(ctx context.Context, route string, status int, duration time.Duration)
}

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          logger.Logger
	Observer        RequestObserver
	ReadyChecks     map[string]ReadinessCheck
}

type Server struct {
	httpServer      *http.Server
	logger          logger.Logger
	shutdownTimeout time.Duration
	readyChecks     map[string]ReadinessCheck
}

func New(cfg Config, functions ...Function) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	srv := &Server{
		logger:          log,
		shutdownTimeout: cfg.ShutdownTimeout,
		readyChecks:     cfg.ReadyChecks,
	}
	if srv.shutdownTimeout <= 0 {
		srv.shutdownTimeout = 30 * time.Second
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.health)
	mux.HandleFunc("/ready", srv.ready)
	mux.Handle("/metrics", promhttp.Handler())
	for _, fn := range functions {
		mux.Handle(fn.Path(), fn)
	}

	chain := http.Handler(mux)
	chain = recoveryMiddleware(log, chain)
	chain = metricsMiddleware(cfg.Observer, chain)
	chain = loggingMiddleware(log, chain)
	chain = requestIDMiddleware(chain)

	srv.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           chain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return srv
}

// Handler returns the full middleware chain, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones, forcing
// the listener closed once the shutdown timeout passes.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Graceful shutdown failed, forcing close", map[string]interface{}{
			"error": err.Error(),
		})
		_ = s.httpServer.Close()
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	errors.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		s.logger.Warn("Readiness check failed", map[string]interface{}{
			"checks": failed,
		})
		errors.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failed,
		})
		return
	}
	errors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
