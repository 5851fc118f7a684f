// Package server exposes the provider registry over HTTP.
//
// Routes:
//
//	GET /status            domain -> active provider names
//	GET /status/{domain}   names for one domain
//	GET /healthz           liveness
//	GET /metrics           Prometheus metrics
//
// Provider problems are reported through /status content, never as HTTP
// errors.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/registry"
)

// StatusSource is the part of *registry.Registry the server reads.
type StatusSource interface {
	Status() map[string][]string
	Discovered() bool
}

// Server exposes discovery status over HTTP.
type Server struct {
	cfg     config.HTTPConfig
	service string
	status  StatusSource
	metrics http.Handler
	logger  registry.Logger

	http *http.Server
}

// New builds the server. metrics may be nil, in which case /metrics is not
// mounted.
func New(cfg config.HTTPConfig, service string, status StatusSource, metrics http.Handler, logger registry.Logger) *Server {
	if logger == nil {
		logger = registry.NoOpLogger{}
	}
	s := &Server{cfg: cfg, service: service, status: status, metrics: metrics, logger: logger}
	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      otelhttp.NewHandler(s.Router(), service),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router returns the route tree without the tracing wrapper.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/status/{domain}", s.handleDomainStatus)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "healthy",
		"service":    s.service,
		"discovered": s.status.Discovered(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handleDomainStatus(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	names, ok := s.status.Status()[domain]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown domain " + domain})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"domain": domain, "providers": names})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down within the
// configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{"address": ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server", map[string]interface{}{"timeout": timeout.String()})
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
