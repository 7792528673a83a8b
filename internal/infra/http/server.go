package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes liveness, readiness and Prometheus metrics for the worker.
type Server struct {
	port   int
	checks map[string]Pinger
	log    *zerolog.Logger
	server *http.Server
}

// NewServer builds the admin server. checks are pinged by /readyz.
func NewServer(port int, checks map[string]Pinger, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "admin_http").Logger()
	return &Server{port: port, checks: checks, log: &l}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(5*time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for name, c := range s.checks {
		if err := c.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			http.Error(w, fmt.Sprintf("%s: unavailable", name), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.port).Msg("admin server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
