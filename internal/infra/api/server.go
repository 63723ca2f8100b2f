package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"track-billing/internal/config"
	"track-billing/internal/infra/api/apiv1"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Server is the public HTTP surface: /api/v1, /health and /metrics.
type Server struct {
	cfg    config.HTTPConfig
	router *chi.Mux
	srv    *http.Server
	log    *zerolog.Logger
}

func NewServer(cfg config.HTTPConfig, v1 *apiv1.Server, auth *apiv1.Authenticator, health HealthFunc, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				l.Warn().Err(err).Msg("health check failed")
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	apiv1.RegisterAPIV1(r, v1, auth)

	return &Server{cfg: cfg, router: r, log: &l}
}

// Handler is the router wrapped in the request middlewares.
func (s *Server) Handler() http.Handler {
	return Chain(s.router,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.cfg.RequestTimeout),
	)
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
