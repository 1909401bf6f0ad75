// Package api serves the dashboard: the HTTP API for health, config, logs and
// run triggers, plus the built web UI.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/s0up4200/deletarr-go/internal/logger"
	"github.com/s0up4200/deletarr-go/internal/metrics"
	"github.com/s0up4200/deletarr-go/internal/pruner"
)

// Dependencies are the components the API reads from and triggers.
type Dependencies struct {
	Coordinator *pruner.Coordinator
	// ConfigPath is where PUT /api/config persists the new config
	ConfigPath string
	Logs       *logger.RingBuffer
	Metrics    *metrics.Recorder
	// Connect opens a download client session for health checks. Defaults to client.New.
	Connect pruner.ConnectFunc
	Version string
	// Env is reported by /api/health, empty when unset
	Env string
	// WebDir holds the built dashboard. Empty disables the web UI
	WebDir string
}

type Server struct {
	deps Dependencies
}

func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	h := newHandlers(s.deps)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			RespondError(w, http.StatusNotFound, "Not found")
		})

		r.Get("/health", h.health)
		r.Get("/health/services", h.servicesHealth)
		r.Get("/config", h.getConfig)
		r.Put("/config", h.updateConfig)
		r.Get("/logs", h.logs)
		r.Get("/dry-run", h.dryRun)
		r.Post("/run", h.run)
	})

	r.Handle("/metrics", s.deps.Metrics.Handler())

	if web := newWebHandler(s.deps.WebDir); web != nil {
		r.NotFound(web.ServeHTTP)
	}

	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, host string, port int) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to serve API: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info().Msg("shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}
