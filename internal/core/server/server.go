// Package server wires the chi router and runs the HTTP listener.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vikstrand/aqhistory/internal/core/config"
	"github.com/vikstrand/aqhistory/internal/core/middleware"
	"github.com/vikstrand/aqhistory/internal/core/router"
	"github.com/vikstrand/aqhistory/internal/health"
	"github.com/vikstrand/aqhistory/internal/history"
)

// Run sets up routing and serves until the context is cancelled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, svc *history.Service) error {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/history", router.HandleFetch(logger, svc))
	r.Get("/history/key", router.HandleQueryKey(logger, svc))
	r.Post("/history/prefetch", router.HandlePrefetch(logger, svc))
	r.Delete("/history", router.HandleInvalidate(logger, svc))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
