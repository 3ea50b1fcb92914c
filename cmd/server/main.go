package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matchflow/internal/pipeline/handler"
	pipelinemetrics "matchflow/internal/pipeline/metrics"
	"matchflow/internal/pipeline/service"
	"matchflow/internal/platform/config"
	"matchflow/internal/platform/httpserver"
	"matchflow/internal/platform/logger"
	"matchflow/internal/platform/metrics"
	"matchflow/internal/platform/middleware"
	"matchflow/pkg/platform/httputil"
	"matchflow/pkg/platform/middleware/metadata"
	"matchflow/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// main loads configuration, wires the pipeline and serves until SIGINT or
// SIGTERM. Business logic lives in internal/pipeline.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("matchflow stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := pipelinemetrics.New(reg)
	httpMetrics := metrics.New(reg)

	deps, err := buildInfra(ctx, cfg, log, pipelineMetrics)
	if err != nil {
		return err
	}
	defer deps.close(log, cfg.Server.ShutdownTimeout)

	svc := service.New(deps.matches, deps.directory,
		service.WithLogger(log),
		service.WithMetrics(pipelineMetrics),
		service.WithNotificationSink(deps.sink),
		service.WithMaxAttempts(cfg.Pipeline.TransitionMaxAttempts),
		service.WithBulkConcurrency(cfg.Pipeline.BulkConcurrency),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.LatencyMiddleware(httpMetrics))
	r.Use(middleware.Actor)

	r.Get("/health", healthHandler(deps))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handler.New(svc, log).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r, log)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting matchflow",
			"addr", cfg.Server.Addr,
			"store", deps.storeKind,
			"notification_sink", cfg.Notifications.Sink,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("matchflow stopped")
	return nil
}

func healthHandler(deps *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"store": deps.storeKind}
		healthy := true
		if deps.db != nil {
			if err := deps.db.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			} else {
				checks["postgres"] = "ok"
			}
		}
		if deps.redis != nil {
			if err := deps.redis.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		deps.notificationChecks(checks)

		code := http.StatusOK
		checks["status"] = "ok"
		if !healthy {
			code = http.StatusServiceUnavailable
			checks["status"] = "degraded"
		}
		httputil.WriteJSON(w, code, checks)
	}
}
