package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel).With("component", "notification-worker")

	if cfg.UseMemoryQueue || cfg.NotificationQueueURL == "" {
		logger.Error("notification worker requires USE_MEMORY_QUEUE=false and NOTIFICATION_QUEUE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue, _, err := bootstrap.BuildQueue(ctx, cfg)
	if err != nil {
		logger.Error("failed to build queue", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(reg)
	worker, err := bootstrap.BuildWorker(ctx, cfg, queue, bookingMetrics, logger)
	if err != nil {
		logger.Error("failed to build worker", "error", err)
		os.Exit(1)
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	worker.Start(ctx)
	logger.Info("notification worker started", "queue_url", cfg.NotificationQueueURL, "workers", cfg.WorkerCount)

	<-ctx.Done()
	logger.Info("notification worker shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	worker.Wait()
	logger.Info("notification worker stopped")
}
