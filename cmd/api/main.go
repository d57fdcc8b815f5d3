package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking/internal/api/router"
	"github.com/wolfman30/clinic-booking/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/booking"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	shutdownTimeout = 30 * time.Second
	workerDrainTime = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting clinic-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.ClinicTimezone,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	calendarStore := bootstrap.BuildCalendarStore(pool, redisClient, cfg, logger)
	repo := bootstrap.BuildAppointmentRepository(pool, logger)

	// Notifications
	metricsHandler, bookingMetrics := setupMetrics()
	queue, memoryQueue, err := bootstrap.BuildQueue(ctx, cfg)
	if err != nil {
		logger.Error("failed to build notification queue", "error", err)
		os.Exit(1)
	}
	publisher := notify.NewPublisher(queue, cfg.NotificationPublishTimeout, bookingMetrics, logger)
	worker, err := setupInlineWorker(ctx, cfg, memoryQueue, bookingMetrics, logger)
	if err != nil {
		logger.Error("failed to start inline notification worker", "error", err)
		os.Exit(1)
	}

	// Services
	resolver := availability.NewResolver(calendarStore, repo, availability.Options{
		Policy: availability.Policy{
			GranularityMinutes: cfg.SlotGranularityMinutes,
			MinLead:            time.Duration(cfg.MinLeadMinutes) * time.Minute,
			Location:           cfg.Location(),
		},
		StoreTimeout: cfg.StoreTimeout,
		Metrics:      bookingMetrics,
		Logger:       logger,
	})
	bookingService := booking.NewService(repo, resolver, booking.Options{
		ConflictRetries: cfg.BookingConflictRetries,
		Notifier:        publisher,
		Metrics:         bookingMetrics,
		Logger:          logger,
	})

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		Availability:       handlers.NewAvailabilityHandler(resolver, logger),
		Appointments:       handlers.NewAppointmentHandler(bookingService, logger),
		Calendar:           handlers.NewCalendarHandler(calendarStore, logger),
		MetricsHandler:     metricsHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		BookingLimiter:     httpmiddleware.NewRateLimiter(cfg.BookingRateLimitPerMinute, cfg.BookingRateLimitPerMinute/2),
	}
	if pool != nil {
		routerCfg.HealthCheck = pool.Ping
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin endpoints will reject every request")
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	waitForInlineWorker(worker, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers booking metrics on a private registry and returns its handler.
func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(reg)
}

// setupInlineWorker runs the notification worker in-process when events go
// through the memory queue. With SQS a separate notification-worker consumes them.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, memoryQueue *notify.MemoryQueue, m *metrics.BookingMetrics, logger *logging.Logger) (*notify.Worker, error) {
	if memoryQueue == nil {
		return nil, nil
	}
	worker, err := bootstrap.BuildWorker(ctx, cfg, memoryQueue, m, logger)
	if err != nil {
		return nil, err
	}
	worker.Start(ctx)
	logger.Info("inline notification worker started", "workers", cfg.WorkerCount)
	return worker, nil
}

func waitForInlineWorker(worker *notify.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline notification worker stopped")
	case <-time.After(workerDrainTime):
		logger.Warn("inline notification worker did not stop in time")
	}
}
