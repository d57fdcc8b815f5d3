package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const healthTimeout = 2 * time.Second

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Availability   *handlers.AvailabilityHandler
	Appointments   *handlers.AppointmentHandler
	Calendar       *handlers.CalendarHandler
	MetricsHandler http.Handler
	// HealthCheck, when set, backs /health with a dependency probe.
	HealthCheck func(ctx context.Context) error

	AdminAuthSecret    string
	CORSAllowedOrigins []string
	// BookingLimiter throttles public booking writes per client IP. Nil disables it.
	BookingLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(logger))

	// Public endpoints
	r.Get("/health", healthHandler(cfg.HealthCheck, logger))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.Availability != nil {
			api.Get("/available-slots/{date}", cfg.Availability.GetSlots)
			api.Get("/available-dates", cfg.Availability.GetDates)
		}

		if cfg.Appointments != nil {
			api.Route("/appointments", func(appts chi.Router) {
				var limits []func(http.Handler) http.Handler
				if cfg.BookingLimiter != nil {
					limits = append(limits, httpmiddleware.RateLimit(cfg.BookingLimiter))
				}
				writes := appts.With(limits...)
				writes.Post("/", cfg.Appointments.Create)
				writes.Put("/{id}", cfg.Appointments.Reschedule)
				writes.Post("/{id}/cancel", cfg.Appointments.Cancel)
				appts.Get("/{id}", cfg.Appointments.Get)
			})
		}

		// Staff routes (HMAC JWT)
		api.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			if cfg.Appointments != nil {
				admin.Get("/appointments", cfg.Appointments.List)
				admin.Post("/appointments/{id}/approve", cfg.Appointments.Approve)
				admin.Post("/appointments/{id}/complete", cfg.Appointments.Complete)
				admin.Post("/appointments/{id}/cancel", cfg.Appointments.Cancel)
			}
			if cfg.Calendar != nil {
				admin.Get("/business-hours", cfg.Calendar.GetBusinessHours)
				admin.Put("/business-hours/{day_of_week}", cfg.Calendar.PutBusinessHours)
				admin.Get("/schedule-exceptions", cfg.Calendar.ListExceptions)
				admin.Post("/schedule-exceptions", cfg.Calendar.CreateException)
				admin.Put("/schedule-exceptions/{id}", cfg.Calendar.UpdateException)
				admin.Delete("/schedule-exceptions/{id}", cfg.Calendar.DeleteException)
			}
		})
	})

	return r
}

func healthHandler(check func(ctx context.Context) error, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.Error("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
