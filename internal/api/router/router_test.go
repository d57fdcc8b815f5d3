package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/calendar"
	"github.com/wolfman30/clinic-booking/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const testSecret = "router-secret"

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	repo := appointments.NewMemoryRepository()
	cal := calendar.NewMemoryStore(schedule.DefaultWeek())
	now := time.Date(2025, 12, 22, 10, 10, 0, 0, time.UTC)
	resolver := availability.NewResolver(cal, repo, availability.Options{
		Policy:  availability.Policy{GranularityMinutes: 30, MinLead: 30 * time.Minute, Location: time.UTC},
		Now:     func() time.Time { return now },
		Metrics: m,
		Logger:  logger,
	})
	svc := booking.NewService(repo, resolver, booking.Options{Metrics: m, Logger: logger})

	cfg := &Config{
		Logger:          logger,
		Availability:    handlers.NewAvailabilityHandler(resolver, logger),
		Appointments:    handlers.NewAppointmentHandler(svc, logger),
		Calendar:        handlers.NewCalendarHandler(cal, logger),
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret: testSecret,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "recepcion",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterHealthReportsFailedDependency(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.HealthCheck = func(context.Context) error { return errors.New("postgres down") }
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestRouterAvailableSlots(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/available-slots/2025-12-23", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp struct {
		AvailableSlots []string `json:"availableSlots"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.AvailableSlots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(resp.AvailableSlots))
	}
}

func TestRouterBookingFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	body, _ := json.Marshal(map[string]string{
		"full_name": "Luis Ramírez",
		"phone":     "5587654321",
		"date":      "2025-12-23",
		"time":      "09:30",
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	var created struct {
		Appointment appointments.Appointment `json:"appointment"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/appointments/"+created.Appointment.ID+"/approve", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !bytes.Contains(rr.Body.Bytes(), []byte("clinic_booking_operations_total")) {
		t.Fatalf("expected booking metrics to be exported")
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, nil)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/admin/appointments"},
		{http.MethodGet, "/api/admin/business-hours"},
		{http.MethodPut, "/api/admin/business-hours/monday"},
		{http.MethodPost, "/api/admin/schedule-exceptions"},
		{http.MethodDelete, "/api/admin/schedule-exceptions/abc"},
	}
	for _, p := range paths {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(p.method, p.path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected status %d, got %d", p.method, p.path, http.StatusUnauthorized, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/business-hours", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterRateLimitsBookingWrites(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.BookingLimiter = httpmiddleware.NewRateLimiter(1, 1)
	})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader([]byte(`{}`)))
		req.RemoteAddr = "198.51.100.4:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post(); code != http.StatusBadRequest {
		t.Fatalf("expected first request to reach the handler, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be limited, got %d", code)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/available-slots/2025-12-23", nil)
	req.RemoteAddr = "198.51.100.4:1234"
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected reads to bypass the limiter, got %d", rr.Code)
	}
}
