package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for availability, booking and notification flows.
type BookingMetrics struct {
	availabilityTotal   *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
	bookingTotal        *prometheus.CounterVec
	slotConflicts       prometheus.Counter
	notificationsTotal  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "availability",
			Name:      "requests_total",
			Help:      "Availability resolutions by outcome",
		}, []string{"outcome"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "availability",
			Name:      "latency_seconds",
			Help:      "Latency of availability resolution including store reads",
			Buckets:   prometheus.DefBuckets,
		}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Writes rejected by the active-slot uniqueness constraint",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Notification deliveries by channel and status",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.availabilityTotal, m.availabilityLatency, m.bookingTotal, m.slotConflicts, m.notificationsTotal)
	return m
}

func (m *BookingMetrics) ObserveAvailability(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(outcome).Inc()
	m.availabilityLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveBooking(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *BookingMetrics) ObserveNotification(channel, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(channel, status).Inc()
}
