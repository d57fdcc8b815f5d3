package notify

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const defaultPublishTimeout = 2 * time.Second

// Publisher enqueues events for the worker. It is the booking service's
// notifier: a failed enqueue is logged and counted, never returned as a
// booking failure.
type Publisher struct {
	queue   Queue
	timeout time.Duration
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewPublisher creates a Publisher. timeout <= 0 uses two seconds.
func NewPublisher(queue Queue, timeout time.Duration, m *metrics.BookingMetrics, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Publisher{queue: queue, timeout: timeout, metrics: m, logger: logger}
}

// Dispatch encodes evt and sends it. The request context's cancellation is
// ignored so a client disconnect after commit does not drop the event.
func (p *Publisher) Dispatch(ctx context.Context, evt Event) error {
	body, err := encodeEvent(evt)
	if err != nil {
		p.metrics.ObserveNotification("queue", "failed")
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.queue.Send(ctx, body); err != nil {
		p.metrics.ObserveNotification("queue", "failed")
		p.logger.Error("notify: enqueue failed", "error", err, "event_type", evt.Type, "appointment_id", evt.Appointment.ID)
		return err
	}
	p.metrics.ObserveNotification("queue", "enqueued")
	return nil
}
