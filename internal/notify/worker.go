package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeout        = 5 * time.Second
	defaultDeliveryLimit = 30 * time.Second
)

// WorkerConfig tunes the consumer.
type WorkerConfig struct {
	ClinicName         string
	StaffRecipients    []string
	Workers            int
	ReceiveWaitSeconds int
	BatchSize          int
}

func (c WorkerConfig) normalized() WorkerConfig {
	if c.Workers <= 0 {
		c.Workers = defaultWorkerCount
	}
	if c.ReceiveWaitSeconds <= 0 {
		c.ReceiveWaitSeconds = defaultWaitSeconds
	}
	if c.ReceiveWaitSeconds > maxWaitSeconds {
		c.ReceiveWaitSeconds = maxWaitSeconds
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchSize > maxReceiveBatchSize {
		c.BatchSize = maxReceiveBatchSize
	}
	if c.ClinicName == "" {
		c.ClinicName = defaultFromName
	}
	return c
}

// Worker consumes notification events and delivers them. Each message gets
// one delivery attempt per channel and is deleted afterwards.
type Worker struct {
	queue   Queue
	sms     SMSSender
	email   EmailSender
	cfg     WorkerConfig
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
	wg      sync.WaitGroup
}

// NewWorker wires a worker. email may be nil to skip patient emails.
func NewWorker(queue Queue, sms SMSSender, email EmailSender, cfg WorkerConfig, m *metrics.BookingMetrics, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	if sms == nil {
		sms = NewLogSMSSender(logger)
	}
	return &Worker{
		queue:   queue,
		sms:     sms,
		email:   email,
		cfg:     cfg.normalized(),
		metrics: m,
		logger:  logger,
	}
}

// Start launches the consumer goroutines. They exit when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		}

		messages, err := w.queue.Receive(ctx, w.cfg.BatchSize, w.cfg.ReceiveWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive notification events", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	defer w.deleteMessage(msg.ReceiptHandle)

	evt, err := decodeEvent(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable notification", "error", err, "msg_id", msg.ID)
		w.metrics.ObserveNotification("queue", "dropped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDeliveryLimit)
	defer cancel()
	w.Deliver(ctx, evt)
}

// Deliver sends every message evt calls for. Failures are logged and counted.
func (w *Worker) Deliver(ctx context.Context, evt Event) {
	appt := evt.Appointment
	logger := w.logger.With("event_type", evt.Type, "appointment_id", appt.ID)

	if appt.Phone != "" {
		w.record("sms", logger, w.sms.SendSMS(ctx, appt.Phone, PatientSMS(w.cfg.ClinicName, evt)))
	}
	if appt.Email != "" && w.email != nil {
		w.record("email", logger, w.email.Send(ctx, PatientEmail(w.cfg.ClinicName, evt)))
	}
	if body, ok := StaffSMS(evt); ok {
		for _, to := range w.cfg.StaffRecipients {
			w.record("staff_sms", logger, w.sms.SendSMS(ctx, to, body))
		}
	}
}

func (w *Worker) record(channel string, logger *logging.Logger, err error) {
	if err != nil {
		w.metrics.ObserveNotification(channel, "failed")
		logger.Error("notification delivery failed", "channel", channel, "error", err)
		return
	}
	w.metrics.ObserveNotification(channel, "sent")
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification message", "error", err)
	}
}
