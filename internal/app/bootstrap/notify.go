package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildQueue returns the notification queue. The memory queue is returned
// separately so the API process can run an inline worker against it.
func BuildQueue(ctx context.Context, cfg *appconfig.Config) (notify.Queue, *notify.MemoryQueue, error) {
	if cfg.UseMemoryQueue {
		q := notify.NewMemoryQueue(memoryQueueBuffer)
		return q, q, nil
	}
	if cfg.NotificationQueueURL == "" {
		return nil, nil, fmt.Errorf("bootstrap: NOTIFICATION_QUEUE_URL is required")
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationQueueURL), nil, nil
}

// BuildSMSSender returns Twilio when credentials are configured and a
// log-only sender otherwise. The second value names the choice for startup logs.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) (notify.SMSSender, string) {
	if sender := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger); sender != nil {
		return sender, "twilio"
	}
	return notify.NewLogSMSSender(logger), "log"
}

// BuildEmailSender picks the patient email channel from EMAIL_PROVIDER.
// It returns nil when email is disabled.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "", "none":
		return nil, nil
	case "stub":
		return notify.NewStubEmailSender(logger), nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: SENDGRID_API_KEY is required for EMAIL_PROVIDER=sendgrid")
		}
		return sender, nil
	case "ses":
		if cfg.EmailFromAddress == "" {
			return nil, fmt.Errorf("bootstrap: EMAIL_FROM_ADDRESS is required for EMAIL_PROVIDER=ses")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), cfg.EmailFromAddress, cfg.EmailFromName, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

// BuildWorker assembles a notification worker from configuration.
func BuildWorker(ctx context.Context, cfg *appconfig.Config, queue notify.Queue, m *metrics.BookingMetrics, logger *logging.Logger) (*notify.Worker, error) {
	if logger == nil {
		logger = logging.Default()
	}
	sms, provider := BuildSMSSender(cfg, logger)
	email, err := BuildEmailSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("notification channels configured", "sms_provider", provider, "email_provider", cfg.EmailProvider)
	return notify.NewWorker(queue, sms, email, notify.WorkerConfig{
		ClinicName:      cfg.ClinicName,
		StaffRecipients: cfg.StaffSMSRecipients,
		Workers:         cfg.WorkerCount,
	}, m, logger), nil
}
