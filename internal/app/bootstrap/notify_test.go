package bootstrap

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

func awsTestConfig(t *testing.T) *appconfig.Config {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	return &appconfig.Config{
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}
}

func TestBuildQueueMemory(t *testing.T) {
	queue, memory, err := BuildQueue(context.Background(), &appconfig.Config{UseMemoryQueue: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if memory == nil || queue != notify.Queue(memory) {
		t.Fatalf("expected the memory queue to be returned twice")
	}
}

func TestBuildQueueSQS(t *testing.T) {
	cfg := awsTestConfig(t)
	if _, _, err := BuildQueue(context.Background(), cfg); err == nil {
		t.Fatalf("expected error without queue url")
	}

	cfg.NotificationQueueURL = "http://localhost:4566/000000000000/clinic-notifications"
	cfg.AWSEndpointOverride = "http://localhost:4566"
	queue, memory, err := BuildQueue(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if memory != nil {
		t.Fatalf("expected no memory queue for SQS path")
	}
	if _, ok := queue.(*notify.SQSQueue); !ok {
		t.Fatalf("expected SQS queue, got %T", queue)
	}
}

func TestBuildSMSSender(t *testing.T) {
	logger := logging.New("error")

	if _, provider := BuildSMSSender(&appconfig.Config{}, logger); provider != "log" {
		t.Fatalf("expected log sender without credentials, got %s", provider)
	}

	cfg := &appconfig.Config{TwilioAccountSID: "AC123", TwilioAuthToken: "token", TwilioFromNumber: "+15550001111"}
	sender, provider := BuildSMSSender(cfg, logger)
	if provider != "twilio" {
		t.Fatalf("expected twilio sender, got %s", provider)
	}
	if _, ok := sender.(*notify.TwilioSender); !ok {
		t.Fatalf("expected *notify.TwilioSender, got %T", sender)
	}
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	tests := []struct {
		name    string
		cfg     *appconfig.Config
		wantNil bool
		wantErr bool
	}{
		{name: "disabled", cfg: &appconfig.Config{EmailProvider: "none"}, wantNil: true},
		{name: "stub", cfg: &appconfig.Config{EmailProvider: "stub"}},
		{name: "sendgrid without key", cfg: &appconfig.Config{EmailProvider: "sendgrid"}, wantErr: true},
		{name: "sendgrid", cfg: &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.test", EmailFromAddress: "citas@example.com"}},
		{name: "ses without sender", cfg: &appconfig.Config{EmailProvider: "ses"}, wantErr: true},
		{name: "unknown", cfg: &appconfig.Config{EmailProvider: "pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := BuildEmailSender(context.Background(), tt.cfg, logger)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (sender == nil) != tt.wantNil {
				t.Fatalf("expected nil=%v, got %T", tt.wantNil, sender)
			}
		})
	}
}

func TestBuildEmailSenderSES(t *testing.T) {
	cfg := awsTestConfig(t)
	cfg.EmailProvider = "ses"
	cfg.EmailFromAddress = "citas@example.com"

	sender, err := BuildEmailSender(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sender.(*notify.SESSender); !ok {
		t.Fatalf("expected SES sender, got %T", sender)
	}
}

func TestBuildWorkerStartsAndStops(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryQueue: true, WorkerCount: 1, EmailProvider: "none", ClinicName: "Clínica Norte"}
	queue, _, err := BuildQueue(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	worker, err := BuildWorker(context.Background(), cfg, queue, nil, logging.New("error"))
	if err != nil {
		t.Fatalf("build worker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	cancel()
	worker.Wait()
}
