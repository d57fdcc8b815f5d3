package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var smsTracer = otel.Tracer("clinic.internal.notify.sms")

const (
	twilioAPIBase  = "https://api.twilio.com"
	maxSMSAttempts = 3
)

// SMSSender sends one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
	logger     *logging.Logger
}

// NewTwilioSender builds a sender. Returns nil when credentials are missing.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if accountSID == "" || authToken == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioAPIBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		backoff: func(int) time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
		logger: logger,
	}
}

// SendSMS dispatches a single SMS, retrying network errors, 429 and 5xx.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if to == "" {
		return errors.New("notify: sms recipient required")
	}
	if s.from == "" {
		return errors.New("notify: sms from number required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: sms body required")
	}

	ctx, span := smsTracer.Start(ctx, "notify.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.sms.to", to))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", body)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= maxSMSAttempts; attempt++ {
		retry, err := s.post(ctx, endpoint, payload)
		if err == nil {
			s.logger.Info("twilio sms sent", "to", to, "attempt", attempt)
			return nil
		}
		lastErr = err
		if !retry || attempt == maxSMSAttempts {
			break
		}
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}
	span.RecordError(lastErr)
	return lastErr
}

func (s *TwilioSender) post(ctx context.Context, endpoint string, payload url.Values) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	err = fmt.Errorf("notify: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, err
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

// LogSMSSender logs messages instead of sending them. Used when Twilio is not configured.
type LogSMSSender struct {
	logger *logging.Logger
}

func NewLogSMSSender(logger *logging.Logger) *LogSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info("sms disabled: would send", "to", to, "body", body)
	return nil
}

var (
	_ SMSSender = (*TwilioSender)(nil)
	_ SMSSender = (*LogSMSSender)(nil)
)
