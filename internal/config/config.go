package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	// Clinic timezones must resolve in minimal containers without zoneinfo.
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Scheduling policy
	ClinicName             string
	ClinicTimezone         string
	SlotGranularityMinutes int
	MinLeadMinutes         int
	BookingConflictRetries int
	StoreTimeout           time.Duration
	HoursCacheTTL          time.Duration

	// Notification dispatch
	UseMemoryQueue             bool
	NotificationQueueURL       string
	NotificationPublishTimeout time.Duration
	WorkerCount                int
	StaffSMSRecipients         []string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Email provider: "sendgrid", "ses", "stub" or "none"
	EmailProvider    string
	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string

	AdminJWTSecret            string
	CORSAllowedOrigins        []string
	BookingRateLimitPerMinute int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ClinicName:             getEnv("CLINIC_NAME", "Clínica"),
		ClinicTimezone:         getEnv("CLINIC_TIMEZONE", "America/Mexico_City"),
		SlotGranularityMinutes: getEnvAsInt("SLOT_GRANULARITY_MINUTES", 30),
		MinLeadMinutes:         getEnvAsInt("MIN_LEAD_MINUTES", 30),
		BookingConflictRetries: getEnvAsInt("BOOKING_CONFLICT_RETRIES", 1),
		StoreTimeout:           getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
		HoursCacheTTL:          getEnvAsDuration("HOURS_CACHE_TTL", 10*time.Minute),

		UseMemoryQueue:             getEnvAsBool("USE_MEMORY_QUEUE", true),
		NotificationQueueURL:       getEnv("NOTIFICATION_QUEUE_URL", ""),
		NotificationPublishTimeout: getEnvAsDuration("NOTIFICATION_PUBLISH_TIMEOUT", 2*time.Second),
		WorkerCount:                getEnvAsInt("WORKER_COUNT", 2),
		StaffSMSRecipients:         getEnvAsList("STAFF_SMS_RECIPIENTS"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Clínica"),

		AdminJWTSecret:            getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS"),
		BookingRateLimitPerMinute: getEnvAsInt("BOOKING_RATE_LIMIT_PER_MINUTE", 30),
	}
}

// Validate rejects scheduling settings the engine cannot work with.
func (c *Config) Validate() error {
	if c.SlotGranularityMinutes <= 0 || c.SlotGranularityMinutes > 24*60 {
		return fmt.Errorf("config: SLOT_GRANULARITY_MINUTES must be between 1 and 1440, got %d", c.SlotGranularityMinutes)
	}
	if c.MinLeadMinutes < 0 {
		return fmt.Errorf("config: MIN_LEAD_MINUTES must not be negative, got %d", c.MinLeadMinutes)
	}
	if c.BookingConflictRetries < 0 {
		return fmt.Errorf("config: BOOKING_CONFLICT_RETRIES must not be negative, got %d", c.BookingConflictRetries)
	}
	if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
		return fmt.Errorf("config: CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	if !c.UseMemoryQueue && c.NotificationQueueURL == "" {
		return fmt.Errorf("config: NOTIFICATION_QUEUE_URL required when USE_MEMORY_QUEUE=false")
	}
	return nil
}

// Location returns the clinic timezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
