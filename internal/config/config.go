// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fallback policies for invoice writes.
const (
	FallbackAny       = "any"
	FallbackTransient = "transient"
)

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// MinSessionSecretLength is the minimum length of SESSION_SECRET.
const MinSessionSecretLength = 32

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL        string
	ListenAddr         string
	SessionSecret      string
	SessionTTL         time.Duration
	LogLevel           string
	LogFormat          string
	FirestoreProjectID string
	IdentityEnabled    bool
	InvoiceFallback    string
	ToastDuration      time.Duration
	OTelExporter       string
	OTelProtocol       string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		LogFormat:          os.Getenv("LOG_FORMAT"),
		FirestoreProjectID: strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID")),
		OTelProtocol:       os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.IdentityEnabled = os.Getenv("IDENTITY_ENABLED") == "true"

	cfg.InvoiceFallback = FallbackAny
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("INVOICE_FALLBACK"))); v != "" {
		cfg.InvoiceFallback = v
	}

	cfg.OTelExporter = ExporterNone
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER"))); v != "" {
		cfg.OTelExporter = v
	}
	if cfg.OTelProtocol == "" {
		cfg.OTelProtocol = "http/protobuf"
	}

	cfg.ToastDuration = 3 * time.Second
	if v := os.Getenv("TOAST_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ToastDuration = d
		}
	}

	cfg.SessionTTL = 30 * 24 * time.Hour
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.SessionSecret == "" {
		errs = append(errs, "SESSION_SECRET is required")
	} else if len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Sprintf("SESSION_SECRET must be at least %d characters", MinSessionSecretLength))
	}

	switch c.InvoiceFallback {
	case FallbackAny, FallbackTransient:
	default:
		errs = append(errs, fmt.Sprintf("INVOICE_FALLBACK must be %q or %q", FallbackAny, FallbackTransient))
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of %s, %s, %s", ExporterNone, ExporterStdout, ExporterOTLP))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// RemoteConfigured reports whether a remote document store is configured.
func (c *Config) RemoteConfigured() bool {
	return c.FirestoreProjectID != ""
}
