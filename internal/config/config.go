// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; required for the server and migrate commands.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; optional, only for local token minting.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; required to validate tokens from the auth provider.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim (e.g. "thodemy-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim (e.g. "thodemy-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// ApprovalTimeout is how long a login attempt waits for a decision (e.g. "60s").
	ApprovalTimeout string `mapstructure:"APPROVAL_TIMEOUT"`
	// ApprovalPollInterval is the cadence of the status poll loop (e.g. "2s").
	ApprovalPollInterval string `mapstructure:"APPROVAL_POLL_INTERVAL"`
	// ApprovalRetention is how long a pending request may exist before the sweep
	// expires it. Must exceed ApprovalTimeout so the sweep never races a live wait.
	ApprovalRetention string `mapstructure:"APPROVAL_RETENTION"`
	// SweepInterval is the cadence of the expiry sweep (e.g. "1m").
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// DeviceStatePath is where the per-installation device id is persisted.
	DeviceStatePath string `mapstructure:"DEVICE_STATE_PATH"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. When set,
	// approval decisions and telemetry events are published to Kafka; when empty
	// the server runs with the in-process channel only.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// ApprovalKafkaTopic is the Kafka topic for approval decision events.
	ApprovalKafkaTopic string `mapstructure:"APPROVAL_KAFKA_TOPIC"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// OTLPEndpoint is the OTLP gRPC endpoint for traces/metrics/logs; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "thodemy-auth")
	v.SetDefault("JWT_AUDIENCE", "thodemy-api")
	v.SetDefault("APPROVAL_TIMEOUT", "60s")
	v.SetDefault("APPROVAL_POLL_INTERVAL", "2s")
	v.SetDefault("APPROVAL_RETENTION", "10m")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("DEVICE_STATE_PATH", ".thodemy-device")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("APPROVAL_KAFKA_TOPIC", "thodemy-approval-events")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "thodemy-telemetry")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.ApprovalRetentionDuration() <= cfg.ApprovalTimeoutDuration() {
		return nil, errors.New("config: APPROVAL_RETENTION must be longer than APPROVAL_TIMEOUT")
	}

	return &cfg, nil
}

// ApprovalTimeoutDuration parses ApprovalTimeout. Returns 60s if unset or invalid.
func (c *Config) ApprovalTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ApprovalTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// ApprovalPollIntervalDuration parses ApprovalPollInterval. Returns 2s if unset or invalid.
func (c *Config) ApprovalPollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.ApprovalPollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// ApprovalRetentionDuration parses ApprovalRetention. Returns 10m if unset or invalid.
func (c *Config) ApprovalRetentionDuration() time.Duration {
	d, err := time.ParseDuration(c.ApprovalRetention)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// SweepIntervalDuration parses SweepInterval. Returns 1m if unset or invalid.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka is enabled (non-empty list) and to create writers/readers.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
