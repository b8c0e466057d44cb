package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/money"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	StorageMode        string
	PostgresDSN        string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	DepositRateBps     int64
	TaxRateBps         int64
	DefaultCurrency    string
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageMode:      strings.ToLower(getEnv("STORAGE_MODE", StorageMemory)),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		DefaultCurrency:  strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	idempotencyTTL, err := parseDurationEnv("IDEMP_TTL", 168*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = idempotencyTTL

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	retryStr := getEnv("RETRY_BACKOFF", "50ms,200ms,1s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	depositBps, err := parseIntEnv("DEPOSIT_RATE_BPS", 2000)
	if err != nil {
		return Config{}, err
	}
	cfg.DepositRateBps = depositBps

	taxBps, err := parseIntEnv("TAX_RATE_BPS", 800)
	if err != nil {
		return Config{}, err
	}
	cfg.TaxRateBps = taxBps

	if cfg.StorageMode != StorageMemory && cfg.StorageMode != StoragePostgres {
		return Config{}, fmt.Errorf("unsupported STORAGE_MODE %q", cfg.StorageMode)
	}
	if cfg.StorageMode == StoragePostgres && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required when STORAGE_MODE=postgres")
	}
	if len(cfg.DefaultCurrency) != 3 {
		return Config{}, fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code")
	}
	return cfg, nil
}

// Rates exposes the policy percentages as the single pricing RateConfig used
// everywhere; handlers never restate the numbers.
func (c Config) Rates() pricing.RateConfig {
	return pricing.RateConfig{
		DepositRate: money.BasisPoints(c.DepositRateBps),
		TaxRate:     money.BasisPoints(c.TaxRateBps),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return n, nil
}
