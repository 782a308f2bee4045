package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the scanner process.
type Config struct {
	// Mode
	Debug bool

	// Upstream collaborators
	FeedURL          string
	ReferenceAPIURL  string
	ReferenceRefresh time.Duration

	// Engine
	EvalInterval time.Duration
	Retention    time.Duration
	Symbols      []string

	// Notifications
	TelegramToken  string
	TelegramChatID int64

	// Database (sqlite path or postgres:// URL; empty disables persistence)
	DatabasePath string

	// Initial admin-tunable thresholds
	Thresholds Thresholds
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		FeedURL:          getEnv("FEED_WS_URL", "wss://socket.polygon.io/stocks"),
		ReferenceAPIURL:  getEnv("REFERENCE_API_URL", "https://api.polygon.io"),
		ReferenceRefresh: getEnvDuration("REFERENCE_REFRESH", 60*time.Second),

		EvalInterval: getEnvDuration("EVAL_INTERVAL", 2*time.Second),
		Retention:    getEnvDuration("TICK_RETENTION", 15*time.Minute),
		Symbols:      splitList(getEnv("SYMBOLS", "")),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabasePath: getEnv("DATABASE_PATH", "data/scanner.db"),

		Thresholds: DefaultThresholds(),
	}

	// A few thresholds are tunable at boot; everything else changes through
	// the admin update path at runtime.
	cfg.Thresholds.Spike.MinDollarVolume = getEnvDecimal("SPIKE_MIN_DOLLAR_VOLUME", cfg.Thresholds.Spike.MinDollarVolume)
	cfg.Thresholds.Spike.PriceCeiling = getEnvDecimal("SPIKE_PRICE_CEILING", cfg.Thresholds.Spike.PriceCeiling)
	cfg.Thresholds.Dispatch.QueueSize = getEnvInt("ALERT_QUEUE_SIZE", cfg.Thresholds.Dispatch.QueueSize)
	cfg.Thresholds.Dispatch.RatePerMinute = getEnvInt("ALERT_RATE_PER_MINUTE", cfg.Thresholds.Dispatch.RatePerMinute)

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	return cfg, nil
}

// Helper functions

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
