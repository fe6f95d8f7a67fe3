package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig indicates how many navigations are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates scraper-wide configuration values.
type Config struct {
	DatabaseURL       string
	ProxyListPath     string
	UserAgentsPath    string
	Headless          bool
	MinDelay          time.Duration
	MaxDelay          time.Duration
	DetailTimeout     time.Duration
	MaxDetailAttempts int
	BackoffUnit       time.Duration
	NavRateLimit      RateLimitConfig
	PhoneStripPattern string
	UpsertOnInsert    bool
}

// Load reads configuration from environment variables and applies the
// defaults the scraper ships with.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		ProxyListPath:     os.Getenv("PROXY_LIST_PATH"),
		UserAgentsPath:    os.Getenv("USER_AGENTS_PATH"),
		Headless:          parseBool(getEnv("HEADLESS", "true")),
		MinDelay:          parseMillis(getEnv("MIN_DELAY_MS", "1000")),
		MaxDelay:          parseMillis(getEnv("MAX_DELAY_MS", "3500")),
		DetailTimeout:     parseMillis(getEnv("DETAIL_TIMEOUT_MS", "20000")),
		BackoffUnit:       parseMillis(getEnv("BACKOFF_UNIT_MS", "2000")),
		PhoneStripPattern: getEnv("PHONE_STRIP_PATTERN", ""),
		UpsertOnInsert:    parseBool(getEnv("DB_UPSERT_ON_INSERT", "true")),
	}

	attempts, err := strconv.Atoi(getEnv("MAX_DETAIL_ATTEMPTS", "3"))
	if err != nil || attempts <= 0 {
		return nil, fmt.Errorf("invalid MAX_DETAIL_ATTEMPTS value: %q", getEnv("MAX_DETAIL_ATTEMPTS", "3"))
	}
	cfg.MaxDetailAttempts = attempts

	if cfg.MinDelay > cfg.MaxDelay {
		return nil, fmt.Errorf("MIN_DELAY_MS (%s) exceeds MAX_DELAY_MS (%s)", cfg.MinDelay, cfg.MaxDelay)
	}

	if raw := os.Getenv("NAV_RATE_LIMIT"); raw != "" {
		rl, err := parseRateLimit(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid NAV_RATE_LIMIT value: %w", err)
		}
		cfg.NavRateLimit = rl
	}

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseBool(input string) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(input))
	if err != nil {
		return false
	}
	return val
}

func parseMillis(input string) time.Duration {
	ms, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
