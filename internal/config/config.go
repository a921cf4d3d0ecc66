// Package config loads runtime settings from an optional .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxInferenceTimeout bounds a single post-analysis inference call.
const MaxInferenceTimeout = 10 * time.Second

// Config holds all runtime settings for the monitor.
type Config struct {
	// Storage. Empty DSNs select in-memory stores.
	PostgresDSN        string
	ClickHouseDSN      string
	ClickHouseDatabase string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	// Signal publishing. No brokers disables publishing.
	KafkaBrokers []string
	KafkaTopic   string

	// Inference gateway.
	InferenceEndpoint string
	InferenceAPIKey   string
	InferenceModel    string
	VisionModel       string
	InferenceTimeout  time.Duration
	InferenceMinGap   time.Duration

	// Market data.
	DexScreenerURL string
	PriceCacheTTL  time.Duration

	// Feed.
	FeedURL     string
	FeedHandles []string
	Workers     int

	// Quick filter.
	LikesThreshold    int64
	RetweetsThreshold int64

	// Scoring and side effects.
	SignalThreshold   float64
	ScheduleThreshold float64
	WindowDays        int

	// Follow-up.
	FollowUpDelay       time.Duration
	FollowUpInterval    time.Duration
	FollowUpMaxAttempts int
	MinImpactThreshold  float64
	FollowUpRetention   time.Duration

	// HTTP.
	MetricsAddr string
}

// Load reads envPath (if it exists) into the environment, then builds a Config.
// Variables already set in the environment win over the file.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		} else if err != nil {
			log.Printf("[config] %s not found, using environment only", envPath)
		}
	}

	cfg := &Config{
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN:      getEnv("CLICKHOUSE_DSN", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "memecoin"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),

		KafkaBrokers: getEnvCSV("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "memecoin.signals"),

		InferenceEndpoint: getEnv("INFERENCE_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
		InferenceAPIKey:   getEnv("INFERENCE_API_KEY", ""),
		InferenceModel:    getEnv("INFERENCE_MODEL", "gpt-4o-mini"),
		VisionModel:       getEnv("VISION_MODEL", "gpt-4o"),
		InferenceTimeout:  getEnvDuration("INFERENCE_TIMEOUT", MaxInferenceTimeout),
		InferenceMinGap:   getEnvDuration("INFERENCE_MIN_GAP", time.Second),

		DexScreenerURL: getEnv("DEXSCREENER_URL", "https://api.dexscreener.com"),
		PriceCacheTTL:  getEnvDuration("PRICE_CACHE_TTL", 5*time.Minute),

		FeedURL:     getEnv("FEED_URL", ""),
		FeedHandles: getEnvCSV("FEED_HANDLES"),
		Workers:     getEnvInt("WORKERS", 4),

		LikesThreshold:    int64(getEnvInt("LIKES_THRESHOLD", 5000)),
		RetweetsThreshold: int64(getEnvInt("RETWEETS_THRESHOLD", 1000)),

		SignalThreshold:   getEnvFloat("SIGNAL_THRESHOLD", 70),
		ScheduleThreshold: getEnvFloat("SCHEDULE_THRESHOLD", 50),
		WindowDays:        getEnvInt("HISTORY_WINDOW_DAYS", 180),

		FollowUpDelay:       getEnvDuration("FOLLOWUP_DELAY", 48*time.Hour),
		FollowUpInterval:    getEnvDuration("FOLLOWUP_INTERVAL", 5*time.Minute),
		FollowUpMaxAttempts: getEnvInt("FOLLOWUP_MAX_ATTEMPTS", 3),
		MinImpactThreshold:  getEnvFloat("MIN_IMPACT_THRESHOLD", 50),
		FollowUpRetention:   getEnvDuration("FOLLOWUP_RETENTION", 30*24*time.Hour),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that thresholds and counts are in range.
func (c *Config) Validate() error {
	for name, v := range map[string]float64{
		"SIGNAL_THRESHOLD":   c.SignalThreshold,
		"SCHEDULE_THRESHOLD": c.ScheduleThreshold,
	} {
		if v <= 0 || v > 100 {
			return fmt.Errorf("%s must be in (0,100], got %v", name, v)
		}
	}
	if c.ScheduleThreshold > c.SignalThreshold {
		return fmt.Errorf("SCHEDULE_THRESHOLD (%v) above SIGNAL_THRESHOLD (%v)", c.ScheduleThreshold, c.SignalThreshold)
	}
	if c.InferenceTimeout <= 0 || c.InferenceTimeout > MaxInferenceTimeout {
		return fmt.Errorf("INFERENCE_TIMEOUT must be in (0,%s], got %s", MaxInferenceTimeout, c.InferenceTimeout)
	}
	if c.FollowUpMaxAttempts < 1 {
		return fmt.Errorf("FOLLOWUP_MAX_ATTEMPTS must be at least 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1")
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("HISTORY_WINDOW_DAYS must be at least 1")
	}
	if c.MinImpactThreshold <= 0 {
		return fmt.Errorf("MIN_IMPACT_THRESHOLD must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
		log.Printf("[config] invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
		log.Printf("[config] invalid %s=%q, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
		log.Printf("[config] invalid %s=%q, using %s", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvCSV splits a comma-separated variable, dropping blanks.
func getEnvCSV(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
