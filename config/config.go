// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisURL    string // e.g. "redis://localhost:6379/0"
	DatabaseURL string // Postgres DSN; empty disables persistence
	MetricsAddr string

	// Consumption
	Streams       []string // market-data streams to read
	ConsumerGroup string
	ConsumerName  string
	BlockMs       int64
	BatchSize     int64

	// Strategy
	StrategyName string
	Symbols      []string // symbols the collector subscribes to
	FastWindow   int
	SlowWindow   int
	Interval     string // candle interval label, e.g. "1s"
	AckOnError   bool

	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first, never
// overriding already-exported variables.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	return &Config{
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MetricsAddr: getEnv("METRICS_ADDR", ":9091"),

		Streams:       splitList(getEnv("MD_STREAMS", "md:ticker,md:trade,md:orderbook")),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "strategy"),
		ConsumerName:  getEnv("CONSUMER_NAME", "strategy-1"),
		BlockMs:       getEnvInt64("CONSUMER_BLOCK_MS", 1000),
		BatchSize:     getEnvInt64("CONSUMER_BATCH", 10),

		StrategyName: getEnv("STRATEGY_NAME", "moving_average_cross"),
		Symbols:      splitList(getEnv("SYMBOLS", "BTC_JPY,ETH_JPY")),
		FastWindow:   getEnvInt("FAST_WINDOW", 5),
		SlowWindow:   getEnvInt("SLOW_WINDOW", 20),
		Interval:     getEnv("CANDLE_INTERVAL", "1s"),
		AckOnError:   getEnvBool("ACK_ON_ERROR", true),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid integer %q", key, v)
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("[config] %s: invalid integer %q", key, v)
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid boolean %q", key, v)
	}
	return b
}
