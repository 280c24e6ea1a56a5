// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr     string
	LogLevel string

	// Upstream readings service.
	AirDataURL     string
	RemotePageSize int
	RemoteTimeout  time.Duration

	// Cache.
	CacheBackend    string // "memory" or "redis"
	RedisAddr       string
	CacheMaxEntries int
	CacheTTLDefault time.Duration
	CacheTTLToday   time.Duration
	CacheOpTimeout  time.Duration

	// Validation.
	MaxPageSize int
	FutureSkew  time.Duration

	// Optional post-assembly enrichment.
	ConfidenceDefaults bool

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	pageSize := getint("REMOTE_PAGE_SIZE", 500)
	if pageSize < 1 {
		pageSize = 500
	}
	maxPage := getint("MAX_PAGE_SIZE", 1000)
	if maxPage < 1 {
		maxPage = 1000
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		AirDataURL:     getenv("AIRDATA_URL", "http://localhost:8080/airdata"),
		RemotePageSize: pageSize,
		RemoteTimeout:  getduration("REMOTE_TIMEOUT", 15*time.Second),

		CacheBackend:    strings.ToLower(getenv("CACHE_BACKEND", "memory")),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		CacheMaxEntries: getint("CACHE_MAX_ENTRIES", 4096),
		CacheTTLDefault: getduration("CACHE_TTL_DEFAULT", 24*time.Hour),
		CacheTTLToday:   getduration("CACHE_TTL_TODAY", 5*time.Minute),
		CacheOpTimeout:  getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		MaxPageSize: maxPage,
		FutureSkew:  getduration("FUTURE_SKEW", 24*time.Hour),

		ConfidenceDefaults: getbool("CONFIDENCE_DEFAULTS", false),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "aq-invalidation"),
			GroupID: getenv("KAFKA_GROUP_ID", "history-cache"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
