package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob the service reads from the environment.
type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// Ingestion tuning.
	UserAgent     string
	FreshnessDays int
	MaxCandidates int
	PerSourceCap  int
	SourceDelay   time.Duration
	FetchTimeout  time.Duration
}

// ErrMissingDSN is returned when POSTGRES_DSN is absent. The store is the one
// dependency the service cannot run without, so main exits on it before any work.
var ErrMissingDSN = errors.New("POSTGRES_DSN is not set")

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		CronSpec:      getEnv("CRON_SPEC", "0 */6 * * *"),
		UserAgent:     getEnv("SYNC_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"),
		FreshnessDays: getEnvInt("SYNC_FRESHNESS_DAYS", 60),
		MaxCandidates: getEnvInt("SYNC_MAX_CANDIDATES", 15),
		PerSourceCap:  getEnvInt("SYNC_PER_SOURCE_CAP", 3),
		SourceDelay:   getEnvDuration("SYNC_SOURCE_DELAY", 2*time.Second),
		FetchTimeout:  getEnvDuration("SYNC_FETCH_TIMEOUT", 12*time.Second),
	}

	if cfg.PostgresDSN == "" {
		return nil, ErrMissingDSN
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
