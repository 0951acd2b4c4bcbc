// Package config loads process configuration from the environment and
// builds the process-wide logger, backed by zap.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DBMode selects the Store implementation wired at startup.
type DBMode string

const (
	DBModeLocal DBMode = "local" // pgx-backed Postgres
	DBModeMock  DBMode = "mock"  // in-memory deterministic store, for local dev and demos
)

// Config is the fully-resolved process configuration, read once at startup.
type Config struct {
	DBMode DBMode

	DBHost     string
	DBPort     int32
	DBName     string
	DBUser     string
	DBPassword string
	DBPoolMin  int32
	DBPoolMax  int32

	HTTPAddr string

	LogLevel string // debug|info|warn|error
	LogJSON  bool

	ModelPath    string // file path (or directory, for mixed/turf/dirt variants) of the active artifact
	BacktestYear int    // year the promotion comparison runs against

	// BiasDate, when set, overrides bias-snapshot date resolution for every
	// request.
	BiasDate *time.Time

	BiasSnapshotRefresh time.Duration
	RateLimitPerMinute  int
}

// FromEnv builds a Config from environment variables (DB_*, MODEL_PATH,
// KEIBA_BIAS_DATE, ...), applying a default for each variable left unset.
func FromEnv() Config {
	cfg := Config{
		DBMode:              DBMode(getEnv("DB_MODE", string(DBModeLocal))),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              int32(getEnvInt("DB_PORT", 5432)),
		DBName:              getEnv("DB_NAME", "keiba"),
		DBUser:              getEnv("DB_USER", "keiba"),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBPoolMin:           int32(getEnvInt("DB_POOL_MIN_SIZE", 2)),
		DBPoolMax:           int32(getEnvInt("DB_POOL_MAX_SIZE", 10)),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogJSON:             getEnvBool("LOG_JSON", true),
		ModelPath:           getEnv("MODEL_PATH", "data/models"),
		BacktestYear:        getEnvInt("BACKTEST_YEAR", time.Now().Year()-1),
		BiasSnapshotRefresh: time.Duration(getEnvInt("BIAS_REFRESH_SECONDS", 300)) * time.Second,
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}
	if v, ok := os.LookupEnv("KEIBA_BIAS_DATE"); ok && v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			cfg.BiasDate = &t
		}
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks the combination that would otherwise fail deep inside
// store construction with a less useful error.
func (c Config) Validate() error {
	if c.DBMode != DBModeLocal && c.DBMode != DBModeMock {
		return fmt.Errorf("config: unsupported DB_MODE %q", c.DBMode)
	}
	if c.DBMode == DBModeLocal && c.DBHost == "" {
		return fmt.Errorf("config: DB_HOST required when DB_MODE=local")
	}
	return nil
}
