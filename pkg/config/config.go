package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the challenge monitor.
type Config struct {
	Port string

	// Database
	DBPath string

	// MetaStats provider
	MetaStatsBaseURL   string
	MetaStatsStreamURL string
	MetaStatsAuthToken string

	// Backend notification target
	BackendAPIURL      string
	BackendSecretToken string

	// Evaluation cadence
	DebounceWindow time.Duration
	PollInterval   time.Duration // 0 disables the periodic batch pass

	// Trading-day boundary
	ResetHour     int
	ResetTimezone string

	// Optional rule-threshold overrides (YAML)
	RulesConfigPath string

	// Start push listeners for every in-progress account at boot
	StartListeners bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "./data/challenges.db"),
		MetaStatsBaseURL:   getEnv("METASTATS_BASE_URL", ""),
		MetaStatsStreamURL: getEnv("METASTATS_STREAM_URL", ""),
		MetaStatsAuthToken: os.Getenv("METASTATS_AUTH_TOKEN"),
		BackendAPIURL:      getEnv("BACKEND_API_URL", "http://localhost:3000"),
		BackendSecretToken: os.Getenv("BACKEND_SECRET_TOKEN"),
		DebounceWindow:     getEnvDuration("DEBOUNCE_WINDOW", 30*time.Second),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 0),
		ResetHour:          getEnvInt("RESET_HOUR", 17),
		ResetTimezone:      getEnv("RESET_TIMEZONE", "America/New_York"),
		RulesConfigPath:    getEnv("RULES_CONFIG", ""),
		StartListeners:     getEnv("START_LISTENERS", "true") == "true",
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
