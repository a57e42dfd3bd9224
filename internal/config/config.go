// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as Discord credentials, database path, sweep cadence, logging, and
// the admin HTTP server.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the application.
type Config struct {
	// Discord
	DiscordToken string // bot token
	DiscordAppID int64  // application id used for command registration

	// App
	DBPath           string        // SQLite path
	SweepInterval    time.Duration // cadence of the background sweeps
	SchedulesEnabled bool          // run the recurring-request sweep

	// Outbound pacing for sweep-generated traffic
	SendRPS   float64 // gateway sends per second (>= 0, 0 = unlimited)
	SendBurst int     // burst size (>= 1)

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Admin HTTP server
	Port    string // just the number
	GinMode string // debug|release|test
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		DiscordToken: getenv("DISCORD_TOKEN", ""),
		DiscordAppID: getint64("DISCORD_APP_ID", 0),

		DBPath:           getenv("DB_PATH", "requestbot.db"),
		SweepInterval:    getdur("SWEEP_INTERVAL", 10*time.Second),
		SchedulesEnabled: getbool("SCHEDULES_ENABLED", true),

		SendRPS:   getfloat("SEND_RPS", 5.0),
		SendBurst: getint("SEND_BURST", 10),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Port:    getenv("PORT", "8080"),
		GinMode: strings.ToLower(getenv("GIN_MODE", "release")),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	if strings.TrimSpace(cfg.DiscordToken) == "" {
		return cfg, errors.New("DISCORD_TOKEN must not be empty")
	}
	if cfg.DiscordAppID <= 0 {
		return cfg, errors.New("DISCORD_APP_ID must be a positive integer")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.SweepInterval <= 0 {
		return cfg, errors.New("SWEEP_INTERVAL must be a positive duration")
	}
	if cfg.SendRPS < 0 {
		return cfg, errors.New("SEND_RPS must be >= 0")
	}
	if cfg.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
