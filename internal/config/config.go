// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const (
	defaultTimezone          = "America/Sao_Paulo"
	defaultReminderHour      = 17
	defaultSimulationSeconds = 15
	defaultOTLPProtocol      = "grpc"
)

// Config holds all configuration for the application.
type Config struct {
	TelegramBotToken     string
	DatabaseURL          string
	SQLitePath           string
	GeminiAPIKey         string
	LogLevel             string
	LogFormat            string
	WhitelistedUserIDs   []int64
	WhitelistedUsernames []string
	Timezone             string
	DailyReminderEnabled bool
	ReminderHour         int
	SimulationRevert     time.Duration
	OTelExporter         string
	OTLPProtocol         string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       os.Getenv("SQLITE_PATH"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        os.Getenv("LOG_FORMAT"),
		OTelExporter:     strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER"))),
		OTLPProtocol:     os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"),
	}

	var errs []string

	cfg.Timezone = defaultTimezone
	if tz := os.Getenv("APP_TIMEZONE"); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Sprintf("APP_TIMEZONE %q is not a valid location", tz))
		} else {
			cfg.Timezone = tz
		}
	}

	cfg.DailyReminderEnabled = os.Getenv("DAILY_REMINDER_ENABLED") == "true"
	cfg.ReminderHour = defaultReminderHour
	if hourStr := os.Getenv("REMINDER_HOUR"); hourStr != "" {
		if h, err := strconv.Atoi(hourStr); err == nil && h >= 0 && h <= 23 {
			cfg.ReminderHour = h
		}
	}

	cfg.SimulationRevert = defaultSimulationSeconds * time.Second
	if s := os.Getenv("SIMULATION_REVERT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			cfg.SimulationRevert = time.Duration(n) * time.Second
		}
	}

	if cfg.OTelExporter == "" {
		cfg.OTelExporter = ExporterNone
	}
	if cfg.OTLPProtocol == "" {
		cfg.OTLPProtocol = defaultOTLPProtocol
	}

	cfg.WhitelistedUserIDs = parseUserIDs(os.Getenv("WHITELISTED_USER_IDS"))
	cfg.WhitelistedUsernames = parseUsernames(os.Getenv("WHITELISTED_USERNAMES"))

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return cfg, nil
}

func parseUserIDs(s string) []int64 {
	var ids []int64
	for idStr := range strings.SplitSeq(s, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseUsernames(s string) []string {
	var names []string
	for username := range strings.SplitSeq(s, ",") {
		username = strings.TrimPrefix(strings.TrimSpace(username), "@")
		if username == "" {
			continue
		}
		names = append(names, username)
	}
	return names
}

// validate checks that all required configuration is present.
func (c *Config) validate() []string {
	var errs []string

	if c.TelegramBotToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}

	switch {
	case c.DatabaseURL == "" && c.SQLitePath == "":
		errs = append(errs, "one of DATABASE_URL or SQLITE_PATH is required")
	case c.DatabaseURL != "" && c.SQLitePath != "":
		errs = append(errs, "DATABASE_URL and SQLITE_PATH are mutually exclusive")
	}

	if len(c.WhitelistedUserIDs) == 0 && len(c.WhitelistedUsernames) == 0 {
		errs = append(errs, "at least one whitelisted user (WHITELISTED_USER_IDS or WHITELISTED_USERNAMES) is required")
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of none, stdout, otlp (got %q)", c.OTelExporter))
	}

	switch c.OTLPProtocol {
	case "grpc", "http/protobuf":
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER_OTLP_PROTOCOL must be grpc or http/protobuf (got %q)", c.OTLPProtocol))
	}

	return errs
}

// UsesSQLite reports whether records are kept in a local SQLite file.
func (c *Config) UsesSQLite() bool {
	return c.SQLitePath != ""
}

// Location returns the configured time zone. It falls back to UTC when the
// zone database is unavailable.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsUserWhitelisted checks if a Telegram user ID or username is in the whitelist.
func (c *Config) IsUserWhitelisted(userID int64, username string) bool {
	if slices.Contains(c.WhitelistedUserIDs, userID) {
		return true
	}

	if username != "" {
		username = strings.TrimPrefix(username, "@")
		for _, whitelisted := range c.WhitelistedUsernames {
			if strings.EqualFold(whitelisted, username) {
				return true
			}
		}
	}

	return false
}
