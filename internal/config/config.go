// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Sessions
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"desk_session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Login rate limiting (per client IP)
	LoginRateLimitEnabled   bool `env:"LOGIN_RATE_LIMIT_ENABLED" envDefault:"true"`
	LoginRateLimitPerMinute int  `env:"LOGIN_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	LoginRateLimitBurst     int  `env:"LOGIN_RATE_LIMIT_BURST" envDefault:"5"`

	// Bootstrap admin. Skipped when AdminPassword is empty.
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:""`

	// Business rules
	BusinessTimezone   string        `env:"BUSINESS_TIMEZONE" envDefault:"UTC"`
	LockPastOrders     bool          `env:"LOCK_PAST_ORDERS" envDefault:"false"`
	ReportMaxRangeDays int           `env:"REPORT_MAX_RANGE_DAYS" envDefault:"366"`
	ReportCacheTTL     time.Duration `env:"REPORT_CACHE_TTL" envDefault:"5m"`

	// Events
	EventsWorkerEnabled bool   `env:"EVENTS_WORKER_ENABLED" envDefault:"true"`
	KafkaBrokers        string `env:"KAFKA_BROKERS" envDefault:""`
	KafkaTopic          string `env:"KAFKA_TOPIC" envDefault:"desk-events"`

	// Directory holding the dashboard pages and their scripts. Empty disables static serving.
	StaticDir string `env:"STATIC_DIR" envDefault:""`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 8MB, spreadsheet imports included)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"8388608"`

	location *time.Location
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitCSV(c.CORSAllowedOrigins)
}

// GetKafkaBrokers returns the configured Kafka brokers, or nil when Kafka is disabled.
func (c *Config) GetKafkaBrokers() []string {
	return splitCSV(c.KafkaBrokers)
}

// Location returns the business timezone used to decide what "today" is.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Load reads an optional .env file, parses environment variables and returns a Config.
// Returns an error if required variables are missing or values are invalid.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimezone, err)
	}
	cfg.location = loc

	if cfg.ReportMaxRangeDays <= 0 {
		return nil, fmt.Errorf("REPORT_MAX_RANGE_DAYS must be positive, got %d", cfg.ReportMaxRangeDays)
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.DBMinConns, cfg.DBMaxConns)
	}

	return cfg, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
