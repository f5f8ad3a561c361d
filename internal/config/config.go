// Package config loads runtime configuration from environment variables.
// A .env file is honored in development; required settings fail fast.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cron     CronConfig
	Scrape   ScrapeConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" required:"true"`
}

// CronConfig holds trigger settings. Secret authenticates the external
// scheduler; Schedule, when set (e.g. "@every 6h"), additionally runs an
// in-process cron so deployments without an external scheduler still scrape.
type CronConfig struct {
	Secret   string `envconfig:"CRON_SECRET" required:"true"`
	Schedule string `envconfig:"SCRAPE_SCHEDULE" default:""`
}

// ScrapeConfig tunes the search orchestrator and fetcher.
type ScrapeConfig struct {
	MaxPages           int           `envconfig:"SCRAPE_MAX_PAGES" default:"3"`
	PageDelay          time.Duration `envconfig:"SCRAPE_PAGE_DELAY" default:"2s"`
	VariantDelay       time.Duration `envconfig:"SCRAPE_VARIANT_DELAY" default:"5s"`
	MinRequestInterval time.Duration `envconfig:"SCRAPE_MIN_REQUEST_INTERVAL" default:"1s"`
	FetchTimeout       time.Duration `envconfig:"SCRAPE_FETCH_TIMEOUT" default:"30s"`
}

// EmailConfig holds Resend settings. An empty API key disables email.
type EmailConfig struct {
	ResendAPIKey string `envconfig:"RESEND_API_KEY" default:""`
	From         string `envconfig:"RESEND_FROM_EMAIL" default:"alerts@dba-watcher.dk"`
	AppURL       string `envconfig:"APP_URL" default:"https://dba-watcher.dk"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Scrape.MaxPages < 1 {
		return nil, fmt.Errorf("SCRAPE_MAX_PAGES must be at least 1, got %d", cfg.Scrape.MaxPages)
	}
	return &cfg, nil
}
