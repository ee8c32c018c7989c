package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Azure    AzureConfig
	Source   SourceConfig
	Sync     SyncConfig
}

// ServerConfig holds HTTP server configuration (server mode only).
type ServerConfig struct {
	Host   string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port   int    `env:"SERVER_PORT" envDefault:"8080"`
	APIKey string `env:"API_KEY"`
}

// DatabaseConfig holds run-history database configuration. An empty DSN
// selects the in-memory store.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN"`
}

// AzureConfig holds ARM client configuration.
type AzureConfig struct {
	Environment string `env:"AZURE_ENVIRONMENT" envDefault:"government"`
	FileShim    string `env:"AZURE_FILE_SHIM"` // Path to file for testing shim (disables real API)
}

// SourceConfig holds the prefix-document download configuration. URLs are
// candidates tried in order until one yields content.
type SourceConfig struct {
	URLs []string `env:"SOURCE_URLS" envSeparator:"," envDefault:"https://download.microsoft.com/download/6/4/D/64DB03BF-895B-4173-A8B1-BA4AD5D4DF22/ServiceTags_AzureGovernment.json"`
}

// SyncConfig holds sync behavior configuration.
type SyncConfig struct {
	ResourceID string `env:"TARGET_RESOURCE_ID"`
	APIVersion string `env:"API_VERSION"`
	// Target is the legacy selector (Trigger|Content|Both). It is honored
	// only when INCLUDE_CONTENT_ACCESS is unset.
	Target               string        `env:"TARGET" envDefault:"Trigger"`
	IncludeContentAccess string        `env:"INCLUDE_CONTENT_ACCESS"`
	DryRun               bool          `env:"DRY_RUN" envDefault:"false"`
	SkipFetchExisting    bool          `env:"SKIP_FETCH_EXISTING" envDefault:"false"`
	VerifyDelay          time.Duration `env:"VERIFY_DELAY" envDefault:"10s"`
	Interval             time.Duration `env:"SYNC_INTERVAL" envDefault:"0"` // server mode; 0 disables
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Azure); err != nil {
		return nil, fmt.Errorf("parsing azure config: %w", err)
	}
	if err := env.Parse(&cfg.Source); err != nil {
		return nil, fmt.Errorf("parsing source config: %w", err)
	}
	if err := env.Parse(&cfg.Sync); err != nil {
		return nil, fmt.Errorf("parsing sync config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IncludeContents resolves whether content access is managed. The boolean
// flag takes precedence when set; otherwise the legacy Target selector
// decides (Content or Both include content access).
func (c *SyncConfig) IncludeContents() bool {
	if c.IncludeContentAccess != "" {
		v, err := strconv.ParseBool(c.IncludeContentAccess)
		if err == nil {
			return v
		}
	}
	switch strings.ToLower(c.Target) {
	case "content", "both":
		return true
	default:
		return false
	}
}

// UseFileShim returns true if the file shim should be used instead of the
// real ARM API.
func (c *Config) UseFileShim() bool {
	return c.Azure.FileShim != ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Sync.ResourceID == "" {
		return fmt.Errorf("TARGET_RESOURCE_ID is required")
	}
	switch strings.ToLower(c.Sync.Target) {
	case "trigger", "content", "both":
	default:
		return fmt.Errorf("TARGET must be one of Trigger, Content, Both")
	}
	if c.Sync.IncludeContentAccess != "" {
		if _, err := strconv.ParseBool(c.Sync.IncludeContentAccess); err != nil {
			return fmt.Errorf("INCLUDE_CONTENT_ACCESS must be a boolean")
		}
	}
	if len(c.Source.URLs) == 0 {
		return fmt.Errorf("SOURCE_URLS must contain at least one URL")
	}
	return nil
}
