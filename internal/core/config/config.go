package config

import (
	"time"

	redisclient "github.com/jatinvaidya/auth0-bulk-delete/internal/infra/redis"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Auth0    Auth0Config        `yaml:"auth0"`
	Run      RunConfig          `yaml:"run"`
	Server   ServerConfig       `yaml:"server"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// Auth0Config identifies the tenant and the machine-to-machine application.
type Auth0Config struct {
	Domain       string        `yaml:"domain"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	BaseURL      string        `yaml:"base_url"` // defaults to https://{domain}
	Timeout      time.Duration `yaml:"timeout"`
}

// RunConfig holds the bulk delete settings.
type RunConfig struct {
	Mode          string        `yaml:"mode"`       // entity type
	MaxConcurrent int           `yaml:"concurrent"` // 1..20
	MinDelayMs    int           `yaml:"delay"`      // 300..3000
	MaxRetries    int           `yaml:"retry"`      // 0..5, HTTP 429 only
	Prompt        bool          `yaml:"prompt"`
	IDsFile       string        `yaml:"ids_file"`
	FailuresFile  string        `yaml:"failures_file"`
	Jitter        time.Duration `yaml:"jitter"`
	MaxBackoff    time.Duration `yaml:"max_backoff"`
}

// MinDelay returns the configured spacing as a duration.
func (r RunConfig) MinDelay() time.Duration {
	return time.Duration(r.MinDelayMs) * time.Millisecond
}

// ServerConfig holds progress server settings. Port 0 disables the server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
