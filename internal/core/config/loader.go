package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/ledger"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/infra/auth0"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/input"
)

// Environment variables read for the tenant credentials.
const (
	EnvDomain       = "AUTH0_DOMAIN"
	EnvClientID     = "AUTH0_CLIENT_ID"
	EnvClientSecret = "AUTH0_CLIENT_SECRET"
)

// Default returns the configuration used when nothing is overridden.
func Default() *AppConfig {
	return &AppConfig{
		Auth0: Auth0Config{
			Timeout: auth0.DefaultTimeout,
		},
		Run: RunConfig{
			MaxConcurrent: 5,
			MinDelayMs:    333,
			MaxRetries:    3,
			Prompt:        true,
			IDsFile:       input.DefaultIDsFile,
			FailuresFile:  ledger.DefaultPath,
			MaxBackoff:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file on top of Default. An empty path
// skips the file. Tenant credentials missing from the file are taken from the
// environment.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	// Set defaults if necessary
	if cfg.Auth0.Timeout <= 0 {
		cfg.Auth0.Timeout = auth0.DefaultTimeout
	}
	if cfg.Run.MaxBackoff <= 0 {
		cfg.Run.MaxBackoff = 30 * time.Second
	}

	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if cfg.Auth0.Domain == "" {
		cfg.Auth0.Domain = os.Getenv(EnvDomain)
	}
	if cfg.Auth0.ClientID == "" {
		cfg.Auth0.ClientID = os.Getenv(EnvClientID)
	}
	if cfg.Auth0.ClientSecret == "" {
		cfg.Auth0.ClientSecret = os.Getenv(EnvClientSecret)
	}
}
