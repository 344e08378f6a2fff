package config

import (
	"fmt"
	"strings"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

// Accepted ranges for the run settings.
const (
	MinConcurrent = 1
	MaxConcurrent = 20
	MinDelayMs    = 300
	MaxDelayMs    = 3000
	MinRetries    = 0
	MaxRetries    = 5
)

// FieldError describes one invalid setting.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every invalid setting of a configuration.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is match domain.ErrValidation.
func (v ValidationErrors) Unwrap() error {
	return domain.ErrValidation
}

// Validate checks cfg without side effects and returns ValidationErrors
// listing every problem, or nil.
func Validate(cfg *AppConfig) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !domain.EntityType(cfg.Run.Mode).Valid() {
		names := make([]string, len(domain.EntityTypes))
		for i, e := range domain.EntityTypes {
			names[i] = string(e)
		}
		add("mode", "must be one of %s, got %q", strings.Join(names, ", "), cfg.Run.Mode)
	}
	if cfg.Run.MaxConcurrent < MinConcurrent || cfg.Run.MaxConcurrent > MaxConcurrent {
		add("concurrent", "must be between %d and %d, got %d", MinConcurrent, MaxConcurrent, cfg.Run.MaxConcurrent)
	}
	if cfg.Run.MinDelayMs < MinDelayMs || cfg.Run.MinDelayMs > MaxDelayMs {
		add("delay", "must be between %d and %d ms, got %d", MinDelayMs, MaxDelayMs, cfg.Run.MinDelayMs)
	}
	if cfg.Run.MaxRetries < MinRetries || cfg.Run.MaxRetries > MaxRetries {
		add("retry", "must be between %d and %d, got %d", MinRetries, MaxRetries, cfg.Run.MaxRetries)
	}
	if cfg.Run.Jitter < 0 {
		add("jitter", "must not be negative")
	}
	if strings.TrimSpace(cfg.Run.IDsFile) == "" {
		add("ids_file", "is required")
	}
	if strings.TrimSpace(cfg.Run.FailuresFile) == "" {
		add("failures_file", "is required")
	}

	if strings.TrimSpace(cfg.Auth0.Domain) == "" {
		add("auth0.domain", "is required (set %s)", EnvDomain)
	} else if strings.Contains(cfg.Auth0.Domain, "/") {
		add("auth0.domain", "must be a host name without scheme or path, got %q", cfg.Auth0.Domain)
	}
	if cfg.Auth0.ClientID == "" {
		add("auth0.client_id", "is required (set %s)", EnvClientID)
	}
	if cfg.Auth0.ClientSecret == "" {
		add("auth0.client_secret", "is required (set %s)", EnvClientSecret)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
