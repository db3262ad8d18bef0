package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validatePolicies(&cfg.Policies)...)
	errs = append(errs, validateNotify(&cfg.Notify)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	if cfg.RateLimit < 0 {
		errs = append(errs, FieldError{
			Field:   "server.rate_limit",
			Message: "rate limit must be non-negative",
		})
	}
	if cfg.RateLimit > 0 && cfg.RateBurst < 1 {
		errs = append(errs, FieldError{
			Field:   "server.rate_burst",
			Message: "rate burst must be at least 1 when rate limiting is enabled",
		})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "cert file is required when TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "key file is required when TLS is enabled",
			})
		}
		if cfg.TLS.MinVersion != "1.2" && cfg.TLS.MinVersion != "1.3" {
			errs = append(errs, FieldError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", cfg.TLS.MinVersion),
			})
		}
		if cfg.TLS.ReloadInterval <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.tls.reload_interval",
				Message: "reload interval must be positive",
			})
		}
	}

	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, FieldError{
			Field:   "auth.jwt_secret",
			Message: "jwt secret is required when auth is enabled",
		})
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, FieldError{
			Field:   "auth.jwt_secret",
			Message: "jwt secret must be at least 32 bytes",
		})
	}
	if cfg.RequiredRole == "" {
		errs = append(errs, FieldError{
			Field:   "auth.required_role",
			Message: "required role cannot be empty when auth is enabled",
		})
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Policies.Backend {
	case "memory":
	case "sqlite":
		if cfg.Policies.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.policies.sqlite.path",
				Message: "sqlite path is required for the sqlite backend",
			})
		}
		if cfg.Policies.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "storage.policies.sqlite.busy_timeout",
				Message: "busy timeout must be positive",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.policies.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Policies.Backend),
		})
	}

	switch cfg.Records.Backend {
	case "memory":
	case "sqlite", "postgres":
		if cfg.Records.DSN == "" {
			errs = append(errs, FieldError{
				Field:   "storage.records.dsn",
				Message: fmt.Sprintf("dsn is required for the %s backend", cfg.Records.Backend),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.records.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite', or 'postgres'", cfg.Records.Backend),
		})
	}
	if cfg.Records.MaxOpenConns < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.records.max_open_conns",
			Message: "max open connections must be non-negative",
		})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.TickSchedule == "" {
		errs = append(errs, FieldError{
			Field:   "retention.tick_schedule",
			Message: "tick schedule is required",
		})
	} else if _, err := cron.ParseStandard(cfg.TickSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "retention.tick_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.TickSchedule, err),
		})
	}

	if cfg.MaxConcurrent < 1 {
		errs = append(errs, FieldError{
			Field:   "retention.max_concurrent",
			Message: "max concurrent must be at least 1",
		})
	}
	if cfg.LeaseTTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "retention.lease_ttl",
			Message: "lease ttl must be positive",
		})
	}
	if cfg.DeleteBatchSize < 1 {
		errs = append(errs, FieldError{
			Field:   "retention.delete_batch_size",
			Message: "delete batch size must be at least 1",
		})
	}
	if cfg.DeleteRate < 0 {
		errs = append(errs, FieldError{
			Field:   "retention.delete_rate",
			Message: "delete rate must be non-negative",
		})
	}
	if cfg.DeleteRate > 0 && cfg.DeleteBurst < 1 {
		errs = append(errs, FieldError{
			Field:   "retention.delete_burst",
			Message: "delete burst must be at least 1 when delete rate is set",
		})
	}

	return errs
}

func validatePolicies(cfg *PoliciesConfig) []FieldError {
	var errs []FieldError

	if cfg.Watch && cfg.File == "" {
		errs = append(errs, FieldError{
			Field:   "policies.watch",
			Message: "watch requires policies.file to be set",
		})
	}
	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "policies.debounce_interval",
			Message: "debounce interval must be positive",
		})
	}

	return errs
}

func validateNotify(cfg *NotifyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "log":
	case "nats":
		u, err := url.Parse(cfg.NATSURL)
		if cfg.NATSURL == "" || err != nil || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "notify.nats_url",
				Message: fmt.Sprintf("invalid nats url %q", cfg.NATSURL),
			})
		}
		if strings.ContainsAny(cfg.SubjectPrefix, "*> ") {
			errs = append(errs, FieldError{
				Field:   "notify.subject_prefix",
				Message: "subject prefix cannot contain wildcards or spaces",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "notify.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'log' or 'nats'", cfg.Backend),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() {
		if cfg.Metrics.Path == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path is required when metrics are enabled",
			})
		} else if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with '/'",
			})
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never":
		case "ratio":
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
				errs = append(errs, FieldError{
					Field:   "telemetry.tracing.sample_ratio",
					Message: "sample ratio must be between 0 and 1",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}
