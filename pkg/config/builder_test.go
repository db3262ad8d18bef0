package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with an in-memory setup that
// validates as-is.
func NewTestConfig() *ConfigBuilder {
	var cfg Config
	cfg.Storage.Policies.Backend = "memory"
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the admin API listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithAuth enables JWT auth with secret.
func (b *ConfigBuilder) WithAuth(secret string) *ConfigBuilder {
	b.cfg.Auth.Enabled = true
	b.cfg.Auth.JWTSecret = secret
	return b
}

// WithRecordStore sets the record backend and DSN.
func (b *ConfigBuilder) WithRecordStore(backend, dsn string) *ConfigBuilder {
	b.cfg.Storage.Records.Backend = backend
	b.cfg.Storage.Records.DSN = dsn
	return b
}

// WithTickSchedule sets the scheduler cron expression.
func (b *ConfigBuilder) WithTickSchedule(spec string) *ConfigBuilder {
	b.cfg.Retention.TickSchedule = spec
	return b
}

// WithLeaseTTL sets the lease TTL.
func (b *ConfigBuilder) WithLeaseTTL(d time.Duration) *ConfigBuilder {
	b.cfg.Retention.LeaseTTL = d
	return b
}

// WithNotify sets the notify backend.
func (b *ConfigBuilder) WithNotify(backend, url string) *ConfigBuilder {
	b.cfg.Notify.Backend = backend
	b.cfg.Notify.NATSURL = url
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}

// WithTracing enables tracing with the given sampler.
func (b *ConfigBuilder) WithTracing(sampler string) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Sampler = sampler
	return b
}
