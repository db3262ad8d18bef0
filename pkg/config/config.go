package config

import "time"

// Config is the root configuration for the Chryso Forms retention service.
// It is loaded from YAML and can be overridden with CHRYSO_* environment
// variables.
type Config struct {
	// Server configures the admin HTTP API.
	Server ServerConfig `yaml:"server"`

	// Auth configures bearer token authentication for the admin API.
	Auth AuthConfig `yaml:"auth"`

	// Storage configures the policy and record stores.
	Storage StorageConfig `yaml:"storage"`

	// Retention configures the scheduler and execution engine.
	Retention RetentionConfig `yaml:"retention"`

	// Policies configures the optional policy seed file.
	Policies PoliciesConfig `yaml:"policies"`

	// Notify configures where run events are published.
	Notify NotifyConfig `yaml:"notify"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains admin HTTP server settings.
type ServerConfig struct {
	// Enabled starts the admin API alongside the scheduler.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// ListenAddress is the address the admin API binds to.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out a response.
	// Default: 60s. Manual runs are synchronous, so keep this generous.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RateLimit is the per-client request rate in requests per second.
	// Zero disables rate limiting.
	// Default: 10
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the per-client burst size.
	// Default: 20
	RateBurst int `yaml:"rate_burst"`

	// TLS serves the admin API over HTTPS.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains admin API TLS settings.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM files. They are reread when either
	// changes on disk.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile, when set, requires clients to present a certificate
	// signed by one of its CAs. The certificate's common name becomes the
	// acting user when no bearer token is sent.
	ClientCAFile string `yaml:"client_ca_file"`

	// ReloadInterval is how often the certificate files are checked.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// IsEnabled reports whether the admin API should be started.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AuthConfig contains HS256 JWT settings for the admin API.
type AuthConfig struct {
	// Enabled requires a valid bearer token on /v1 routes.
	Enabled bool `yaml:"enabled"`

	// JWTSecret is the HMAC signing key. Required when Enabled.
	JWTSecret string `yaml:"jwt_secret"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer"`

	// RequiredRole must appear in the token's roles claim.
	// Default: "admin"
	RequiredRole string `yaml:"required_role"`
}

// StorageConfig groups the two stores the service talks to.
type StorageConfig struct {
	Policies PolicyStorageConfig `yaml:"policies"`
	Records  RecordStorageConfig `yaml:"records"`
}

// PolicyStorageConfig selects the policy store backend.
type PolicyStorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains settings for the SQLite policy store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "/var/lib/chryso/retention.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecordStorageConfig selects the document store holding the governed
// collections.
type RecordStorageConfig struct {
	// Backend is "memory", "sqlite" or "postgres".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// DSN is the SQLite file path or PostgreSQL connection string.
	DSN string `yaml:"dsn"`

	// MaxOpenConns caps the connection pool (PostgreSQL only).
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// Migrate creates the records table on startup.
	Migrate bool `yaml:"migrate"`
}

// RetentionConfig contains scheduler and engine settings.
type RetentionConfig struct {
	// TickSchedule is the cron expression that drives policy evaluation.
	// Default: "0 * * * *" (top of every hour)
	TickSchedule string `yaml:"tick_schedule"`

	// MaxConcurrent bounds policies executed in parallel per tick.
	// Default: 4
	MaxConcurrent int `yaml:"max_concurrent"`

	// LeaseTTL is how long a policy lease is held before another instance
	// may take it over.
	// Default: 1h
	LeaseTTL time.Duration `yaml:"lease_ttl"`

	// DeleteBatchSize is the number of ids per delete call.
	// Default: 500
	DeleteBatchSize int `yaml:"delete_batch_size"`

	// DeleteRate limits delete batches per second. Zero disables it.
	DeleteRate float64 `yaml:"delete_rate"`

	// DeleteBurst is the limiter bucket size.
	// Default: 1
	DeleteBurst int `yaml:"delete_burst"`

	// InstanceID identifies this process as a lease owner. Empty generates
	// a random id at startup.
	InstanceID string `yaml:"instance_id"`

	// ArchiveRoot resolves relative archive locations.
	ArchiveRoot string `yaml:"archive_root"`
}

// PoliciesConfig configures the policy seed file.
type PoliciesConfig struct {
	// File is a YAML policy file or directory applied at startup.
	File string `yaml:"file"`

	// Watch reapplies File when it changes.
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a reload.
	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// NotifyConfig selects the run event sink.
type NotifyConfig struct {
	// Backend is "log" or "nats".
	// Default: "log"
	Backend string `yaml:"backend"`

	// NATSURL is the server URL for the nats backend.
	// Default: "nats://127.0.0.1:4222"
	NATSURL string `yaml:"nats_url"`

	// SubjectPrefix prefixes published subjects.
	// Default: "chryso.retention"
	SubjectPrefix string `yaml:"subject_prefix"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in records.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks secrets and contact details.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`
}

// ShouldRedact reports whether log redaction is on.
func (c LoggingConfig) ShouldRedact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the scrape endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "chryso"
	Namespace string `yaml:"namespace"`
}

// IsEnabled reports whether metrics are exposed.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig contains OpenTelemetry tracing settings. Spans are exported
// over OTLP/gRPC.
type TracingConfig struct {
	// Enabled turns on span export.
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of root spans kept by the ratio sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "chryso-retention"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
