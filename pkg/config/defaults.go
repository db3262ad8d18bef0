package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateLimit       = 10.0
	DefaultRateBurst       = 20

	// Auth defaults
	DefaultRequiredRole = "admin"

	// Storage defaults
	DefaultPolicyBackend      = "sqlite"
	DefaultPolicyDBPath       = "/var/lib/chryso/retention.db"
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultRecordBackend      = "memory"
	DefaultRecordMaxOpenConns = 10

	// TLS defaults
	DefaultTLSMinVersion     = "1.3"
	DefaultTLSReloadInterval = 5 * time.Minute

	// Retention defaults
	DefaultTickSchedule    = "0 * * * *"
	DefaultMaxConcurrent   = 4
	DefaultLeaseTTL        = time.Hour
	DefaultDeleteBatchSize = 500
	DefaultDeleteBurst     = 1

	// Policy file defaults
	DefaultDebounceInterval = 250 * time.Millisecond

	// Notify defaults
	DefaultNotifyBackend = "log"
	DefaultNATSURL       = "nats://127.0.0.1:4222"
	DefaultSubjectPrefix = "chryso.retention"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "chryso"

	// Tracing defaults
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "chryso-retention"
	DefaultTracingTimeout     = 10 * time.Second
)

// ApplyDefaults fills every unset field of cfg with its default value.
// Explicitly configured values are left alone.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = DefaultRateLimit
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = DefaultRateBurst
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultTLSReloadInterval
	}

	// Auth defaults
	if cfg.Auth.RequiredRole == "" {
		cfg.Auth.RequiredRole = DefaultRequiredRole
	}

	// Storage defaults
	if cfg.Storage.Policies.Backend == "" {
		cfg.Storage.Policies.Backend = DefaultPolicyBackend
	}
	if cfg.Storage.Policies.SQLite.Path == "" {
		cfg.Storage.Policies.SQLite.Path = DefaultPolicyDBPath
	}
	if cfg.Storage.Policies.SQLite.BusyTimeout == 0 {
		cfg.Storage.Policies.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.Records.Backend == "" {
		cfg.Storage.Records.Backend = DefaultRecordBackend
	}
	if cfg.Storage.Records.MaxOpenConns == 0 {
		cfg.Storage.Records.MaxOpenConns = DefaultRecordMaxOpenConns
	}

	// Retention defaults
	if cfg.Retention.TickSchedule == "" {
		cfg.Retention.TickSchedule = DefaultTickSchedule
	}
	if cfg.Retention.MaxConcurrent == 0 {
		cfg.Retention.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Retention.LeaseTTL == 0 {
		cfg.Retention.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.Retention.DeleteBatchSize == 0 {
		cfg.Retention.DeleteBatchSize = DefaultDeleteBatchSize
	}
	if cfg.Retention.DeleteBurst == 0 {
		cfg.Retention.DeleteBurst = DefaultDeleteBurst
	}

	// Policy file defaults
	if cfg.Policies.DebounceInterval == 0 {
		cfg.Policies.DebounceInterval = DefaultDebounceInterval
	}

	// Notify defaults
	if cfg.Notify.Backend == "" {
		cfg.Notify.Backend = DefaultNotifyBackend
	}
	if cfg.Notify.NATSURL == "" {
		cfg.Notify.NATSURL = DefaultNATSURL
	}
	if cfg.Notify.SubjectPrefix == "" {
		cfg.Notify.SubjectPrefix = DefaultSubjectPrefix
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
