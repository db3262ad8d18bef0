package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"server.listen_address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"server.write_timeout", cfg.Server.WriteTimeout, DefaultWriteTimeout},
		{"server.tls.min_version", cfg.Server.TLS.MinVersion, "1.3"},
		{"server.tls.reload_interval", cfg.Server.TLS.ReloadInterval, 5 * time.Minute},
		{"auth.required_role", cfg.Auth.RequiredRole, "admin"},
		{"storage.policies.backend", cfg.Storage.Policies.Backend, "sqlite"},
		{"storage.records.backend", cfg.Storage.Records.Backend, "memory"},
		{"retention.tick_schedule", cfg.Retention.TickSchedule, "0 * * * *"},
		{"retention.max_concurrent", cfg.Retention.MaxConcurrent, 4},
		{"retention.lease_ttl", cfg.Retention.LeaseTTL, time.Hour},
		{"retention.delete_batch_size", cfg.Retention.DeleteBatchSize, 500},
		{"retention.delete_rate", cfg.Retention.DeleteRate, 0.0},
		{"notify.backend", cfg.Notify.Backend, "log"},
		{"notify.subject_prefix", cfg.Notify.SubjectPrefix, "chryso.retention"},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, "info"},
		{"telemetry.metrics.path", cfg.Telemetry.Metrics.Path, "/metrics"},
		{"telemetry.tracing.sampler", cfg.Telemetry.Tracing.Sampler, "ratio"},
		{"telemetry.tracing.sample_ratio", cfg.Telemetry.Tracing.SampleRatio, 0.1},
		{"telemetry.tracing.timeout", cfg.Telemetry.Tracing.Timeout, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if !cfg.Server.IsEnabled() || !cfg.Telemetry.Metrics.IsEnabled() || !cfg.Telemetry.Logging.ShouldRedact() {
		t.Error("optional toggles should default to on")
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	off := false
	cfg := Config{
		Server:    ServerConfig{ListenAddress: ":9999", Enabled: &off},
		Retention: RetentionConfig{MaxConcurrent: 16, LeaseTTL: 5 * time.Minute},
	}
	cfg.Telemetry.Logging.RedactPII = &off
	ApplyDefaults(&cfg)

	if cfg.Server.ListenAddress != ":9999" {
		t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.IsEnabled() {
		t.Error("server.enabled=false overwritten")
	}
	if cfg.Retention.MaxConcurrent != 16 || cfg.Retention.LeaseTTL != 5*time.Minute {
		t.Errorf("retention overwritten: %+v", cfg.Retention)
	}
	if cfg.Telemetry.Logging.ShouldRedact() {
		t.Error("redact_pii=false overwritten")
	}
}

func TestMinimalConfig(t *testing.T) {
	cfg := MinimalConfig()

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("minimal config should be valid, got error: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("default config should be valid, got error: %v", err)
	}
}
