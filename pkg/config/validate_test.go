package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:   "valid minimal",
			modify: func(*Config) {},
		},
		{
			name:      "bad listen address",
			modify:    func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantField: "server.listen_address",
		},
		{
			name:      "negative write timeout",
			modify:    func(c *Config) { c.Server.WriteTimeout = -1 },
			wantField: "server.write_timeout",
		},
		{
			name:      "tls without cert",
			modify:    func(c *Config) { c.Server.TLS = TLSConfig{Enabled: true, KeyFile: "key.pem", MinVersion: "1.3", ReloadInterval: time.Minute} },
			wantField: "server.tls.cert_file",
		},
		{
			name: "tls 1.1",
			modify: func(c *Config) {
				c.Server.TLS.Enabled = true
				c.Server.TLS.CertFile = "cert.pem"
				c.Server.TLS.KeyFile = "key.pem"
				c.Server.TLS.MinVersion = "1.1"
			},
			wantField: "server.tls.min_version",
		},
		{
			name:      "auth without secret",
			modify:    func(c *Config) { c.Auth.Enabled = true },
			wantField: "auth.jwt_secret",
		},
		{
			name: "auth with short secret",
			modify: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecret = "short"
			},
			wantField: "auth.jwt_secret",
		},
		{
			name:      "unknown policy backend",
			modify:    func(c *Config) { c.Storage.Policies.Backend = "redis" },
			wantField: "storage.policies.backend",
		},
		{
			name:      "postgres without dsn",
			modify:    func(c *Config) { c.Storage.Records.Backend = "postgres" },
			wantField: "storage.records.dsn",
		},
		{
			name:      "unknown record backend",
			modify:    func(c *Config) { c.Storage.Records.Backend = "mongo" },
			wantField: "storage.records.backend",
		},
		{
			name:      "bad cron",
			modify:    func(c *Config) { c.Retention.TickSchedule = "every hour" },
			wantField: "retention.tick_schedule",
		},
		{
			name:      "zero concurrency",
			modify:    func(c *Config) { c.Retention.MaxConcurrent = 0 },
			wantField: "retention.max_concurrent",
		},
		{
			name:      "zero lease ttl",
			modify:    func(c *Config) { c.Retention.LeaseTTL = 0 },
			wantField: "retention.lease_ttl",
		},
		{
			name: "delete rate without burst",
			modify: func(c *Config) {
				c.Retention.DeleteRate = 5
				c.Retention.DeleteBurst = 0
			},
			wantField: "retention.delete_burst",
		},
		{
			name:      "watch without file",
			modify:    func(c *Config) { c.Policies.Watch = true },
			wantField: "policies.watch",
		},
		{
			name: "nats with bad url",
			modify: func(c *Config) {
				c.Notify.Backend = "nats"
				c.Notify.NATSURL = "not a url"
			},
			wantField: "notify.nats_url",
		},
		{
			name: "nats wildcard prefix",
			modify: func(c *Config) {
				c.Notify.Backend = "nats"
				c.Notify.SubjectPrefix = "chryso.>"
			},
			wantField: "notify.subject_prefix",
		},
		{
			name:      "unknown notify backend",
			modify:    func(c *Config) { c.Notify.Backend = "kafka" },
			wantField: "notify.backend",
		},
		{
			name:      "bad log level",
			modify:    func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "relative metrics path",
			modify:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
		{
			name: "tracing with unknown sampler",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "sometimes"
			},
			wantField: "telemetry.tracing.sampler",
		},
		{
			name: "tracing ratio above one",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.SampleRatio = 1.5
			},
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name: "disabled tracing is not checked",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Sampler = "sometimes"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error for %s", tt.wantField)
			}

			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := MinimalConfig()
	cfg.Server.ListenAddress = ""
	cfg.Retention.MaxConcurrent = -1
	cfg.Telemetry.Logging.Format = "xml"

	err := Validate(cfg)
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(verr.Errors), verr.Errors)
	}
	if !strings.Contains(verr.Error(), "3 errors") {
		t.Errorf("Error() = %q", verr.Error())
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "server.listen_address", Message: "listen address is required"}}}
	want := "configuration validation failed: server.listen_address: listen address is required"
	if single.Error() != want {
		t.Errorf("Error() = %q, want %q", single.Error(), want)
	}
	if (ValidationError{}).Error() != "configuration validation failed" {
		t.Errorf("empty Error() = %q", (ValidationError{}).Error())
	}
}

func TestValidate_TracingEnabled(t *testing.T) {
	for _, sampler := range []string{"always", "never", "ratio"} {
		cfg := NewTestConfig().WithTracing(sampler).Build()
		if err := Validate(cfg); err != nil {
			t.Errorf("sampler %q: Validate() error = %v", sampler, err)
		}
	}
}
