package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chryso.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:8443"
storage:
  policies:
    backend: memory
  records:
    backend: sqlite
    dsn: /tmp/forms.db
    migrate: true
retention:
  tick_schedule: "*/15 * * * *"
  max_concurrent: 2
  lease_ttl: 30m
  delete_rate: 20
notify:
  backend: nats
  nats_url: nats://nats:4222
telemetry:
  logging:
    level: debug
    format: text
    redact_pii: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:8443" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Records.Backend != "sqlite" || !cfg.Storage.Records.Migrate {
		t.Errorf("records = %+v", cfg.Storage.Records)
	}
	if cfg.Retention.TickSchedule != "*/15 * * * *" || cfg.Retention.MaxConcurrent != 2 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if cfg.Retention.LeaseTTL != 30*time.Minute || cfg.Retention.DeleteRate != 20 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	// Unset fields receive defaults.
	if cfg.Retention.DeleteBatchSize != DefaultDeleteBatchSize {
		t.Errorf("delete batch size = %d", cfg.Retention.DeleteBatchSize)
	}
	if cfg.Notify.SubjectPrefix != DefaultSubjectPrefix {
		t.Errorf("subject prefix = %q", cfg.Notify.SubjectPrefix)
	}
	if cfg.Telemetry.Logging.ShouldRedact() {
		t.Error("redact_pii: false was ignored")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want not-exist", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "server: [unclosed"))
		if err == nil || !strings.Contains(err.Error(), "failed to parse") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "retention:\n  max_concurrent: -2\n"))
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  policies:
    backend: memory
retention:
  max_concurrent: 2
`)

	t.Setenv("CHRYSO_SERVER_LISTEN_ADDRESS", "127.0.0.1:9000")
	t.Setenv("CHRYSO_RETENTION_MAX_CONCURRENT", "8")
	t.Setenv("CHRYSO_RETENTION_LEASE_TTL", "10m")
	t.Setenv("CHRYSO_RETENTION_DELETE_RATE", "2.5")
	t.Setenv("CHRYSO_AUTH_ENABLED", "true")
	t.Setenv("CHRYSO_AUTH_JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("CHRYSO_TELEMETRY_METRICS_ENABLED", "false")
	t.Setenv("CHRYSO_TELEMETRY_TRACING_ENABLED", "true")
	t.Setenv("CHRYSO_TELEMETRY_TRACING_SAMPLER", "always")
	t.Setenv("CHRYSO_STORAGE_RECORDS_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Retention.MaxConcurrent != 8 {
		t.Errorf("max concurrent = %d, env should win over file", cfg.Retention.MaxConcurrent)
	}
	if cfg.Retention.LeaseTTL != 10*time.Minute || cfg.Retention.DeleteRate != 2.5 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if !cfg.Auth.Enabled {
		t.Error("auth not enabled from env")
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("metrics not disabled from env")
	}
	if !cfg.Telemetry.Tracing.Enabled || cfg.Telemetry.Tracing.Sampler != "always" {
		t.Errorf("tracing = %+v", cfg.Telemetry.Tracing)
	}
	if cfg.Storage.Records.MaxOpenConns != DefaultRecordMaxOpenConns {
		t.Errorf("malformed env value applied: %d", cfg.Storage.Records.MaxOpenConns)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("CHRYSO_STORAGE_POLICIES_BACKEND", "memory")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Storage.Policies.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Storage.Policies.Backend)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidAfterOverride(t *testing.T) {
	path := writeConfig(t, "storage:\n  policies:\n    backend: memory\n")
	t.Setenv("CHRYSO_NOTIFY_BACKEND", "carrier-pigeon")

	_, err := LoadConfigWithEnvOverrides(path)
	if err == nil || !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("error = %v", err)
	}
}
