package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"chryso-hq/forms/pkg/cli"
	"chryso-hq/forms/pkg/config"
	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/archive"
	"chryso-hq/forms/pkg/retention/engine"
	"chryso-hq/forms/pkg/retention/notify"
	"chryso-hq/forms/pkg/retention/policystore"
	"chryso-hq/forms/pkg/retention/recordstore"
	"chryso-hq/forms/pkg/retention/scheduler"
	"chryso-hq/forms/pkg/telemetry/logging"
	"chryso-hq/forms/pkg/telemetry/metrics"
	"chryso-hq/forms/pkg/telemetry/tracing"
)

// tracerShutdownTimeout bounds the final span flush on exit.
const tracerShutdownTimeout = 5 * time.Second

// policyBackend is a policy store that also keeps record holds. Both
// policystore implementations qualify.
type policyBackend interface {
	retention.PolicyStore
	retention.HoldStore
}

// app holds the wired components shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	policies  policyBackend
	records   retention.RecordStore
	notifier  retention.Notifier
	metrics   *metrics.Collector
	tracer    *tracing.Tracer
	engine    *engine.Engine
	scheduler *scheduler.Scheduler

	closers []func() error
}

// loadConfig reads --config with CHRYSO_* overrides and sets up logging.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", err.Error())
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		RedactPII: cfg.Telemetry.Logging.ShouldRedact(),
	})
	if err != nil {
		return nil, nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return cfg, logger, nil
}

// newApp opens the stores and builds the engine and scheduler. Callers
// must Close the result.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.open(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open() error {
	cfg, logger := a.cfg, a.logger

	var err error

	if a.policies, err = openPolicyStore(&cfg.Storage.Policies); err != nil {
		return err
	}
	a.closers = append(a.closers, a.policies.Close)

	if a.records, err = openRecordStore(&cfg.Storage.Records); err != nil {
		return err
	}
	a.closers = append(a.closers, a.records.Close)

	if a.notifier, err = a.openNotifier(); err != nil {
		return err
	}

	a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())

	if a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version); err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		return a.tracer.Shutdown(ctx)
	})

	a.engine, err = engine.New(&engine.Config{
		BatchSize:   cfg.Retention.DeleteBatchSize,
		DeleteRate:  cfg.Retention.DeleteRate,
		DeleteBurst: cfg.Retention.DeleteBurst,
	}, engine.Deps{
		Policies: a.policies,
		Records:  a.records,
		Holds:    a.policies,
		Archiver: archive.NewFileArchiver(cfg.Retention.ArchiveRoot),
		Notifier: a.notifier,
		Observer: a.metrics,
		Tracer:   a.tracer.Tracer(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	a.scheduler, err = scheduler.New(a.policies, a.engine,
		scheduler.WithSchedule(cfg.Retention.TickSchedule),
		scheduler.WithMaxConcurrent(cfg.Retention.MaxConcurrent),
		scheduler.WithLeaseTTL(cfg.Retention.LeaseTTL),
		scheduler.WithInstanceID(cfg.Retention.InstanceID),
		scheduler.WithObserver(a.metrics),
		scheduler.WithTracer(a.tracer.Tracer()),
		scheduler.WithLogger(logger),
	)
	return err
}

func openPolicyStore(cfg *config.PolicyStorageConfig) (policyBackend, error) {
	switch cfg.Backend {
	case "memory":
		return policystore.NewMemoryStore(), nil
	case "sqlite":
		store, err := policystore.NewSQLiteStore(policystore.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open policy store: %w", err)
		}
		return store, nil
	default:
		return nil, cli.NewConfigError("storage.policies.backend", "unsupported backend "+cfg.Backend)
	}
}

func openRecordStore(cfg *config.RecordStorageConfig) (retention.RecordStore, error) {
	var dialect string
	switch cfg.Backend {
	case "memory":
		return recordstore.NewMemoryStore(), nil
	case "sqlite":
		dialect = recordstore.DialectSQLite
	case "postgres":
		dialect = recordstore.DialectPostgres
	default:
		return nil, cli.NewConfigError("storage.records.backend", "unsupported backend "+cfg.Backend)
	}

	store, err := recordstore.OpenSQL(recordstore.SQLConfig{
		Dialect:      dialect,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
		Migrate:      cfg.Migrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return store, nil
}

// openNotifier always logs run events; the nats backend publishes them as
// well.
func (a *app) openNotifier() (retention.Notifier, error) {
	logNotifier := notify.NewLogNotifier(a.logger)

	switch a.cfg.Notify.Backend {
	case "log":
		return logNotifier, nil
	case "nats":
		n, err := notify.ConnectNATS(a.cfg.Notify.NATSURL, a.cfg.Notify.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, n.Close)
		return notify.Multi{logNotifier, n}, nil
	default:
		return nil, cli.NewConfigError("notify.backend", "unsupported backend "+a.cfg.Notify.Backend)
	}
}

// metricsIfEnabled returns the collector when metrics are exposed.
func (a *app) metricsIfEnabled() *metrics.Collector {
	if !a.cfg.Telemetry.Metrics.IsEnabled() {
		return nil
	}
	return a.metrics
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withApp loads config, builds the app and runs fn with it.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("error closing resources", "error", cerr)
		}
	}()
	return fn(ctx, a)
}
