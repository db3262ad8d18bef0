package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chryso-hq/forms/pkg/cli"
	"chryso-hq/forms/pkg/config"
	"chryso-hq/forms/pkg/retention/policyfile"
	securitytls "chryso-hq/forms/pkg/security/tls"
	"chryso-hq/forms/pkg/server"
	"chryso-hq/forms/pkg/telemetry/health"
)

// policyFileActor is recorded as the creator of policies seeded from the
// policy file.
const policyFileActor = "policyfile"

var runFlags struct {
	listenAddress string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the retention scheduler and admin API",
	Long: `Start the retention service.

The scheduler evaluates every active policy on the configured tick and runs
those that are due. When a policy file is configured it is applied to the
policy store at startup and, with policies.watch, whenever it changes.

Examples:
  # Start with a config file
  chryso run --config /etc/chryso/config.yaml

  # Override the admin API listen address
  chryso run --listen 0.0.0.0:8090

  # Validate config without starting
  chryso run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override admin API listen address")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.dryRun {
		fmt.Fprintln(stdout, "✓ Configuration valid")
		return nil
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

	parent := context.Background()
	if cmd != nil && cmd.Context() != nil {
		parent = cmd.Context()
	}
	ctx, stop := cli.SetupSignalHandler(parent)
	defer stop()

	if cfg.Policies.File != "" {
		report, err := policyfile.Sync(ctx, a.policies, cfg.Policies.File, policyFileActor)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("apply policy file: %w", err))
		}
		logger.Info("policy file applied",
			"path", cfg.Policies.File,
			"created", len(report.Created),
			"updated", len(report.Updated),
		)
	}

	checker := health.New(0)
	checker.RegisterCheck("policy_store", health.PingCheck(a.policies))
	if p, ok := a.records.(health.Pinger); ok {
		checker.RegisterCheck("record_store", health.PingCheck(p))
	}
	checker.RegisterCheck("scheduler", health.SchedulerCheck(a.scheduler.IsRunning))

	if err := a.scheduler.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.scheduler.Stop()
	if next := a.scheduler.NextRun(); next != nil {
		logger.Info("retention scheduler started",
			"instance_id", a.scheduler.InstanceID(),
			"schedule", cfg.Retention.TickSchedule,
			"next_tick", next,
		)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Policies.File != "" && cfg.Policies.Watch {
		watcher, err := policyfile.NewWatcher(cfg.Policies.File, cfg.Policies.DebounceInterval, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer watcher.Stop()
		g.Go(func() error {
			return watcher.Watch(gctx, func(ctx context.Context) error {
				report, err := policyfile.Sync(ctx, a.policies, cfg.Policies.File, policyFileActor)
				if err != nil {
					return err
				}
				logger.InfoContext(ctx, "policy file reloaded",
					"created", len(report.Created),
					"updated", len(report.Updated),
				)
				return nil
			})
		})
	}

	if cfg.Server.IsEnabled() {
		tlsConfig, err := serverTLS(ctx, cfg.Server.TLS, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		srv, err := server.New(&cfg.Server, &cfg.Auth, server.Deps{
			Policies:    a.policies,
			Holds:       a.policies,
			Runner:      a.scheduler,
			Previewer:   a.engine,
			Health:      checker,
			Metrics:     a.metricsIfEnabled(),
			MetricsPath: cfg.Telemetry.Metrics.Path,
			Tracer:      a.tracer.Tracer(),
			TLS:         tlsConfig,
			Version:     versionInfo(),
			Logger:      logger,
		})
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		g.Go(func() error { return srv.Start(gctx) })
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
		}
		fmt.Fprintf(stdout, "✓ Admin API listening on %s://%s\n", scheme, cfg.Server.ListenAddress)
	}

	fmt.Fprintln(stdout, "✓ Retention service started, press Ctrl+C to stop")
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return cli.NewCommandError("run", err)
	}
	logger.Info("retention service stopped")
	return nil
}

// serverTLS returns nil when TLS is disabled. The certificate pair is
// reloaded in the background until ctx is cancelled.
func serverTLS(ctx context.Context, cfg config.TLSConfig, logger *slog.Logger) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	reloader := securitytls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	if err := reloader.Start(ctx); err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}
	return securitytls.NewServerConfig(&cfg, reloader)
}
