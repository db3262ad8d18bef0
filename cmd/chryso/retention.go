package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chryso-hq/forms/pkg/cli"
	"chryso-hq/forms/pkg/retention/engine"
)

var retentionFlags struct {
	all bool
	at  string
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Run retention policies from the command line",
	Long: `Run retention policies once, outside the service.

Runs take the same per-policy lease as the service, so they are safe to
start while the service is running.

Subcommands:
  tick     - Run every policy that is due now, like one scheduler tick
  run      - Run policies now, ignoring their schedule
  preview  - Show what a policy would delete, without side effects`,
}

var retentionTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run every policy due now",
	Args:  cobra.NoArgs,
	RunE:  retentionTick,
}

var retentionRunCmd = &cobra.Command{
	Use:   "run [id...]",
	Short: "Run policies now",
	Long: `Run the given policies now, ignoring their schedule. With --all every
active policy is run.`,
	RunE: retentionRun,
}

var retentionPreviewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Dry-run a policy",
	Args:  cobra.ExactArgs(1),
	RunE:  retentionPreview,
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionTickCmd, retentionRunCmd, retentionPreviewCmd)

	retentionCmd.PersistentFlags().StringVar(&retentionFlags.at, "at", "", "evaluate as of this RFC 3339 time instead of now")
	retentionRunCmd.Flags().BoolVar(&retentionFlags.all, "all", false, "run every active policy")
}

// evaluationTime returns --at, or now.
func evaluationTime() (time.Time, error) {
	if retentionFlags.at == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, retentionFlags.at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return t, nil
}

func retentionTick(cmd *cobra.Command, args []string) error {
	now, err := evaluationTime()
	if err != nil {
		return err
	}
	return withApp(commandContext(cmd), func(ctx context.Context, a *app) error {
		report := a.scheduler.Tick(ctx, now)
		if report.Err != nil {
			return cli.NewCommandError("retention tick", report.Err)
		}
		if len(report.Results) == 0 {
			fmt.Fprintf(stdout, "No policies due (%d evaluated)\n", report.Evaluated)
			return nil
		}
		return finishRuns(newRunTable(report.Results...))
	})
}

func retentionRun(cmd *cobra.Command, args []string) error {
	if retentionFlags.all == (len(args) > 0) {
		return fmt.Errorf("give policy ids or --all")
	}
	now, err := evaluationTime()
	if err != nil {
		return err
	}

	return withApp(commandContext(cmd), func(ctx context.Context, a *app) error {
		ids := args
		if retentionFlags.all {
			active, err := a.policies.FindActivePolicies(ctx)
			if err != nil {
				return err
			}
			ids = make([]string, 0, len(active))
			for _, p := range active {
				ids = append(ids, p.ID)
			}
		}

		var progress cli.ProgressReporter
		if len(ids) > 1 {
			progress = cli.NewProgressReporter(nil)
			progress.Start(len(ids))
		}

		results := make([]*engine.Result, 0, len(ids))
		for _, id := range ids {
			res, err := a.scheduler.RunNow(ctx, id, now)
			if err != nil {
				return cli.NewCommandError("retention run", fmt.Errorf("policy %s: %w", id, err))
			}
			results = append(results, res)
			if progress != nil {
				progress.Done(id, res.Succeeded())
			}
		}
		if progress != nil {
			progress.Finish()
		}
		return finishRuns(newRunTable(results...))
	})
}

func retentionPreview(cmd *cobra.Command, args []string) error {
	now, err := evaluationTime()
	if err != nil {
		return err
	}
	return withApp(commandContext(cmd), func(ctx context.Context, a *app) error {
		p, err := a.policies.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return render(newRunTable(a.engine.Preview(ctx, p, now)))
	})
}

// finishRuns renders results and reports failed runs through the exit code.
func finishRuns(t runTable) error {
	if err := render(t); err != nil {
		return err
	}
	if n := t.failures(); n > 0 {
		return &cli.RunFailedError{Failed: n, Total: len(t)}
	}
	return nil
}
