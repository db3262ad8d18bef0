package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"chryso-hq/forms/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	verbose      bool
	outputFormat string

	// stdout receives command results; logs go to stderr.
	stdout io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "chryso",
	Short: "Chryso Forms data retention service",
	Long: `Chryso enforces per-organization data retention policies for Chryso Forms.

Each policy names an entity type, a retention period and an execution
schedule. When a policy is due, records older than the period are archived
(optionally) and deleted, unless a legal hold applies.

Configuration is read from the file given with --config. Every setting can
be overridden with a CHRYSO_* environment variable.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus CHRYSO_* environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format (text, json, csv)")
}

// render writes data to stdout in the --output format.
func render(data any) error {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(stdout, data)
}
