package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/policyfile"
)

var policyFlags struct {
	organization string
	entityType   string
	activeOnly   bool
	actor        string
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage retention policies",
	Long: `Manage retention policies in the configured policy store.

Subcommands:
  list        - List policies
  get         - Show one policy
  apply       - Create or update policies from a YAML file or directory
  deactivate  - Deactivate a policy
  validate    - Check a policy file without touching the store

Examples:
  # List the active policies of one organization
  chryso policy list --org org-1 --active

  # Apply a policy directory
  chryso policy apply ./policies

  # Check a file in CI
  chryso policy validate policies.yaml`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retention policies",
	Args:  cobra.NoArgs,
	RunE:  listPolicies,
}

var policyGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a retention policy",
	Args:  cobra.ExactArgs(1),
	RunE:  getPolicy,
}

var policyApplyCmd = &cobra.Command{
	Use:   "apply <file-or-dir>",
	Short: "Create or update policies from YAML",
	Long: `Apply a policy file or every policy file in a directory.

Policies with an id update that policy. Policies without one update the
existing policy for the same organization and entity type, or are created.
Execution stats of existing policies are preserved. Policies missing from
the file are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: applyPolicies,
}

var policyDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Deactivate a retention policy",
	Args:  cobra.ExactArgs(1),
	RunE:  deactivatePolicy,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <file-or-dir>",
	Short: "Validate a policy file",
	Args:  cobra.ExactArgs(1),
	RunE:  validatePolicies,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyGetCmd, policyApplyCmd, policyDeactivateCmd, policyValidateCmd)

	policyListCmd.Flags().StringVar(&policyFlags.organization, "org", "", "filter by organization id")
	policyListCmd.Flags().StringVar(&policyFlags.entityType, "entity", "", "filter by entity type")
	policyListCmd.Flags().BoolVar(&policyFlags.activeOnly, "active", false, "only active policies")

	policyApplyCmd.Flags().StringVar(&policyFlags.actor, "actor", "cli", "recorded as creator of new policies")
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func listPolicies(cmd *cobra.Command, args []string) error {
	filter := retention.PolicyFilter{
		OrganizationID: policyFlags.organization,
		EntityType:     retention.EntityType(policyFlags.entityType),
		ActiveOnly:     policyFlags.activeOnly,
	}
	if filter.EntityType != "" && !filter.EntityType.Valid() {
		return fmt.Errorf("unknown entity type %q", policyFlags.entityType)
	}

	return withApp(commandContext(cmd), func(ctx context.Context, a *app) error {
		policies, err := a.policies.List(ctx, filter)
		if err != nil {
			return err
		}
		return render(policyTable(policies))
	})
}

func getPolicy(cmd *cobra.Command, args []string) error {
	return withApp(commandContext(cmd), func(ctx context.Context, a *app) error {
		p, err := a.policies.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return render(p)
		}
		return render(policyTable{p})
	})
}

func applyPolicies(cmd *cobra.Command, args []string) error {
	return withApp(commandContext(cmd), func(ctx context.Context, a *app) error {
		report, err := policyfile.Sync(ctx, a.policies, args[0], policyFlags.actor)
		if err != nil {
			return describeValidation(err)
		}
		fmt.Fprintf(stdout, "✓ %d created, %d updated\n", len(report.Created), len(report.Updated))
		return nil
	})
}

func deactivatePolicy(cmd *cobra.Command, args []string) error {
	return withApp(commandContext(cmd), func(ctx context.Context, a *app) error {
		if err := a.policies.Deactivate(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Policy %s deactivated\n", args[0])
		return nil
	})
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	policies, err := policyfile.Load(args[0])
	if err != nil {
		return describeValidation(err)
	}
	fmt.Fprintf(stdout, "✓ %d policies valid\n", len(policies))
	return nil
}

// describeValidation prints each field problem before returning err.
func describeValidation(err error) error {
	var ve *retention.ValidationError
	if errors.As(err, &ve) {
		for _, fe := range ve.Errors {
			fmt.Fprintf(stdout, "✗ %s: %s\n", fe.Field, fe.Message)
		}
	}
	return err
}
