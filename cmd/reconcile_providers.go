package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"prefs-manager/core/reconcile"

	"github.com/spf13/cobra"
)

var (
	// Flags for the reconcile command
	applyRepairs    bool
	removeExtraKeys bool
	dryRunReconcile bool
	yesConfirm      bool
)

// reconcileCmd reports provider drift and optionally repairs it.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Detect and repair drift between preference providers",
	Long: `Compare every provider's contents against the resolved state and
report keys that are missing, stale, or extra per provider.

Examples:
  # Report only (dry-run)
  prefs-manager reconcile

  # Repair missing and stale keys (with interactive confirmation)
  prefs-manager reconcile --apply

  # Repair with auto-confirm (non-interactive)
  prefs-manager reconcile --apply --yes

  # Also delete keys outside the resolved state
  prefs-manager reconcile --apply --remove-extra --yes`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&applyRepairs, "apply", false, "Apply the planned repairs")
	reconcileCmd.Flags().BoolVar(&removeExtraKeys, "remove-extra", false, "Delete keys outside the resolved state")
	reconcileCmd.Flags().BoolVar(&dryRunReconcile, "dry-run", false, "Force dry-run (no mutations even with --yes)")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm repairs (non-interactive)")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStack(ctx)
	if err != nil {
		return err
	}

	providers := st.injector.Providers()

	// Plan first so the confirmation prompt can show what would change.
	states, err := reconcile.Snapshot(ctx, providers)
	if err != nil {
		return err
	}
	truth, err := reconcile.Truth(states, st.strategy)
	if err != nil {
		return err
	}

	opts := reconcile.Options{RemoveExtra: removeExtraKeys, DryRun: dryRunReconcile || !applyRepairs}
	plan := reconcile.BuildPlan(truth, states, opts)

	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if opts.DryRun || len(plan.Findings) == 0 {
		return nil
	}

	opts.Confirmed = yesConfirm
	if !opts.Confirmed {
		fmt.Printf("Apply %d repairs? [y/N]: ", len(plan.Findings))
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		opts.Confirmed = strings.TrimSpace(strings.ToLower(answer)) == "y"
	}
	if !opts.Confirmed {
		fmt.Println("aborted")
		return nil
	}

	executed, err := reconcile.Apply(ctx, providers, plan, opts)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d repairs\n", executed)
	return nil
}
