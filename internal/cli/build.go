package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fleetstate/internal/journal"
	"github.com/roach88/fleetstate/internal/reconcile"
	"github.com/roach88/fleetstate/internal/state"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Conn        ConnOptions
	StateDir    string
	DryRun      bool
	JournalPath string
	NoJournal   bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Reconcile a declarative state directory against a live deployment",
		Long: `Build (or update) a Fleet deployment from a declarative state directory.

Foundational assets are upserted unconditionally by name. Agent policies are
matched by name against the live inventory: an existing policy is updated
against its live id, a missing one is created. Re-running build against an
unchanged document never creates duplicates.

With --dry-run every read needed for an accurate plan still happens, but
mutations are rendered as curl-equivalent request descriptions instead of
being issued.

Example:
  fleetstate build --url https://kb.example.com --state-dir fleet_state --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	opts.Conn.AddFlags(cmd)
	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "fleet_state_discovered", "directory containing the state files")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print planned actions instead of executing them")
	cmd.Flags().StringVar(&opts.JournalPath, "journal", "", "path to the run journal database (default <state-dir>/journal.db)")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "do not record this run in the journal")

	return cmd
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)
	out := cmd.OutOrStdout()

	fleet, es, err := opts.Conn.Clients()
	if err != nil {
		return err
	}

	dir := state.NewDir(opts.StateDir)
	doc, err := dir.ReadDocument()
	if err != nil {
		var docErr *state.DocumentError
		if errors.As(err, &docErr) {
			return WrapExitError(ExitCommandError, "invalid declarative document", err)
		}
		return WrapExitError(ExitCommandError, "cannot read declarative document", err)
	}

	mode := reconcile.Apply
	if opts.DryRun {
		mode = reconcile.DryRun
		fmt.Fprintln(out, "=== DRY RUN MODE: no changes will be made ===")
		fmt.Fprintln(out)
	}

	ctx, cancel := signalContext()
	defer cancel()

	planner := &reconcile.Planner{Fleet: fleet, ES: es, Dir: dir, Log: slog.Default()}
	started := time.Now()

	plan, err := planner.Plan(ctx, doc, mode)
	if err != nil {
		return WrapExitError(ExitFailure, "planning failed", err)
	}

	var (
		outcomes []reconcile.Outcome
		execErr  error
	)
	if mode == reconcile.DryRun {
		if err := reconcile.RenderPlan(out, plan); err != nil {
			return WrapExitError(ExitFailure, "rendering plan failed", err)
		}
		outcomes = reconcile.PlannedOutcomes(plan)
	} else {
		outcomes, execErr = planner.Execute(ctx, plan)
		for _, warning := range plan.Warnings {
			fmt.Fprintf(out, "warning: %s\n", warning)
		}
	}

	if !opts.NoJournal {
		if err := recordRun(opts, plan, outcomes, started, execErr); err != nil {
			slog.Warn("could not record run in journal", "error", err)
		}
	}

	if execErr != nil {
		return WrapExitError(ExitFailure, "build failed", execErr)
	}
	if mode == reconcile.DryRun {
		fmt.Fprintln(out, "Dry run complete. Review the planned actions above.")
	} else {
		fmt.Fprintf(out, "Build complete: %d entries applied, %d warning(s)\n", len(outcomes), len(plan.Warnings))
	}
	return nil
}

// recordRun journals the run. Journal problems never fail the build; the
// journal is informational only.
func recordRun(opts *BuildOptions, plan *reconcile.Plan, outcomes []reconcile.Outcome, started time.Time, execErr error) error {
	path := opts.JournalPath
	if path == "" {
		path = filepath.Join(opts.StateDir, "journal.db")
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	run := journal.Run{
		ID:           journal.NewRunID(),
		Mode:         plan.Mode.String(),
		DocumentPath: state.NewDir(opts.StateDir).DocumentPath(),
		StartedAt:    started,
		FinishedAt:   time.Now(),
		WarningCount: len(plan.Warnings),
		Unverified:   plan.Unverified,
	}
	if execErr != nil {
		run.Error = execErr.Error()
	}
	return j.RecordRun(context.Background(), run, outcomes)
}
