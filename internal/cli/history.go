package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fleetstate/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	StateDir    string
	JournalPath string
	RunID       string
	Limit       int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled build runs",
		Long: `List past build runs recorded in the journal, newest first. With --run,
show the per-entity plan entries of one run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "fleet_state_discovered", "directory containing the state files")
	cmd.Flags().StringVar(&opts.JournalPath, "journal", "", "path to the run journal database (default <state-dir>/journal.db)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the entries of one run id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

// HistoryRun is the machine-readable form of one journaled run.
type HistoryRun struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	StartedAt  string `json:"started_at"`
	Entries    int    `json:"entries"`
	Warnings   int    `json:"warnings"`
	Unverified bool   `json:"unverified,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	path := opts.JournalPath
	if path == "" {
		path = filepath.Join(opts.StateDir, "journal.db")
	}
	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open journal", err)
	}
	defer j.Close()

	ctx := context.Background()

	if opts.RunID != "" {
		return showRunEntries(ctx, formatter, j, opts.RunID)
	}

	summaries, err := j.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot list runs", err)
	}

	if formatter.Format == "json" {
		runs := make([]HistoryRun, len(summaries))
		for i, s := range summaries {
			runs[i] = HistoryRun{
				ID:         s.Run.ID,
				Mode:       s.Run.Mode,
				StartedAt:  s.Run.StartedAt.Format(time.RFC3339),
				Entries:    s.EntryCount,
				Warnings:   s.Run.WarningCount,
				Unverified: s.Run.Unverified,
				Error:      s.Run.Error,
			}
		}
		return formatter.Success(runs)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		status := "ok"
		if s.Run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(formatter.Writer, "%s  %s  %-7s  %d entries  %d warning(s)  %s\n",
			s.Run.StartedAt.Format(time.RFC3339), s.Run.ID, s.Run.Mode, s.EntryCount, s.Run.WarningCount, status)
	}
	return nil
}

func showRunEntries(ctx context.Context, formatter *OutputFormatter, j *journal.Journal, runID string) error {
	entries, err := j.RunEntries(ctx, runID)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot read run entries", err)
	}
	if len(entries) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no entries for run %s", runID))
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	for _, e := range entries {
		digest := e.PayloadDigest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(formatter.Writer, "%3d  %-18s  %-7s  %-7s  %s  %s\n",
			e.Seq, e.Kind, e.Action, e.Status, e.Name, digest)
	}
	return nil
}
