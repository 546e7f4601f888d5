package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fleetstate/internal/discover"
	"github.com/roach88/fleetstate/internal/state"
)

// DiscoverOptions holds flags for the discover command.
type DiscoverOptions struct {
	*RootOptions
	Conn      ConnOptions
	OutputDir string
}

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiscoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Dump the live deployment into a declarative state directory",
		Long: `Discover the state of a live Fleet deployment and write it as a
declarative state directory: non-managed component templates and ingest
pipelines verbatim, package policies deduplicated into content-addressed
integration fragments, and agent policies grouped by their integration set
into one fleet_definition.yaml document.

Running discover twice against an unchanged deployment produces a
byte-identical document.

Example:
  fleetstate discover --url https://kb.example.com --output-dir fleet_state`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(opts, cmd)
		},
	}

	opts.Conn.AddFlags(cmd)
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "fleet_state_discovered", "directory to save the state files")

	return cmd
}

// DiscoverReport is the machine-readable discover result.
type DiscoverReport struct {
	Templates   int    `json:"component_templates"`
	Pipelines   int    `json:"ingest_pipelines"`
	Fragments   int    `json:"fragments"`
	Definitions int    `json:"integration_definitions"`
	Policies    int    `json:"agent_policies"`
	Agents      int    `json:"agents"`
	Document    string `json:"document"`
}

func runDiscover(opts *DiscoverOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	fleet, es, err := opts.Conn.Clients()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	dir := state.NewDir(opts.OutputDir)
	slog.Info("starting state discovery", "url", fleet.BaseURL(), "output", opts.OutputDir)

	result, err := discover.Run(ctx, discover.Options{
		Fleet: fleet,
		ES:    es,
		Dir:   dir,
		Log:   slog.Default(),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "discovery failed", err)
	}

	report := DiscoverReport{
		Templates:   result.Templates,
		Pipelines:   result.Pipelines,
		Fragments:   result.Fragments,
		Definitions: result.Definitions,
		Policies:    result.Policies,
		Agents:      result.Agents,
		Document:    dir.DocumentPath(),
	}
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "Discovery complete: %d templates, %d pipelines, %d fragments, %d definitions, %d policies, %d agents\n",
		report.Templates, report.Pipelines, report.Fragments, report.Definitions, report.Policies, report.Agents)
	fmt.Fprintf(formatter.Writer, "Wrote %s\n", report.Document)
	return nil
}
