package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fleetstate/internal/state"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	StateDir string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a state directory without touching the live service",
		Long: `Validate the declarative document against its schema and cross-check
its references: every definition must point at an existing fragment file
and every policy integration at an existing definition.

No network access is performed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.StateDir, "state-dir", "fleet_state_discovered", "directory containing the state files")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dir := state.NewDir(opts.StateDir)
	doc, err := dir.ReadDocument()
	if err != nil {
		var docErr *state.DocumentError
		if errors.As(err, &docErr) {
			_ = formatter.Error("MALFORMED_DOCUMENT", err.Error(), nil)
			return NewExitError(ExitFailure, "document validation failed")
		}
		return WrapExitError(ExitCommandError, "cannot read declarative document", err)
	}

	problems := crossCheck(dir, doc)
	if len(problems) > 0 {
		if formatter.Format == "json" {
			_ = formatter.Success(ValidationResult{Valid: false, Problems: problems})
		} else {
			fmt.Fprintln(formatter.Writer, "Document is schema-valid but has unresolved references:")
			for _, p := range problems {
				fmt.Fprintf(formatter.Writer, "  - %s\n", p)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d unresolved reference(s)", len(problems)))
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "State directory is valid")
	return nil
}

// crossCheck verifies that every reference in the document resolves inside
// the state directory. These are the same conditions build downgrades to
// warnings; validate surfaces them ahead of time.
func crossCheck(dir state.Dir, doc state.DeclarativeState) []string {
	var problems []string

	for _, key := range doc.DefinitionKeys() {
		def := doc.IntegrationDefinitions[key]
		if def.Fragment == "" {
			problems = append(problems, fmt.Sprintf("definition %q has no fragment reference", key))
			continue
		}
		if _, err := dir.ReadFragmentBody(def.Fragment); err != nil {
			problems = append(problems, fmt.Sprintf("definition %q: fragment file %q missing", key, def.Fragment))
		}
	}

	for _, name := range doc.PolicyNames() {
		for _, key := range doc.AgentPolicies[name].Integrations {
			if _, ok := doc.IntegrationDefinitions[key]; !ok {
				problems = append(problems, fmt.Sprintf("policy %q references unknown definition %q", name, key))
			}
		}
	}

	for _, name := range doc.FoundationalAssets.ComponentTemplates {
		if _, err := dir.ReadTemplateBody(name); err != nil {
			problems = append(problems, fmt.Sprintf("component template file %q missing", name))
		}
	}
	for _, name := range doc.FoundationalAssets.IngestPipelines {
		if _, err := dir.ReadPipelineBody(name); err != nil {
			problems = append(problems, fmt.Sprintf("ingest pipeline file %q missing", name))
		}
	}

	return problems
}
