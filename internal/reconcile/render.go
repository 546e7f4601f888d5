package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/fleetstate/internal/fleetapi"
)

// RenderPlan writes the dry-run view of a plan: one curl-equivalent request
// description per suppressed mutation, byte-for-byte stable across runs for
// an unchanged document so consecutive plans are diffable.
func RenderPlan(w io.Writer, plan *Plan) error {
	if plan.Unverified {
		fmt.Fprintln(w, "NOTE: live inventory could not be fetched; create/update decisions are unverified.")
		fmt.Fprintln(w)
	}

	for _, entry := range plan.Entries {
		if entry.Action == ActionSkip {
			fmt.Fprintf(w, "SKIP %s %q: %s\n\n", entry.Kind, entry.Name, entry.SkipReason)
			continue
		}

		fmt.Fprintf(w, "%s %s %q\n", strings.ToUpper(string(entry.Action)), entry.Kind, entry.Name)
		fmt.Fprintf(w, "DRY RUN: Would execute %s %s\n", entry.Method, entry.URL)
		if entry.Payload != nil {
			curl, err := curlEquivalent(entry)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "CURL equivalent:")
			fmt.Fprintln(w, curl)
		}
		fmt.Fprintln(w)
	}

	if len(plan.Warnings) > 0 {
		fmt.Fprintf(w, "%d warning(s):\n", len(plan.Warnings))
		for _, warning := range plan.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	return nil
}

// curlEquivalent renders one entry as a runnable curl command. The
// credential is never embedded: the rendered command references the
// environment variable instead. Underscore-prefixed informational keys are
// removed from the printed body.
func curlEquivalent(entry Entry) (string, error) {
	body := make(map[string]any, len(entry.Payload))
	for k, v := range entry.Payload {
		if strings.HasPrefix(k, "_") {
			continue
		}
		body[k] = v
	}
	encoded, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render %s %q: %w", entry.Kind, entry.Name, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "curl -X %s \\\n", entry.Method)
	fmt.Fprintf(&b, "  -H \"Authorization: ApiKey $%s\" \\\n", fleetapi.APIKeyEnv)
	b.WriteString("  -H \"kbn-xsrf: true\" \\\n")
	b.WriteString("  -H \"Content-Type: application/json\" \\\n")
	fmt.Fprintf(&b, "  %q \\\n", entry.URL)
	fmt.Fprintf(&b, "  -d %s", shellQuote(string(encoded)))
	return b.String(), nil
}

// shellQuote single-quotes a string for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
