package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/fleetstate/internal/fleetapi"
)

// Outcome records what happened to one plan entry during execution.
type Outcome struct {
	Entry  Entry
	Status string // "applied", "skipped", "planned"
}

// Execute runs every mutating entry of the plan in order. Skip entries are
// passed through untouched. The first transport failure aborts the run:
// entries already mutated stay mutated, there is no rollback across API
// calls. Outcomes for everything processed so far are returned alongside
// the error so callers can still journal a failed run.
func (p *Planner) Execute(ctx context.Context, plan *Plan) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(plan.Entries))
	log := p.log()

	for _, entry := range plan.Entries {
		if entry.Action == ActionSkip {
			outcomes = append(outcomes, Outcome{Entry: entry, Status: "skipped"})
			continue
		}

		client := p.clientFor(entry.Kind)
		path := strings.TrimPrefix(entry.URL, client.BaseURL())

		var err error
		switch entry.Method {
		case "PUT":
			_, err = client.Put(ctx, path, entry.Payload)
		case "POST":
			_, err = client.Post(ctx, path, entry.Payload)
		default:
			err = fmt.Errorf("unsupported method %q", entry.Method)
		}
		if err != nil {
			return outcomes, fmt.Errorf("%s %s %q: %w", entry.Action, entry.Kind, entry.Name, err)
		}

		log.Info("applied", "kind", string(entry.Kind), "name", entry.Name, "action", string(entry.Action))
		outcomes = append(outcomes, Outcome{Entry: entry, Status: "applied"})
	}
	return outcomes, nil
}

// PlannedOutcomes returns the dry-run view of a plan: every entry with
// status "planned" (or "skipped"), no request issued.
func PlannedOutcomes(plan *Plan) []Outcome {
	outcomes := make([]Outcome, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		status := "planned"
		if entry.Action == ActionSkip {
			status = "skipped"
		}
		outcomes = append(outcomes, Outcome{Entry: entry, Status: status})
	}
	return outcomes
}

func (p *Planner) clientFor(kind Kind) *fleetapi.Client {
	if kind == KindAgentPolicy {
		return p.Fleet
	}
	return p.ES
}
