package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fleetstate/internal/fleetapi"
	"github.com/roach88/fleetstate/internal/state"
)

// Mode selects whether a run mutates the live service or only renders the
// plan.
type Mode int

const (
	// Apply executes every planned mutation.
	Apply Mode = iota
	// DryRun performs all read-only lookups needed for an accurate plan
	// but suppresses mutations, rendering them instead.
	DryRun
)

func (m Mode) String() string {
	if m == DryRun {
		return "dry-run"
	}
	return "apply"
}

// Action is the per-entity reconciliation decision.
type Action string

const (
	// ActionCreate posts a new entity.
	ActionCreate Action = "create"
	// ActionUpdate puts against an existing live id.
	ActionUpdate Action = "update"
	// ActionUpsert puts by name with no identity lookup; the service
	// accepts idempotent overwrite. Used for foundational assets.
	ActionUpsert Action = "upsert"
	// ActionSkip records an entity left untouched, with a reason.
	ActionSkip Action = "skip"
)

// Kind identifies the entity class a plan entry targets.
type Kind string

const (
	KindComponentTemplate Kind = "component_template"
	KindIngestPipeline    Kind = "ingest_pipeline"
	KindAgentPolicy       Kind = "agent_policy"
)

// Entry is one reconciliation decision: what to do, to which entity, with
// which payload. Method and URL describe the mutating request so dry-run
// can render an inspectable equivalent without issuing it.
type Entry struct {
	Kind       Kind
	Name       string
	LiveID     string
	Action     Action
	SkipReason string
	Method     string
	URL        string
	Payload    map[string]any
}

// Plan is the ordered list of decisions for one run, plus the warnings
// accumulated while computing it. Unverified marks a dry-run plan whose
// create-vs-update decisions could not be checked against live inventory.
type Plan struct {
	Mode       Mode
	Entries    []Entry
	Warnings   Warnings
	Unverified bool
}

// Planner computes and executes reconciliation plans.
type Planner struct {
	Fleet *fleetapi.Client // Kibana Fleet API
	ES    *fleetapi.Client // Elasticsearch API
	Dir   state.Dir
	Log   *slog.Logger
}

func (p *Planner) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// Plan computes the full reconciliation plan for a declarative document.
//
// Foundational assets come first, then agent policies in sorted name order,
// so repeated runs against the same document produce byte-identical plans.
// Reads required for create-vs-update decisions are fatal in apply mode and
// degrade to an unverified plan in dry-run mode.
func (p *Planner) Plan(ctx context.Context, doc state.DeclarativeState, mode Mode) (*Plan, error) {
	plan := &Plan{Mode: mode}

	p.planAssets(plan, doc)

	if err := p.planPolicies(ctx, plan, doc, mode); err != nil {
		return nil, err
	}
	return plan, nil
}

// planAssets plans the unconditional upsert of every referenced component
// template and ingest pipeline. A missing local file skips just that asset:
// partial infrastructure application beats an all-or-nothing failure.
func (p *Planner) planAssets(plan *Plan, doc state.DeclarativeState) {
	for _, name := range doc.FoundationalAssets.ComponentTemplates {
		body, err := p.Dir.ReadTemplateBody(name)
		if err != nil {
			plan.Warnings.Addf("component template file not found, skipping: %s", name)
			plan.Entries = append(plan.Entries, Entry{
				Kind: KindComponentTemplate, Name: name,
				Action: ActionSkip, SkipReason: "local file missing",
			})
			continue
		}
		plan.Entries = append(plan.Entries, Entry{
			Kind: KindComponentTemplate, Name: name,
			Action: ActionUpsert,
			Method: "PUT", URL: p.ES.BaseURL() + "/_component_template/" + name,
			Payload: body,
		})
	}

	for _, name := range doc.FoundationalAssets.IngestPipelines {
		body, err := p.Dir.ReadPipelineBody(name)
		if err != nil {
			plan.Warnings.Addf("ingest pipeline file not found, skipping: %s", name)
			plan.Entries = append(plan.Entries, Entry{
				Kind: KindIngestPipeline, Name: name,
				Action: ActionSkip, SkipReason: "local file missing",
			})
			continue
		}
		plan.Entries = append(plan.Entries, Entry{
			Kind: KindIngestPipeline, Name: name,
			Action: ActionUpsert,
			Method: "PUT", URL: p.ES.BaseURL() + "/_ingest/pipeline/" + name,
			Payload: body,
		})
	}
}

// planPolicies resolves each agent-policy class into a desired payload and
// decides create vs update by name against the live inventory.
func (p *Planner) planPolicies(ctx context.Context, plan *Plan, doc state.DeclarativeState, mode Mode) error {
	if len(doc.AgentPolicies) == 0 {
		return nil
	}
	if len(doc.IntegrationDefinitions) == 0 {
		// An empty definitions catalog resolves no integration, so every
		// planned policy payload would carry empty package_policies and an
		// update would strip the integrations off the live policy.
		plan.Warnings.Addf("document has no integration definitions, skipping %d agent policies", len(doc.AgentPolicies))
		return nil
	}

	nameToID, err := p.fetchInventory(ctx)
	if err != nil {
		if mode == Apply {
			// An inaccurate create/update decision is unsafe to act on.
			return fmt.Errorf("fetch existing policies: %w", err)
		}
		plan.Warnings.Addf("could not fetch existing policies, assuming all policies are new: %v", err)
		plan.Unverified = true
		nameToID = map[string]string{}
	}

	for _, name := range doc.PolicyNames() {
		class := doc.AgentPolicies[name]
		payload := p.desiredPolicy(plan, doc, name, class.Description, class.Integrations)

		if id, ok := nameToID[name]; ok {
			plan.Entries = append(plan.Entries, Entry{
				Kind: KindAgentPolicy, Name: name, LiveID: id,
				Action: ActionUpdate,
				Method: "PUT", URL: p.Fleet.BaseURL() + "/api/fleet/agent_policies/" + id,
				Payload: payload,
			})
		} else {
			plan.Entries = append(plan.Entries, Entry{
				Kind: KindAgentPolicy, Name: name,
				Action: ActionCreate,
				Method: "POST", URL: p.Fleet.BaseURL() + "/api/fleet/agent_policies",
				Payload: payload,
			})
		}
	}
	return nil
}

// desiredPolicy builds the policy payload by resolving each definition key
// to its fragment body. An unresolved reference drops just that one
// integration from the desired policy, never the whole policy.
func (p *Planner) desiredPolicy(plan *Plan, doc state.DeclarativeState, name, description string, integrations []string) map[string]any {
	if description == "" {
		description = "IaC-managed policy: " + name
	}

	packagePolicies := make([]any, 0, len(integrations))
	for _, key := range integrations {
		def, ok := doc.IntegrationDefinitions[key]
		if !ok {
			plan.Warnings.Addf("policy %q: integration definition %q not found in document, skipping", name, key)
			continue
		}
		if def.Fragment == "" {
			plan.Warnings.Addf("policy %q: definition %q has no fragment reference, skipping", name, key)
			continue
		}
		body, err := p.Dir.ReadFragmentBody(def.Fragment)
		if err != nil {
			plan.Warnings.Addf("policy %q: fragment file %q not found for definition %q, skipping", name, def.Fragment, key)
			continue
		}
		packagePolicies = append(packagePolicies, body)
	}

	return map[string]any{
		"name":             name,
		"description":      description,
		"namespace":        "default",
		"package_policies": packagePolicies,
	}
}

// fetchInventory maps existing live policy names to ids.
func (p *Planner) fetchInventory(ctx context.Context) (map[string]string, error) {
	policies, err := p.Fleet.ListAgentPolicies(ctx, false)
	if err != nil {
		return nil, err
	}
	nameToID := make(map[string]string, len(policies))
	for _, policy := range policies {
		nameToID[policy.Name] = policy.ID
	}
	return nameToID, nil
}
