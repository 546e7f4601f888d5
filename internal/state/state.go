package state

import (
	"sort"

	"github.com/roach88/fleetstate/internal/definition"
	"github.com/roach88/fleetstate/internal/signature"
)

// DeclarativeState is the full persisted document: foundational assets,
// the integration-definition catalog, and the synthesized agent-policy
// classes. Written by discovery, read by build; the schema is the sole
// contract between the two directions.
type DeclarativeState struct {
	FoundationalAssets     FoundationalAssets               `yaml:"foundational_assets"`
	IntegrationDefinitions map[string]definition.Definition `yaml:"integration_definitions"`
	AgentPolicies          map[string]signature.PolicyClass `yaml:"agent_policies"`
}

// FoundationalAssets lists the cluster-level assets applied before any
// policy work.
type FoundationalAssets struct {
	ComponentTemplates []string `yaml:"component_templates"`
	IngestPipelines    []string `yaml:"ingest_pipelines"`
}

// Synthesize assembles the discovered catalog into one document.
//
// Ordering here is a correctness requirement, not cosmetic: name lists are
// sorted and deduplicated, and maps serialize in sorted key order, so
// repeated discovery runs against an unchanged deployment produce
// byte-identical documents with no spurious version-control diffs.
func Synthesize(templates, pipelines []string, definitions map[string]definition.Definition, policies map[string]signature.PolicyClass) DeclarativeState {
	if definitions == nil {
		definitions = map[string]definition.Definition{}
	}
	if policies == nil {
		policies = map[string]signature.PolicyClass{}
	}
	return DeclarativeState{
		FoundationalAssets: FoundationalAssets{
			ComponentTemplates: sortedUnique(templates),
			IngestPipelines:    sortedUnique(pipelines),
		},
		IntegrationDefinitions: definitions,
		AgentPolicies:          policies,
	}
}

// DefinitionKeys returns the definition names in sorted order.
func (s DeclarativeState) DefinitionKeys() []string {
	keys := make([]string, 0, len(s.IntegrationDefinitions))
	for k := range s.IntegrationDefinitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PolicyNames returns the agent-policy class names in sorted order.
func (s DeclarativeState) PolicyNames() []string {
	names := make([]string, 0, len(s.AgentPolicies))
	for n := range s.AgentPolicies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
