// Package signature groups live agent policies into equivalence classes
// keyed by their set of integration definitions.
//
// Two policies with the same definition set (order irrelevant, duplicates
// collapsed) share one signature and therefore one synthesized policy
// class, regardless of how they were named on the live service.
package signature

import (
	"sort"
	"strings"

	"github.com/roach88/fleetstate/internal/identity"
)

// LivePolicy is the grouper's view of one live agent policy: its identity,
// the metadata that seeds a class, and the fragment slugs its package
// policies deduplicated into.
type LivePolicy struct {
	ID            string
	Name          string
	Description   string
	FragmentSlugs []string
}

// AgentRef associates one enrolled agent to its origin policy. Hostname is
// expected to already carry the id fallback for agents without host
// metadata.
type AgentRef struct {
	PolicyID string
	Hostname string
}

// PolicyClass is one synthesized agent-policy class: all live policies that
// share a signature collapse into it. DiscoveredAgents is informational
// annotation only; the build direction never reads it.
type PolicyClass struct {
	Description      string   `yaml:"description" json:"description"`
	Integrations     []string `yaml:"integrations" json:"integrations"`
	DiscoveredAgents []string `yaml:"_discovered_agents,omitempty" json:"_discovered_agents,omitempty"`
}

// Signature digests a policy's definition-key list. The input is sorted and
// deduplicated first, so equal sets always produce equal signatures.
func Signature(defKeys []string) string {
	keys := sortedUnique(defKeys)
	return identity.Digest(identity.DomainPolicySignature, []byte(strings.Join(keys, " ")))
}

// Group collapses live policies into classes keyed by class name.
//
// Policies are processed in live-id order so the first-seen policy whose
// name and description seed a class is deterministic. Policies with zero
// fragments carry no reconstructable structure and are excluded. Fragment
// slugs with no linked definition fall back to the raw slug rather than
// being dropped.
func Group(policies []LivePolicy, fragmentToDefKey map[string]string, agents []AgentRef) map[string]PolicyClass {
	ordered := make([]LivePolicy, len(policies))
	copy(ordered, policies)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	type class struct {
		name        string
		description string
		keys        []string
		agents      []string
	}
	bySignature := make(map[string]*class)
	policyToSignature := make(map[string]string)

	for _, policy := range ordered {
		if len(policy.FragmentSlugs) == 0 {
			continue
		}

		keys := make([]string, 0, len(policy.FragmentSlugs))
		for _, slug := range policy.FragmentSlugs {
			if key, ok := fragmentToDefKey[slug]; ok {
				keys = append(keys, key)
			} else {
				keys = append(keys, slug)
			}
		}
		keys = sortedUnique(keys)

		sig := Signature(keys)
		policyToSignature[policy.ID] = sig
		if _, ok := bySignature[sig]; !ok {
			bySignature[sig] = &class{
				name:        policy.Name,
				description: policy.Description,
				keys:        keys,
			}
		}
	}

	for _, agent := range agents {
		sig, ok := policyToSignature[agent.PolicyID]
		if !ok {
			continue
		}
		if c, ok := bySignature[sig]; ok {
			c.agents = append(c.agents, agent.Hostname)
		}
	}

	out := make(map[string]PolicyClass, len(bySignature))
	for _, c := range bySignature {
		pc := PolicyClass{
			Description:  c.description,
			Integrations: c.keys,
		}
		if len(c.agents) > 0 {
			pc.DiscoveredAgents = sortedUnique(c.agents)
		}
		out[c.name] = pc
	}
	return out
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
