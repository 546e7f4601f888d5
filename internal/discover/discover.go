// Package discover runs the discovery direction: it normalizes the live
// deployment into the deduplicated, content-addressed declarative model and
// persists it as a state directory.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/fleetstate/internal/definition"
	"github.com/roach88/fleetstate/internal/fleetapi"
	"github.com/roach88/fleetstate/internal/fragment"
	"github.com/roach88/fleetstate/internal/signature"
	"github.com/roach88/fleetstate/internal/state"
)

// Options wires the collaborators for one discovery run.
type Options struct {
	Fleet *fleetapi.Client // Kibana Fleet API
	ES    *fleetapi.Client // Elasticsearch API
	Dir   state.Dir
	Log   *slog.Logger
}

// Result summarizes what a discovery run found.
type Result struct {
	Templates   int
	Pipelines   int
	Fragments   int
	Definitions int
	Policies    int
	Agents      int
}

// Run performs a full discovery pass: dump foundational assets, deduplicate
// package policies into fragments, link definitions, group policies by
// signature, and write the synthesized document. Any transport failure is
// fatal: a partially observed deployment would synthesize a misleading
// document.
func Run(ctx context.Context, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	var res Result

	templates, err := dumpComponentTemplates(ctx, opts.ES, opts.Dir, log)
	if err != nil {
		return res, err
	}
	res.Templates = len(templates)

	pipelines, err := dumpIngestPipelines(ctx, opts.ES, opts.Dir, log)
	if err != nil {
		return res, err
	}
	res.Pipelines = len(pipelines)

	policies, err := opts.Fleet.ListAgentPolicies(ctx, true)
	if err != nil {
		return res, fmt.Errorf("fetch agent policies: %w", err)
	}
	// Stable processing order makes slug assignment reproducible for a
	// fixed deployment.
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })

	deduper := fragment.NewDeduper()
	livePolicies, err := extractFragments(policies, deduper, opts.Dir)
	if err != nil {
		return res, err
	}
	res.Fragments = deduper.Len()
	log.Info("deduplicated package policies", "policies", len(policies), "fragments", deduper.Len())

	definitions, fragmentToKey := linkDefinitions(deduper)
	res.Definitions = len(definitions)
	log.Info("linked integration definitions", "definitions", len(definitions))

	agents, err := opts.Fleet.ListAgents(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch agents: %w", err)
	}
	res.Agents = len(agents)
	refs := make([]signature.AgentRef, len(agents))
	for i, agent := range agents {
		refs[i] = signature.AgentRef{PolicyID: agent.PolicyID, Hostname: agent.Hostname()}
	}

	classes := signature.Group(livePolicies, fragmentToKey, refs)
	res.Policies = len(classes)
	log.Info("grouped agent policies", "classes", len(classes), "agents", len(agents))

	doc := state.Synthesize(templates, pipelines, definitions, classes)
	if err := opts.Dir.WriteDocument(doc); err != nil {
		return res, err
	}
	log.Info("wrote declarative document", "path", opts.Dir.DocumentPath())
	return res, nil
}

// dumpComponentTemplates saves all non-managed component templates and
// returns their names. Managed templates belong to the stack and are never
// part of discovered state.
func dumpComponentTemplates(ctx context.Context, es *fleetapi.Client, dir state.Dir, log *slog.Logger) ([]string, error) {
	templates, err := es.ListComponentTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch component templates: %w", err)
	}
	var names []string
	for _, tpl := range templates {
		if tpl.Managed() {
			continue
		}
		if err := dir.WriteTemplate(tpl.Name, tpl.Body); err != nil {
			return nil, err
		}
		names = append(names, tpl.Name)
	}
	log.Info("saved component templates", "count", len(names))
	return names, nil
}

// dumpIngestPipelines saves all non-managed ingest pipelines and returns
// their names.
func dumpIngestPipelines(ctx context.Context, es *fleetapi.Client, dir state.Dir, log *slog.Logger) ([]string, error) {
	pipelines, err := es.ListIngestPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ingest pipelines: %w", err)
	}
	var names []string
	for name, body := range pipelines {
		if fleetapi.PipelineManaged(body) {
			continue
		}
		if err := dir.WritePipeline(name, body); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	log.Info("saved ingest pipelines", "count", len(names))
	return names, nil
}

// extractFragments deduplicates every package policy into the Deduper,
// writing each newly seen fragment to disk, and returns the grouper's view
// of the live policies.
func extractFragments(policies []fleetapi.AgentPolicy, deduper *fragment.Deduper, dir state.Dir) ([]signature.LivePolicy, error) {
	live := make([]signature.LivePolicy, 0, len(policies))
	for _, policy := range policies {
		lp := signature.LivePolicy{
			ID:          policy.ID,
			Name:        policy.Name,
			Description: policy.Description,
		}
		for _, raw := range policy.PackagePolicies {
			if name, _ := raw["name"].(string); name == "" {
				continue
			}
			slug, created, err := deduper.Add(raw)
			if err != nil {
				return nil, err
			}
			if created {
				frag, _ := deduper.Fragment(slug)
				if err := dir.WriteFragment(slug, frag); err != nil {
					return nil, err
				}
			}
			lp.FragmentSlugs = append(lp.FragmentSlugs, slug)
		}
		live = append(live, lp)
	}
	return live, nil
}

// linkDefinitions builds the definition catalog from the run's fragments.
// Slugs are processed in sorted order so a key claimed by two slugs
// resolves the same way on every run.
func linkDefinitions(deduper *fragment.Deduper) (map[string]definition.Definition, map[string]string) {
	slugs := deduper.Slugs()
	sort.Strings(slugs)

	definitions := make(map[string]definition.Definition, len(slugs))
	fragmentToKey := make(map[string]string, len(slugs))
	for _, slug := range slugs {
		frag, ok := deduper.Fragment(slug)
		if !ok {
			continue
		}
		key, def := definition.Link(slug, frag)
		definitions[key] = def
		fragmentToKey[slug] = key
	}
	return definitions, fragmentToKey
}
