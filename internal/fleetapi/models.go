package fleetapi

import (
	"context"
	"encoding/json"
	"net/url"
)

// AgentPolicy is a live Fleet agent policy. PackagePolicies is only
// populated when the listing is requested with full=true; each entry keeps
// the service's raw shape because most of its keys are live-only metadata
// that the canonicalizer strips.
type AgentPolicy struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Namespace       string           `json:"namespace,omitempty"`
	PackagePolicies []map[string]any `json:"package_policies,omitempty"`
}

// Agent is an enrolled agent. Only the fields needed to associate an agent
// to its policy are decoded.
type Agent struct {
	ID            string `json:"id"`
	PolicyID      string `json:"policy_id"`
	LocalMetadata struct {
		Host struct {
			Hostname string `json:"hostname"`
		} `json:"host"`
	} `json:"local_metadata"`
}

// Hostname returns the agent's reported hostname, falling back to its id
// when the host metadata is absent.
func (a Agent) Hostname() string {
	if h := a.LocalMetadata.Host.Hostname; h != "" {
		return h
	}
	return a.ID
}

// ComponentTemplate is one entry of the _component_template listing. The
// body is kept raw: it is persisted verbatim and re-applied verbatim.
type ComponentTemplate struct {
	Name string          `json:"name"`
	Body json.RawMessage `json:"component_template"`
}

// Managed reports whether the template carries the _meta.managed marker.
// Managed objects belong to the stack and are never part of discovered state.
func (t ComponentTemplate) Managed() bool {
	return managedMeta(t.Body)
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

// ListAgentPolicies fetches agent policies from the Fleet API. With full set
// the response embeds each policy's package policies. The page size bounds
// the create-vs-update decision: a policy beyond it would be re-created
// instead of updated.
func (c *Client) ListAgentPolicies(ctx context.Context, full bool) ([]AgentPolicy, error) {
	query := url.Values{"perPage": {"5000"}}
	if full {
		query.Set("full", "true")
	}
	var resp listResponse[AgentPolicy]
	if err := c.GetJSON(ctx, "/api/fleet/agent_policies", query, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListAgents fetches the enrolled agent inventory.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var resp listResponse[Agent]
	if err := c.GetJSON(ctx, "/api/fleet/agents", url.Values{"perPage": {"5000"}}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListComponentTemplates fetches all component templates from Elasticsearch.
func (c *Client) ListComponentTemplates(ctx context.Context) ([]ComponentTemplate, error) {
	var resp struct {
		ComponentTemplates []ComponentTemplate `json:"component_templates"`
	}
	if err := c.GetJSON(ctx, "/_component_template", nil, &resp); err != nil {
		return nil, err
	}
	return resp.ComponentTemplates, nil
}

// ListIngestPipelines fetches all ingest pipelines from Elasticsearch,
// keyed by pipeline name.
func (c *Client) ListIngestPipelines(ctx context.Context) (map[string]json.RawMessage, error) {
	var resp map[string]json.RawMessage
	if err := c.GetJSON(ctx, "/_ingest/pipeline", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// PipelineManaged reports whether a raw pipeline body carries the
// _meta.managed marker.
func PipelineManaged(body json.RawMessage) bool {
	return managedMeta(body)
}

func managedMeta(body json.RawMessage) bool {
	var probe struct {
		Meta struct {
			Managed bool `json:"managed"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Meta.Managed
}
