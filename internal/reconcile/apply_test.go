package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fleetstate/internal/fleetapi"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// statefulDeployment accepts mutations and remembers created policies, so a
// second plan against it resolves them by name.
type statefulDeployment struct {
	policies map[string]string // name -> id
	requests []recordedRequest
	nextID   int
}

func newStatefulDeployment(t *testing.T) (*statefulDeployment, *httptest.Server) {
	t.Helper()
	d := &statefulDeployment{policies: map[string]string{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		d.requests = append(d.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/fleet/agent_policies":
			items := make([]map[string]any, 0, len(d.policies))
			for name, id := range d.policies {
				items = append(items, map[string]any{"id": id, "name": name})
			}
			json.NewEncoder(w).Encode(map[string]any{"items": items})
		case r.Method == http.MethodPost && r.URL.Path == "/api/fleet/agent_policies":
			var payload struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.Unmarshal(body, &payload))
			d.nextID++
			d.policies[payload.Name] = fmt.Sprintf("pol-%d", d.nextID)
			w.Write([]byte(`{}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(server.Close)
	return d, server
}

func (d *statefulDeployment) count(method, path string) int {
	n := 0
	for _, r := range d.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func TestExecuteAppliesPlan(t *testing.T) {
	dir, doc := testStateDir(t)
	deployment, server := newStatefulDeployment(t)
	planner := newPlanner(t, server, dir)

	plan, err := planner.Plan(context.Background(), doc, Apply)
	require.NoError(t, err)
	outcomes, err := planner.Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 1, deployment.count("PUT", "/_component_template/tpl-a"))
	assert.Equal(t, 1, deployment.count("PUT", "/_ingest/pipeline/aci-pipeline"))
	assert.Equal(t, 1, deployment.count("POST", "/api/fleet/agent_policies"))

	statuses := map[string]int{}
	for _, o := range outcomes {
		statuses[o.Status]++
	}
	assert.Equal(t, 3, statuses["applied"])
	assert.Equal(t, 1, statuses["skipped"], "missing template entry passes through untouched")
}

// Two consecutive builds against the same document must converge: the
// second run resolves the policy created by the first and updates it in
// place with an identical payload instead of creating a duplicate.
func TestExecuteIdempotentAcrossRuns(t *testing.T) {
	dir, doc := testStateDir(t)
	deployment, server := newStatefulDeployment(t)
	planner := newPlanner(t, server, dir)

	plan1, err := planner.Plan(context.Background(), doc, Apply)
	require.NoError(t, err)
	_, err = planner.Execute(context.Background(), plan1)
	require.NoError(t, err)

	plan2, err := planner.Plan(context.Background(), doc, Apply)
	require.NoError(t, err)
	entry := entryFor(t, plan2, KindAgentPolicy, "Linux Hosts")
	assert.Equal(t, ActionUpdate, entry.Action)
	assert.Equal(t, "pol-1", entry.LiveID)

	_, err = planner.Execute(context.Background(), plan2)
	require.NoError(t, err)

	assert.Equal(t, 1, deployment.count("POST", "/api/fleet/agent_policies"),
		"the policy is created exactly once")
	assert.Equal(t, 1, deployment.count("PUT", "/api/fleet/agent_policies/pol-1"))

	var created, updated map[string]any
	for _, r := range deployment.requests {
		if r.Method == http.MethodPost && r.Path == "/api/fleet/agent_policies" {
			require.NoError(t, json.Unmarshal(r.Body, &created))
		}
		if r.Method == http.MethodPut && r.Path == "/api/fleet/agent_policies/pol-1" {
			require.NoError(t, json.Unmarshal(r.Body, &updated))
		}
	}
	assert.Equal(t, created, updated, "create and update carry the same desired payload")
}

func TestExecuteAbortsOnFirstFailure(t *testing.T) {
	dir, doc := testStateDir(t)
	mutations := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
			return
		}
		mutations++
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	planner := newPlanner(t, server, dir)

	plan, err := planner.Plan(context.Background(), doc, Apply)
	require.NoError(t, err)
	outcomes, execErr := planner.Execute(context.Background(), plan)

	require.Error(t, execErr)
	var transportErr *fleetapi.TransportError
	assert.ErrorAs(t, execErr, &transportErr)
	assert.Equal(t, 1, mutations, "run stops at the first failed mutation")
	require.Len(t, outcomes, 1, "only the skip entry precedes the failure")
	assert.Equal(t, "skipped", outcomes[0].Status)
}

func TestPlannedOutcomes(t *testing.T) {
	plan := renderFixture()
	outcomes := PlannedOutcomes(plan)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "planned", outcomes[0].Status)
	assert.Equal(t, "skipped", outcomes[1].Status)
	assert.Equal(t, "planned", outcomes[2].Status)
}
