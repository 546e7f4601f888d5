package fleetapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSetsAuthHeaders(t *testing.T) {
	var gotAuth, gotXSRF string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotXSRF = r.Header.Get("kbn-xsrf")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(server.URL, "secret-key")
	_, err := client.Get(context.Background(), "/api/fleet/agents", nil)
	require.NoError(t, err)

	assert.Equal(t, "ApiKey secret-key", gotAuth)
	assert.Equal(t, "true", gotXSRF)
}

func TestClientQueryAndBody(t *testing.T) {
	var gotQuery url.Values
	var gotContentType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gotQuery = r.URL.Query()
			w.Write([]byte(`{"items":[]}`))
		case http.MethodPost:
			gotContentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	client := New(server.URL+"/", "k")

	_, err := client.Get(context.Background(), "/api/fleet/agent_policies", url.Values{"perPage": {"1000"}, "full": {"true"}})
	require.NoError(t, err)
	assert.Equal(t, "1000", gotQuery.Get("perPage"))
	assert.Equal(t, "true", gotQuery.Get("full"))

	_, err = client.Post(context.Background(), "/api/fleet/agent_policies", map[string]any{"name": "p1"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "p1", gotBody["name"])
}

func TestListAgentPoliciesQuery(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "k")

	_, err := client.ListAgentPolicies(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "5000", gotQuery.Get("perPage"))
	assert.Empty(t, gotQuery.Get("full"))

	_, err = client.ListAgentPolicies(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "5000", gotQuery.Get("perPage"))
	assert.Equal(t, "true", gotQuery.Get("full"))
}

func TestClientNon2xxIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer server.Close()

	client := New(server.URL, "k")
	_, err := client.Get(context.Background(), "/missing", nil)
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusNotFound, terr.Status)
	assert.Contains(t, terr.Body, "not found")
	assert.Equal(t, "GET", terr.Method)
}

func TestClientConnectionFailure(t *testing.T) {
	// Port 0 never accepts connections.
	client := New("http://127.0.0.1:0", "k")
	_, err := client.Get(context.Background(), "/", nil)
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Zero(t, terr.Status)
}

func TestDeriveESURL(t *testing.T) {
	assert.Equal(t, "https://es.example.com", DeriveESURL("https://kb.example.com"))
	assert.Equal(t, "http://localhost:5601", DeriveESURL("http://localhost:5601"), "no kb. marker, URL unchanged")
}

func TestAgentHostnameFallback(t *testing.T) {
	var agent Agent
	require.NoError(t, json.Unmarshal([]byte(`{"id":"agent-1","policy_id":"pol-1","local_metadata":{"host":{"hostname":"web-1"}}}`), &agent))
	assert.Equal(t, "web-1", agent.Hostname())

	var bare Agent
	require.NoError(t, json.Unmarshal([]byte(`{"id":"agent-2","policy_id":"pol-1"}`), &bare))
	assert.Equal(t, "agent-2", bare.Hostname())
}

func TestManagedDetection(t *testing.T) {
	managed := ComponentTemplate{Name: "m", Body: json.RawMessage(`{"_meta":{"managed":true}}`)}
	plain := ComponentTemplate{Name: "p", Body: json.RawMessage(`{"template":{}}`)}

	assert.True(t, managed.Managed())
	assert.False(t, plain.Managed())
	assert.True(t, PipelineManaged(json.RawMessage(`{"_meta":{"managed":true},"processors":[]}`)))
	assert.False(t, PipelineManaged(json.RawMessage(`{"processors":[]}`)))
}
