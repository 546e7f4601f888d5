package state

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fleetstate/internal/fragment"
)

func TestFragmentRoundTrip(t *testing.T) {
	dir := NewDir(t.TempDir())

	frag := fragment.Canonicalize(map[string]any{
		"name": "custom_logs",
		"vars": map[string]any{"id": "syslog.aci", "pipeline": "aci-pipeline"},
	})
	require.NoError(t, dir.WriteFragment("custom_logs-syslog_aci", frag))

	body, err := dir.ReadFragmentBody("custom_logs-syslog_aci")
	require.NoError(t, err)
	assert.Equal(t, "custom_logs", body["name"])
	assert.Equal(t, map[string]any{"id": "syslog.aci", "pipeline": "aci-pipeline"}, body["vars"])
}

func TestReadMissingFileIsNotExist(t *testing.T) {
	dir := NewDir(t.TempDir())

	_, err := dir.ReadFragmentBody("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist, "missing local assets must be detectable")

	_, err = dir.ReadTemplateBody("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = dir.ReadPipelineBody("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTemplateWrittenVerbatimIndented(t *testing.T) {
	root := t.TempDir()
	dir := NewDir(root)

	body := json.RawMessage(`{"template":{"settings":{"number_of_shards":1}}}`)
	require.NoError(t, dir.WriteTemplate("tpl-a", body))

	written, err := os.ReadFile(filepath.Join(root, TemplatesDir, "tpl-a.json"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "\"number_of_shards\": 1")

	parsed, err := dir.ReadTemplateBody("tpl-a")
	require.NoError(t, err)
	assert.Contains(t, parsed, "template")
}

func TestDocumentFileRoundTrip(t *testing.T) {
	dir := NewDir(filepath.Join(t.TempDir(), "state"))

	doc := testDocument()
	require.NoError(t, dir.WriteDocument(doc))

	loaded, err := dir.ReadDocument()
	require.NoError(t, err)
	assert.Equal(t, doc.FoundationalAssets, loaded.FoundationalAssets)
	assert.Equal(t, doc.AgentPolicies, loaded.AgentPolicies)
}

func TestReadDocumentMissing(t *testing.T) {
	dir := NewDir(t.TempDir())

	_, err := dir.ReadDocument()
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
