package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/fleetstate/internal/fragment"
)

// Layout of a state directory. Fragment and asset files are flat JSON, one
// object per file, keyed by slug or name; the document sits at the root.
const (
	DocumentFile = "fleet_definition.yaml"
	FragmentsDir = "integration_fragments"
	TemplatesDir = "component_templates"
	PipelinesDir = "pipelines"
)

// Dir is the on-disk state directory shared by discovery (writer) and
// build (reader).
type Dir struct {
	root string
}

// NewDir wraps a state directory path. The directory need not exist yet;
// writes create it on demand.
func NewDir(root string) Dir {
	return Dir{root: root}
}

// Root returns the state directory path.
func (d Dir) Root() string {
	return d.root
}

// DocumentPath returns the path of the declarative document.
func (d Dir) DocumentPath() string {
	return filepath.Join(d.root, DocumentFile)
}

// WriteDocument serializes and writes the declarative document.
func (d Dir) WriteDocument(doc DeclarativeState) error {
	data, err := MarshalDocument(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(d.DocumentPath(), data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// ReadDocument loads and validates the declarative document.
func (d Dir) ReadDocument() (DeclarativeState, error) {
	path := d.DocumentPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return DeclarativeState{}, fmt.Errorf("read document: %w", err)
	}
	return ParseDocument(path, data)
}

// WriteFragment persists one fragment under its slug.
func (d Dir) WriteFragment(slug string, frag fragment.Fragment) error {
	data, err := json.MarshalIndent(frag, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fragment %q: %w", slug, err)
	}
	return d.writeJSON(FragmentsDir, slug, data)
}

// ReadFragmentBody loads a fragment file verbatim as a JSON object. The
// build direction embeds the body unchanged into the desired policy
// payload, so no typed round-trip is applied.
func (d Dir) ReadFragmentBody(slug string) (map[string]any, error) {
	return d.readJSONObject(FragmentsDir, slug)
}

// WriteTemplate persists one component template body verbatim.
func (d Dir) WriteTemplate(name string, body json.RawMessage) error {
	return d.writeRawJSON(TemplatesDir, name, body)
}

// ReadTemplateBody loads a component template file verbatim.
func (d Dir) ReadTemplateBody(name string) (map[string]any, error) {
	return d.readJSONObject(TemplatesDir, name)
}

// WritePipeline persists one ingest pipeline body verbatim.
func (d Dir) WritePipeline(name string, body json.RawMessage) error {
	return d.writeRawJSON(PipelinesDir, name, body)
}

// ReadPipelineBody loads an ingest pipeline file verbatim.
func (d Dir) ReadPipelineBody(name string) (map[string]any, error) {
	return d.readJSONObject(PipelinesDir, name)
}

func (d Dir) writeRawJSON(sub, name string, body json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return fmt.Errorf("indent %s/%s: %w", sub, name, err)
	}
	return d.writeJSON(sub, name, buf.Bytes())
}

func (d Dir) writeJSON(sub, name string, data []byte) error {
	dir := filepath.Join(d.root, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// readJSONObject reads one JSON object file. A missing file surfaces as an
// fs.ErrNotExist-wrapped error; callers treat that as a non-fatal
// missing-local-asset condition.
func (d Dir) readJSONObject(sub, name string) (map[string]any, error) {
	path := filepath.Join(d.root, sub, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return obj, nil
}
