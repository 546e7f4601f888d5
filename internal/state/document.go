package state

import (
	"bytes"
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fleetstate/internal/definition"
	"github.com/roach88/fleetstate/internal/signature"
)

//go:embed schema.cue
var schemaCUE string

// DocumentError reports a declarative document that failed to parse or
// does not satisfy the document schema. Always fatal: it is reported
// before any mutation is attempted.
type DocumentError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed document %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed document %s: %s", e.Path, e.Reason)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// MarshalDocument serializes the document as YAML. Top-level keys appear in
// the fixed struct order; map keys serialize sorted, matching the ordering
// invariants established by Synthesize.
func MarshalDocument(doc DeclarativeState) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseDocument parses and validates a declarative document. path is used
// only for error reporting. Validation covers YAML well-formedness, the
// presence of the three top-level keys, and the shape of every entry, via
// unification with the embedded CUE schema.
func ParseDocument(path string, data []byte) (DeclarativeState, error) {
	if err := validateSchema(path, data); err != nil {
		return DeclarativeState{}, err
	}

	var doc DeclarativeState
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return DeclarativeState{}, &DocumentError{Path: path, Reason: "invalid YAML", Err: err}
	}
	if doc.IntegrationDefinitions == nil {
		doc.IntegrationDefinitions = map[string]definition.Definition{}
	}
	if doc.AgentPolicies == nil {
		doc.AgentPolicies = map[string]signature.PolicyClass{}
	}
	return doc, nil
}

// validateSchema unifies the document with #Document from schema.cue.
func validateSchema(path string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile document schema: %w", err)
	}
	docSchema := schema.LookupPath(cue.ParsePath("#Document"))
	if err := docSchema.Err(); err != nil {
		return fmt.Errorf("lookup document schema: %w", err)
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return &DocumentError{Path: path, Reason: "invalid YAML", Err: err}
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return &DocumentError{Path: path, Reason: "invalid YAML", Err: err}
	}

	unified := docSchema.Unify(value)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return &DocumentError{Path: path, Reason: "schema violation", Err: err}
	}
	return nil
}
