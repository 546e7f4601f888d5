package fragment

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/fleetstate/internal/identity"
)

// Fragment is the canonical, deduplicated form of one package policy: the
// four fields that define what the integration does, with every piece of
// live-only metadata (ids, revisions, timestamps, enrichment) stripped.
// Fragments are immutable once created; the build direction only reads them.
type Fragment struct {
	Name           string         `json:"name"`
	Version        string         `json:"version,omitempty"`
	PolicyTemplate string         `json:"policy_template,omitempty"`
	Vars           map[string]any `json:"vars"`
}

// Canonicalize reduces a raw package-policy object to its Fragment. Vars
// defaults to an empty mapping when the field is absent so identity is
// stable whether or not the service included it.
func Canonicalize(raw map[string]any) Fragment {
	frag := Fragment{
		Name:           stringField(raw, "name"),
		Version:        stringField(raw, "version"),
		PolicyTemplate: stringField(raw, "policy_template"),
		Vars:           map[string]any{},
	}
	if vars, ok := raw["vars"].(map[string]any); ok {
		frag.Vars = vars
	}
	return frag
}

// Digest returns the fragment's content-addressed identity: a
// domain-separated SHA-256 over its RFC 8785 canonical JSON form. Equal
// retained fields always yield an equal digest.
func (f Fragment) Digest() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal fragment %q: %w", f.Name, err)
	}
	digest, err := identity.DigestJSON(identity.DomainFragment, data)
	if err != nil {
		return "", fmt.Errorf("digest fragment %q: %w", f.Name, err)
	}
	return digest, nil
}

// StringVar returns the named var when it is a non-empty string.
func (f Fragment) StringVar(name string) (string, bool) {
	s, ok := f.Vars[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}
