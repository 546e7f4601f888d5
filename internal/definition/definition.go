// Package definition derives the named integration-definition catalog from
// deduplicated fragments.
package definition

import (
	"regexp"
	"strings"

	"github.com/roach88/fleetstate/internal/fragment"
)

// PipelineVar is the fragment var that names a runtime pipeline dependency.
const PipelineVar = "pipeline"

var trailingCounter = regexp.MustCompile(`-[0-9]+$`)

// Definition is a named, linked reference to a fragment plus its declared
// dependencies. Dependencies is omitted entirely (not empty-listed) when
// the fragment declares none, keeping the declarative document minimal.
type Definition struct {
	Fragment     string        `yaml:"fragment" json:"fragment"`
	Dependencies *Dependencies `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Dependencies lists runtime assets a definition depends on.
type Dependencies struct {
	IngestPipelines []string `yaml:"ingest_pipelines" json:"ingest_pipelines"`
}

// Key derives the readable definition key for a fragment slug: the generic
// package-name prefix and any trailing numeric disambiguator are stripped,
// e.g. "custom_logs-syslog_aci-2" -> "syslog_aci".
func Key(slug string) string {
	key := strings.TrimPrefix(slug, fragment.GenericName+"-")
	return trailingCounter.ReplaceAllString(key, "")
}

// Link builds the definition for one fragment: it resolves the readable key
// and extracts the pipeline dependency when the fragment's vars reference
// one. Fragments with no recognizable dependency link cleanly with no
// dependency block.
func Link(slug string, frag fragment.Fragment) (string, Definition) {
	def := Definition{Fragment: slug}
	if pipeline, ok := frag.StringVar(PipelineVar); ok {
		def.Dependencies = &Dependencies{IngestPipelines: []string{pipeline}}
	}
	return Key(slug), def
}
