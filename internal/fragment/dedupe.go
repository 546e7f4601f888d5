package fragment

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// GenericName is the integration whose instances fan out: many distinct
// fragments share this package name, so slugs for it are augmented with the
// distinguishing vars.id field.
const GenericName = "custom_logs"

// Deduper assigns each unique fragment content a stable slug. All state
// (seen digests, name counters) is owned by the instance, so a single
// discovery run is reproducible and testable in isolation.
//
// Slug text depends on encounter order when two distinct fragments contend
// for the same base name; callers sort their input (discovery sorts
// policies by live id) to make slugs deterministic for a fixed deployment.
// Fragment identity is content-deterministic regardless.
type Deduper struct {
	seen      map[string]string // digest -> slug
	counters  map[string]int    // base slug -> occurrences
	fragments map[string]Fragment
	order     []string // slugs in assignment order
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{
		seen:      make(map[string]string),
		counters:  make(map[string]int),
		fragments: make(map[string]Fragment),
	}
}

// Add canonicalizes a raw package-policy object and returns the slug of its
// fragment. The first time a content digest is seen the fragment is
// recorded under a freshly assigned slug and created is true; duplicates
// return the existing slug.
func (d *Deduper) Add(raw map[string]any) (slug string, created bool, err error) {
	frag := Canonicalize(raw)
	digest, err := frag.Digest()
	if err != nil {
		return "", false, err
	}

	if existing, ok := d.seen[digest]; ok {
		return existing, false, nil
	}

	slug = d.assignSlug(frag)
	d.seen[digest] = slug
	d.fragments[slug] = frag
	d.order = append(d.order, slug)
	return slug, true, nil
}

// Fragment returns the fragment recorded under slug.
func (d *Deduper) Fragment(slug string) (Fragment, bool) {
	frag, ok := d.fragments[slug]
	return frag, ok
}

// Slugs returns all assigned slugs in assignment order.
func (d *Deduper) Slugs() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of unique fragments seen.
func (d *Deduper) Len() int {
	return len(d.fragments)
}

// assignSlug derives a human-readable slug for a new fragment. Base slug is
// the fragment's name; fan-out integrations get a suffix from their
// distinguishing id var; further collisions append an incrementing counter.
func (d *Deduper) assignSlug(frag Fragment) string {
	base := norm.NFC.String(frag.Name)
	if base == GenericName {
		if id, ok := frag.StringVar("id"); ok {
			base = base + "-" + strings.ReplaceAll(norm.NFC.String(id), ".", "_")
		}
	}

	d.counters[base]++
	if n := d.counters[base]; n > 1 {
		return base + "-" + strconv.Itoa(n)
	}
	return base
}
