// Package reconcile is the build engine: it computes a per-entity plan
// (create, update, upsert, skip) from a declarative document and the live
// inventory, then either executes the plan or renders it as a dry-run.
//
// Idempotency contract: create-vs-update matching is name-based, so
// re-running build against an unchanged document never creates duplicate
// policies, and update payloads are byte-stable across runs. Known
// limitation of name-based matching: renaming an agent-policy class in the
// document creates a new live policy rather than renaming the old one.
package reconcile
