// Package fragment deduplicates raw package-policy objects into
// content-addressed fragments.
//
// A fragment retains only the fields that define an integration instance
// ({name, version, policy_template, vars}); identity is a digest over the
// canonical serialization of those fields, so the same configuration found
// under any number of live policies maps to exactly one fragment.
package fragment
