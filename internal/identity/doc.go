// Package identity provides content-addressed identity for discovered
// fleet objects.
//
// All other internal packages that need identity import this one; identity
// imports nothing internal. Identity is always derived from canonical JSON
// (RFC 8785), never from the serialization the service happened to return,
// so two live objects with equal content hash equal regardless of key order
// or formatting.
package identity
