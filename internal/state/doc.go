// Package state owns the declarative document: its schema, canonical
// ordering, serialization, validation, and the state-directory file layout
// shared by the discover and build directions.
package state
