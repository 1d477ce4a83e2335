// Package tag owns the RFID tag registry: the canonical SQLite table and
// the denormalized known-tags JSON mirror consumed by the reader bridge.
//
// The SQLite store is the source of truth. Every mutation commits there
// first, then synchronously rewrites the whole mirror under an advisory
// file lock. At boot an empty store is seeded from the mirror, which is
// how a fresh deployment inherits tags from an existing bridge install.
//
// EPC identifiers are normalized (longest hex run, uppercased) before any
// lookup or write, so raw reader output and hand-typed values converge on
// one canonical key. Aliases come from fixed per-group name pools and are
// unique across all tags, active or not.
package tag
