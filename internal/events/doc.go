// Package events reads the reader bridge's event database. The bridge
// owns and writes that SQLite file; this package opens it read-only and
// serves queries for the console: listings, last-seen lookups, per-reader
// summaries and simple analytics.
//
// A missing or unreadable events database degrades to empty results. The
// console must come up even when the bridge has never run on this host.
package events
