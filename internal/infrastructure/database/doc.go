// Package database manages the SQLite connections for nixstrav-mng.
//
// It opens the management database (users, tags, audit log, reader
// registry) with WAL mode and a single-writer pool, opens the external
// events database read-only, and applies embedded schema migrations
// tracked in a schema_migrations table.
package database
