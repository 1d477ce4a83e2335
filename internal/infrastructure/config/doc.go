// Package config loads and validates the nixstrav-mng configuration.
//
// Configuration comes from a YAML file with environment variable overrides
// (NIXSTRAV_* pattern). Defaults are safe for local development except the
// session secret, which Validate refuses to leave empty.
package config
