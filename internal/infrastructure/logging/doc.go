// Package logging provides structured logging for nixstrav-mng.
//
// It wraps log/slog with level configuration, JSON or text output, and
// default service/version fields on every record.
package logging
