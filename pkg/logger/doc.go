// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package: JSON output in production, text
// output elsewhere, and an environment attribute on every record.
package logger
