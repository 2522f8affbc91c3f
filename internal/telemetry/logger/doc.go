// Package logger provides structured logging for the data layer.
//
// It wraps log/slog:
//
//   - logger.go: handler configuration, levels and the Logger interface
//   - context.go: context-carried loggers and session attributes
//   - redact.go: masking of advertising identifiers and credentials
//
// Storage packages take a plain *slog.Logger; use NewSlog or
// Logger.Slog to obtain one with the same handler.
package logger
