// Package logger builds the *slog.Logger used across the module: plain text
// by default, JSON for services, or a colorized charmbracelet/log handler
// for interactive CLI output.
package logger
