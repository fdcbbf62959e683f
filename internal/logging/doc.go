// Package logging assembles structured slog loggers and formatting helpers used
// across the gateway.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and provides a no-op logger for tests and wiring code that cannot
// fail. Component loggers carry a "component" attribute that the console
// handler renders as a line prefix.
package logging
