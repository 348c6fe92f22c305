// Package logging wires log/slog with the console and JSON handlers used by
// the capture agent, plus the shared attribute helpers and field names.
package logging
