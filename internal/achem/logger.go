package achem

import "github.com/daniacca/rxdyn/internal/rxn"

// Logger is the logging interface injected into environments. It is the same
// interface the reaction engine takes, so one logger serves both.
type Logger = rxn.Logger

// NoOpLogger is a logger that does nothing (useful for testing or when logging is disabled)
type NoOpLogger = rxn.NoOpLogger

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}
