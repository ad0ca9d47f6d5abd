// Package logging provides a tiny abstraction over slog so the simulation
// core can depend on a minimal interface (Logger) while callers plug in any
// structured logger. A NoOpLogger keeps tests and embedded use silent by
// default; loggers are always injected, never reached through ambient state.
package logging
