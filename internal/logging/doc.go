// Package logging assembles structured slog loggers and formatting helpers used
// across synthfilter.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so bridge and delivery code tag
// log lines with session IDs, operations, and correlation IDs. Console and
// file sinks are written through one mutex per handler, so lines from
// concurrent workers never interleave. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
