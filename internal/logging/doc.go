// Package logging assembles structured slog loggers and formatting helpers used
// across audiotube.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so handlers and pipeline stages
// automatically tag log lines with chat IDs, run IDs, and stage names. The
// package also provides a no-op logger for tests, log retention, and a
// progress sampler for upload percentages.
package logging
