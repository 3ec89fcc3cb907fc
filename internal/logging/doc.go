// Package logging assembles the structured slog loggers used across ampliflow.
//
// It owns the console and JSON handlers, per-stage level overrides, and the
// context helpers that tag log lines with run IDs, actions, and stage names.
// Runs tee their output into a per-run log file under the configured log
// directory so failed qiime invocations can be inspected after the fact.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same field shapes.
package logging
