// Package main hosts the ampliflow CLI entrypoint and command graph.
//
// Commands resolve configuration once, then hand off to the workflow runner
// for action phases, to the pipeline planner for stage inspection, and to the
// run store for history. Console logs go to stderr; tables and JSON go to
// stdout.
package main
