// Package workflow executes a configured action's phases in order:
// installation check, reference data download, environment check, and the
// analysis pipeline.
//
// Each phase is switched by the action's toggles. A failed phase stops the
// action; later phases never run against a half-prepared environment.
package workflow
