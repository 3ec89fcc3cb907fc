// Package preflight provides readiness checks run before a pipeline starts
// and by `ampliflow check`.
//
// Checks cover the qiime executable and its plugins, the state and output
// directories, and the input files an action reads. Each returns a Result
// rather than an error so the CLI can print every failure at once.
package preflight
