// Package staging manages the per-run work directories a pipeline writes
// intermediate results into before they are saved to the output directory.
package staging
