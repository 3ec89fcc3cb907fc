// Package fetch downloads the reference inputs of an action: the sequence
// artifact, the sample metadata sheet, and the taxonomy classifier.
//
// Targets are fetched in parallel. The first failure cancels the others and
// is returned; nothing is retried. Each file is written to <path>.part and
// renamed into place once complete, so a partial download never passes
// VerifyExists.
package fetch
