// Package logs reads per-run log files written under log_dir.
//
// Last returns the trailing lines of a run log with bounded memory, and
// Follow streams lines appended afterwards until the run finishes or the
// context is cancelled. Both only consume complete lines, so a follower never
// splits a record that is still being written.
package logs
