// Package notifications delivers run events via ntfy.
//
// NewService publishes to the configured ntfy topic and degrades to a no-op
// when no topic is set. The notifications.run_started, run_completed, and
// errors toggles filter events before any HTTP request is made.
package notifications
