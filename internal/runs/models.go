package runs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a run or one of its stages.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusInvalid   Status = "invalid"
	StatusSkipped   Status = "skipped"
)

// InterruptedReason is recorded on runs found running when the store opens.
const InterruptedReason = "Run interrupted before completion"

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusInvalid,
	StatusSkipped,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusInvalid, StatusSkipped:
		return true
	default:
		return false
	}
}

// Run is one invocation of a configured action.
type Run struct {
	ID           string
	Action       string
	Status       Status
	OutputDir    string
	ConfigPath   string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Duration returns the elapsed run time, measured to now while running.
func (r *Run) Duration() time.Duration {
	if r == nil || r.StartedAt.IsZero() {
		return 0
	}
	end := time.Now().UTC()
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(r.StartedAt)
}

// SetFailed marks the run as failed with the provided message.
func (r *Run) SetFailed(status Status, message string) {
	if status == "" {
		status = StatusFailed
	}
	now := time.Now().UTC()
	r.Status = status
	r.ErrorMessage = strings.TrimSpace(message)
	r.FinishedAt = &now
}

// SetCompleted marks the run as completed.
func (r *Run) SetCompleted() {
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.ErrorMessage = ""
	r.FinishedAt = &now
}

// StageRecord captures one stage execution within a run.
type StageRecord struct {
	RunID        string
	Stage        string
	Status       Status
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Output is a file saved by a run.
type Output struct {
	RunID string
	Stage string
	Name  string
	Kind  string
	Path  string
	Size  int64
}

// Summary aggregates run counts per status.
type Summary struct {
	Total     int
	Running   int
	Completed int
	Failed    int
	Invalid   int
}
