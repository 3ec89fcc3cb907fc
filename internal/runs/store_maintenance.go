package runs

import (
	"context"
	"fmt"
	"time"
)

// recoverInterrupted marks runs and stages left running by a dead process as failed.
func (s *Store) recoverInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		StatusFailed, InterruptedReason, now, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted runs: %w", err)
	}
	if _, err := s.exec(ctx,
		`UPDATE stages SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		StatusFailed, InterruptedReason, now, StatusRunning,
	); err != nil {
		return 0, fmt.Errorf("recover interrupted stages: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes finished runs that started before cutoff, together with their
// stage and output rows. Files on disk are left alone.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	statuses := []any{StatusCompleted, StatusFailed, StatusInvalid, StatusSkipped}
	args := append(statuses, formatTime(cutoff))
	res, err := s.exec(ctx,
		`DELETE FROM runs WHERE status IN (`+makePlaceholders(len(statuses))+`) AND started_at < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
