package runs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordStage upserts the state of one stage within a run.
func (s *Store) RecordStage(ctx context.Context, record StageRecord) error {
	if strings.TrimSpace(record.RunID) == "" || strings.TrimSpace(record.Stage) == "" {
		return errors.New("stage record requires run id and stage")
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO stages (run_id, stage, status, error_message, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, stage) DO UPDATE SET
            status = excluded.status,
            error_message = excluded.error_message,
            finished_at = excluded.finished_at`,
		record.RunID,
		record.Stage,
		record.Status,
		nullableString(record.ErrorMessage),
		formatTime(record.StartedAt),
		nullableTime(record.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("record stage %s: %w", record.Stage, err)
	}
	return nil
}

// Stages returns the stage records of a run in execution order.
func (s *Store) Stages(ctx context.Context, runID string) ([]StageRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, status, error_message, started_at, finished_at
        FROM stages WHERE run_id = ? ORDER BY started_at ASC, rowid ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var result []StageRecord
	for rows.Next() {
		record, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// RecordOutput stores a saved output file. Saving the same name twice
// within a run replaces the earlier row.
func (s *Store) RecordOutput(ctx context.Context, output Output) error {
	if strings.TrimSpace(output.RunID) == "" || strings.TrimSpace(output.Name) == "" {
		return errors.New("output requires run id and name")
	}
	_, err := s.exec(ctx,
		`INSERT INTO outputs (run_id, stage, name, kind, path, size)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, name) DO UPDATE SET
            stage = excluded.stage,
            kind = excluded.kind,
            path = excluded.path,
            size = excluded.size`,
		output.RunID,
		nullableString(output.Stage),
		output.Name,
		output.Kind,
		output.Path,
		output.Size,
	)
	if err != nil {
		return fmt.Errorf("record output %s: %w", output.Name, err)
	}
	return nil
}

// Outputs lists the files saved by a run ordered by name.
func (s *Store) Outputs(ctx context.Context, runID string) ([]Output, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, COALESCE(stage, ''), name, kind, path, size
        FROM outputs WHERE run_id = ? ORDER BY name ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	var result []Output
	for rows.Next() {
		var output Output
		if err := rows.Scan(&output.RunID, &output.Stage, &output.Name, &output.Kind, &output.Path, &output.Size); err != nil {
			return nil, err
		}
		result = append(result, output)
	}
	return result, rows.Err()
}
