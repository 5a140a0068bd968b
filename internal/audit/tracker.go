package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Tracker records inference runs in the warehouse so merges stay
// auditable across runs. All methods are best-effort from the pipeline's
// point of view: an audit failure never aborts a run.
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new run tracker
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// RunRecord is one row of run history.
type RunRecord struct {
	RunID      int64        `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt sql.NullTime `json:"finished_at"`
	Status     string       `json:"status"`
	Candidates int64        `json:"candidates"`
	Matched    int64        `json:"matched"`
	Duplicates int64        `json:"duplicates"`
	Staged     int64        `json:"staged"`
	Excluded   int64        `json:"excluded"`
	Updated    int64        `json:"updated"`
}

// EnsureSchema creates the run history table when absent.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	_, err := t.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS borough_inference_runs (
			run_id      BIGINT PRIMARY KEY,
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			status      TEXT NOT NULL,
			candidates  BIGINT NOT NULL DEFAULT 0,
			matched     BIGINT NOT NULL DEFAULT 0,
			duplicates  BIGINT NOT NULL DEFAULT 0,
			staged      BIGINT NOT NULL DEFAULT 0,
			excluded    BIGINT NOT NULL DEFAULT 0,
			updated     BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create run history table: %w", err)
	}
	return nil
}

// StartRun opens a run record in "running" state.
func (t *Tracker) StartRun(ctx context.Context, runID int64, startedAt time.Time) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO borough_inference_runs (run_id, started_at, status)
		VALUES ($1, $2, 'running')
	`, runID, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun closes a run record with its final status and counters.
func (t *Tracker) FinishRun(ctx context.Context, rec RunRecord) error {
	_, err := t.db.ExecContext(ctx, `
		UPDATE borough_inference_runs
		SET finished_at = $1,
		    status = $2,
		    candidates = $3,
		    matched = $4,
		    duplicates = $5,
		    staged = $6,
		    excluded = $7,
		    updated = $8
		WHERE run_id = $9
	`, time.Now().UTC(), rec.Status, rec.Candidates, rec.Matched,
		rec.Duplicates, rec.Staged, rec.Excluded, rec.Updated, rec.RunID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecentRuns returns run history, newest first.
func (t *Tracker) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, status,
		       candidates, matched, duplicates, staged, excluded, updated
		FROM borough_inference_runs
		ORDER BY run_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.RunID, &rec.StartedAt, &rec.FinishedAt, &rec.Status,
			&rec.Candidates, &rec.Matched, &rec.Duplicates,
			&rec.Staged, &rec.Excluded, &rec.Updated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
