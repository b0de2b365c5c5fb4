package runlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pipeline names the two processing pipelines a run can execute.
const (
	PipelineGeoreference = "georeference"
	PipelineBackscatter  = "backscatter"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one processing run's registry record.
type Run struct {
	ID                string
	Pipeline          string
	VerticalReference string
	Status            string
	TotalChunks       int
	CompletedChunks   int
	SoundingCount     int
	Completeness      sql.NullFloat64
	Error             string
	StartedAt         time.Time
	FinishedAt        sql.NullTime
}

// StartRun registers a new run and returns its generated identifier.
func (db *DB) StartRun(pipeline, verticalReference string, totalChunks int) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO runs (id, pipeline, vertical_reference, status, total_chunks, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, pipeline, verticalReference, StatusRunning, totalChunks, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to register run: %w", err)
	}
	return id, nil
}

// RecordChunk bumps the completed-chunk counter and sounding tally for a
// running run. Safe to call from result collection in any order.
func (db *DB) RecordChunk(runID string, soundings int) error {
	res, err := db.Exec(`
		UPDATE runs
		SET completed_chunks = completed_chunks + 1,
		    sounding_count = sounding_count + ?
		WHERE id = ? AND status = ?`,
		soundings, runID, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to record chunk for run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s is not running", runID)
	}
	return nil
}

// CompleteRun marks the run finished with its overall completeness
// statistic (fraction of beam slots carrying a resolved value).
func (db *DB) CompleteRun(runID string, completeness float64) error {
	return db.finishRun(runID, StatusCompleted, completeness, "")
}

// FailRun marks the run failed with the terminal error text.
func (db *DB) FailRun(runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return db.finishRun(runID, StatusFailed, 0, msg)
}

func (db *DB) finishRun(runID, status string, completeness float64, errText string) error {
	var comp sql.NullFloat64
	if status == StatusCompleted {
		comp = sql.NullFloat64{Float64: completeness, Valid: true}
	}
	res, err := db.Exec(`
		UPDATE runs
		SET status = ?, completeness = ?, error = ?, finished_at = ?
		WHERE id = ? AND status = ?`,
		status, comp, errText, time.Now().UTC(), runID, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s is not running", runID)
	}
	return nil
}

// GetRun fetches one run by identifier.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, pipeline, vertical_reference, status, total_chunks,
		       completed_chunks, sounding_count, completeness, error,
		       started_at, finished_at
		FROM runs WHERE id = ?`, runID)
	var r Run
	err := row.Scan(&r.ID, &r.Pipeline, &r.VerticalReference, &r.Status,
		&r.TotalChunks, &r.CompletedChunks, &r.SoundingCount,
		&r.Completeness, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run %s: %w", runID, err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, pipeline, vertical_reference, status, total_chunks,
		       completed_chunks, sounding_count, completeness, error,
		       started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Pipeline, &r.VerticalReference, &r.Status,
			&r.TotalChunks, &r.CompletedChunks, &r.SoundingCount,
			&r.Completeness, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
