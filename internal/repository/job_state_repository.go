package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"GranStocks/internal/domain/models"
	domrepo "GranStocks/internal/domain/repository"
	"GranStocks/pkg/database"
)

// SQLJobStates stores screener progress in job_states.
type SQLJobStates struct {
	db *database.Client
}

var _ domrepo.JobStates = (*SQLJobStates)(nil)

// NewSQLJobStates creates the repository.
func NewSQLJobStates(db *database.Client) *SQLJobStates {
	return &SQLJobStates{db: db}
}

// TryStart is a single conditional upsert so two concurrent starts cannot
// both win. The update branch only fires when the current row is not RUNNING
// or its last heartbeat is older than staleBefore.
func (r *SQLJobStates) TryStart(ctx context.Context, st *models.JobState, staleBefore time.Time) error {
	const q = `
		INSERT INTO job_states (universe_type, universe_name, status, run_id, cursor_index, total, last_error, started_at, finished_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, '', ?, NULL, ?)
		ON CONFLICT (universe_type, universe_name) DO UPDATE SET
			status = excluded.status,
			run_id = excluded.run_id,
			cursor_index = 0,
			total = excluded.total,
			last_error = '',
			started_at = excluded.started_at,
			finished_at = NULL,
			updated_at = excluded.updated_at
		WHERE job_states.status <> ? OR job_states.updated_at < ?`
	res, err := r.db.ExecContext(ctx, q,
		st.UniverseType, st.UniverseName, string(models.JobRunning), st.RunID, st.Total,
		st.StartedAt.Unix(), st.UpdatedAt.Unix(),
		string(models.JobRunning), staleBefore.Unix(),
	)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("start job rows: %w", err)
	}
	if n == 0 {
		return models.ErrJobRunning
	}
	st.Status = models.JobRunning
	st.CursorIndex = 0
	st.LastError = ""
	st.FinishedAt = nil
	return nil
}

func (r *SQLJobStates) SaveCursor(ctx context.Context, universeType, universeName, runID string, cursor int) error {
	const q = `
		UPDATE job_states SET cursor_index = ?, updated_at = ?
		WHERE universe_type = ? AND universe_name = ? AND run_id = ? AND status = ?`
	_, err := r.db.ExecContext(ctx, q, cursor, time.Now().Unix(), universeType, universeName, runID, string(models.JobRunning))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func (r *SQLJobStates) Finish(ctx context.Context, st *models.JobState) error {
	const q = `
		UPDATE job_states SET status = ?, cursor_index = ?, last_error = ?, finished_at = ?, updated_at = ?
		WHERE universe_type = ? AND universe_name = ? AND run_id = ?`
	var finished any
	if st.FinishedAt != nil {
		finished = st.FinishedAt.Unix()
	}
	_, err := r.db.ExecContext(ctx, q,
		string(st.Status), st.CursorIndex, st.LastError, finished, st.UpdatedAt.Unix(),
		st.UniverseType, st.UniverseName, st.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

func (r *SQLJobStates) Get(ctx context.Context, universeType, universeName string) (*models.JobState, error) {
	const q = `
		SELECT status, run_id, cursor_index, total, last_error, started_at, finished_at, updated_at
		FROM job_states WHERE universe_type = ? AND universe_name = ?`
	var (
		st               = models.JobState{UniverseType: universeType, UniverseName: universeName}
		status           string
		started, updated int64
		finished         sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, universeType, universeName).Scan(
		&status, &st.RunID, &st.CursorIndex, &st.Total, &st.LastError, &started, &finished, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job state: %w", err)
	}
	st.Status = models.JobStatus(status)
	st.StartedAt = time.Unix(started, 0).UTC()
	st.UpdatedAt = time.Unix(updated, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		st.FinishedAt = &t
	}
	return &st, nil
}
