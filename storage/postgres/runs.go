package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// RunRepository implements storage.RunRepository on PostgreSQL.
type RunRepository struct {
	backend *Backend
	logger  *slog.Logger
}

// NewRunRepository creates a run repository on the given backend.
//
// Returns the storage.RunRepository interface to enforce abstraction.
func NewRunRepository(backend *Backend) (storage.RunRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &RunRepository{
		backend: backend,
		logger:  slog.Default().With("component", "run-repository"),
	}, nil
}

// StartIngestionRun opens a run with status "running".
func (r *RunRepository) StartIngestionRun(ctx context.Context, sourceSystem string) (*core.IngestionRun, error) {
	run := &core.IngestionRun{
		SourceSystem: sourceSystem,
		Status:       core.RunStatusRunning,
	}

	const q = `
		INSERT INTO ingestion_runs (source_system, status)
		VALUES ($1, 'running')
		RETURNING id, started_at`

	err := r.backend.pool.QueryRow(ctx, q, sourceSystem).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, wrapErr("StartIngestionRun", err)
	}
	return run, nil
}

// CompleteIngestionRun closes a run as success with final counters.
func (r *RunRepository) CompleteIngestionRun(ctx context.Context, runID int64, added, updated, failed int) error {
	return r.closeRun(ctx, runID, core.RunStatusSuccess, added, updated, failed, "")
}

// FailIngestionRun closes a run as failed, retaining the error message.
func (r *RunRepository) FailIngestionRun(ctx context.Context, runID int64, added, updated, failed int, message string) error {
	return r.closeRun(ctx, runID, core.RunStatusFailed, added, updated, failed, message)
}

// closeRun transitions a run out of "running" exactly once.
func (r *RunRepository) closeRun(ctx context.Context, runID int64, status core.RunStatus, added, updated, failed int, message string) error {
	const q = `
		UPDATE ingestion_runs
		SET status = $2, completed_at = now(),
			entries_added = $3, entries_updated = $4, entries_failed = $5,
			error_message = $6
		WHERE id = $1 AND status = 'running'`

	tag, err := r.backend.pool.Exec(ctx, q, runID, string(status), added, updated, failed, message)
	if err != nil {
		return wrapErr("closeRun", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the run id is unknown or the run was already closed.
		var exists bool
		if err := r.backend.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ingestion_runs WHERE id = $1)`, runID).Scan(&exists); err != nil {
			return wrapErr("closeRun", err)
		}
		if !exists {
			return storage.ErrRunNotFound
		}
		return storage.ErrRunAlreadyClosed
	}
	return nil
}

// GetLastSuccessfulRun returns the most recent successful run for the
// source, or (nil, nil) when no successful run exists.
func (r *RunRepository) GetLastSuccessfulRun(ctx context.Context, sourceSystem string) (*core.IngestionRun, error) {
	const q = `
		SELECT id, source_system, started_at, completed_at, status,
			entries_added, entries_updated, entries_failed, error_message
		FROM ingestion_runs
		WHERE source_system = $1 AND status = 'success'
		ORDER BY completed_at DESC
		LIMIT 1`

	run := &core.IngestionRun{}
	var status string
	err := r.backend.pool.QueryRow(ctx, q, sourceSystem).Scan(
		&run.ID, &run.SourceSystem, &run.StartedAt, &run.CompletedAt, &status,
		&run.EntriesAdded, &run.EntriesUpdated, &run.EntriesFailed, &run.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("GetLastSuccessfulRun", err)
	}
	run.Status = core.RunStatus(status)
	return run, nil
}

// Close is a no-op; the backend owns the pool.
func (r *RunRepository) Close() error {
	return nil
}
