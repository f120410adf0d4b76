package memory

import (
	"context"
	"time"

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// RunRepository is the in-memory storage.RunRepository.
type RunRepository struct {
	store *Store
}

var _ storage.RunRepository = (*RunRepository)(nil)

func (r *RunRepository) StartIngestionRun(_ context.Context, sourceSystem string) (*core.IngestionRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextRunID++
	run := &core.IngestionRun{
		ID:           r.store.nextRunID,
		SourceSystem: sourceSystem,
		StartedAt:    time.Now().UTC(),
		Status:       core.RunStatusRunning,
	}
	r.store.runs[run.ID] = run

	out := *run
	return &out, nil
}

func (r *RunRepository) CompleteIngestionRun(_ context.Context, runID int64, added, updated, failed int) error {
	return r.closeRun(runID, core.RunStatusSuccess, added, updated, failed, "")
}

func (r *RunRepository) FailIngestionRun(_ context.Context, runID int64, added, updated, failed int, message string) error {
	return r.closeRun(runID, core.RunStatusFailed, added, updated, failed, message)
}

func (r *RunRepository) closeRun(runID int64, status core.RunStatus, added, updated, failed int, message string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	run, ok := r.store.runs[runID]
	if !ok {
		return storage.ErrRunNotFound
	}
	if run.Status != core.RunStatusRunning {
		return storage.ErrRunAlreadyClosed
	}

	run.Status = status
	run.CompletedAt = time.Now().UTC()
	run.EntriesAdded = added
	run.EntriesUpdated = updated
	run.EntriesFailed = failed
	run.ErrorMessage = message
	return nil
}

func (r *RunRepository) GetLastSuccessfulRun(_ context.Context, sourceSystem string) (*core.IngestionRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var last *core.IngestionRun
	for _, run := range r.store.runs {
		if run.SourceSystem != sourceSystem || run.Status != core.RunStatusSuccess {
			continue
		}
		if last == nil || run.CompletedAt.After(last.CompletedAt) {
			last = run
		}
	}
	if last == nil {
		return nil, nil
	}
	out := *last
	return &out, nil
}

// Runs returns every recorded run, for test assertions.
func (r *RunRepository) Runs() []*core.IngestionRun {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*core.IngestionRun, 0, len(r.store.runs))
	for _, run := range r.store.runs {
		copied := *run
		out = append(out, &copied)
	}
	return out
}

func (r *RunRepository) Close() error { return nil }
