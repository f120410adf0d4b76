// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// PollResult summarizes one poll of a source system.
type PollResult struct {
	RunID          int64
	EntriesSeen    int
	EntriesAdded   int
	EntriesUpdated int

	// EntriesFailed counts failed (entry, module) pairs, not whole
	// entries: one entry failing two modules counts twice.
	EntriesFailed int

	// Skipped is true when require_initial_ingest blocked the poll
	// because no successful run exists yet. No run record is created.
	Skipped bool

	DryRun bool
}

// Scheduler drives entries from an adapter into storage on a poll timer,
// applying enhancement modules to each entry as it lands.
type Scheduler struct {
	entries      storage.EntryRepository
	runs         storage.RunRepository
	adapter      Adapter
	modules      []Module
	sourceSystem string

	baseInterval time.Duration
	watch        config.WatchConfig

	pool    *ants.Pool
	running atomic.Bool
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithPoolSize sets the worker pool size for concurrent enhancement.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Scheduler) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewScheduler creates a scheduler for one source system. The modules
// run against each entry in the given order.
func NewScheduler(
	entries storage.EntryRepository,
	runs storage.RunRepository,
	adapter Adapter,
	modules []Module,
	cfg *config.IngestionConfig,
	opts ...Option,
) (*Scheduler, error) {
	if entries == nil {
		return nil, ErrEntryRepositoryRequired
	}
	if runs == nil {
		return nil, ErrRunRepositoryRequired
	}
	if adapter == nil {
		return nil, ErrAdapterRequired
	}
	if cfg == nil {
		return nil, &core.ConfigurationError{Reason: "ingestion config required"}
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		entries:      entries,
		runs:         runs,
		adapter:      adapter,
		modules:      modules,
		sourceSystem: cfg.SourceSystem,
		baseInterval: cfg.PollInterval(),
		watch:        cfg.Watch,
		pool:         pool,
		logger:       slog.Default().With("component", "scheduler", "source", cfg.SourceSystem),
	}

	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}

	return s, nil
}

// PollOnce performs a single poll of the source system.
//
// In dry-run mode nothing is written: no run record is opened, entries
// are streamed and counted but not upserted, and no enhancement module
// runs. A hard adapter failure closes the run as failed and is returned
// to the caller; enhancement failures are counted and absorbed.
func (s *Scheduler) PollOnce(ctx context.Context, dryRun bool) (*PollResult, error) {
	result := &PollResult{DryRun: dryRun}

	last, err := s.runs.GetLastSuccessfulRun(ctx, s.sourceSystem)
	if err != nil {
		return nil, err
	}

	var since *time.Time
	if last != nil {
		completed := last.CompletedAt
		since = &completed
	}

	if since == nil && s.watch.RequireInitialIngest {
		s.logger.Info("no successful run yet and initial ingest is gated, skipping poll")
		result.Skipped = true
		return result, nil
	}

	var run *core.IngestionRun
	if !dryRun {
		run, err = s.runs.StartIngestionRun(ctx, s.sourceSystem)
		if err != nil {
			return nil, err
		}
		result.RunID = run.ID
	}

	stream, err := s.adapter.Stream(ctx, since)
	if err != nil {
		s.closeFailed(ctx, run, result, err)
		return result, err
	}
	defer stream.Close()

	// Module failures are accumulated by pool workers under mu and folded
	// into the result only after the workers have drained; the main loop
	// owns every other counter.
	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		moduleFailures int
	)
	collect := func() {
		wg.Wait()
		mu.Lock()
		result.EntriesFailed += moduleFailures
		moduleFailures = 0
		mu.Unlock()
	}

	for {
		entry, nextErr := stream.Next(ctx)
		if errors.Is(nextErr, ErrEndOfStream) {
			break
		}
		if nextErr != nil {
			collect()
			s.closeFailed(ctx, run, result, nextErr)
			return result, nextErr
		}

		result.EntriesSeen++

		if validErr := core.ValidateEntry(entry); validErr != nil {
			s.logger.Warn("dropping invalid entry", "entry", entry.EntryID, "err", validErr)
			result.EntriesFailed++
			continue
		}

		if dryRun {
			continue
		}

		upserted, upErr := s.entries.UpsertEntry(ctx, entry)
		if upErr != nil {
			collect()
			s.closeFailed(ctx, run, result, upErr)
			return result, upErr
		}

		if upserted.Inserted {
			result.EntriesAdded++
		} else {
			result.EntriesUpdated++
		}

		wg.Add(1)
		stored := upserted
		if submitErr := s.pool.Submit(func() {
			defer wg.Done()
			failed := s.enhance(ctx, stored)
			if failed > 0 {
				mu.Lock()
				moduleFailures += failed
				mu.Unlock()
			}
		}); submitErr != nil {
			wg.Done()
			collect()
			s.closeFailed(ctx, run, result, submitErr)
			return result, submitErr
		}
	}

	collect()

	if !dryRun {
		if closeErr := s.runs.CompleteIngestionRun(ctx, run.ID, result.EntriesAdded, result.EntriesUpdated, result.EntriesFailed); closeErr != nil {
			return result, closeErr
		}
	}

	s.logger.Info("poll complete",
		"seen", result.EntriesSeen,
		"added", result.EntriesAdded,
		"updated", result.EntriesUpdated,
		"failed", result.EntriesFailed,
		"dry_run", dryRun)
	return result, nil
}

// enhance runs every module against one entry, in order, each in its own
// isolation scope. Returns the number of failed (entry, module) pairs.
// Modules already complete for unchanged content are skipped.
func (s *Scheduler) enhance(ctx context.Context, upserted *storage.UpsertResult) int {
	entry := upserted.Entry
	failed := 0

	for _, module := range s.modules {
		if !upserted.ContentChanged {
			if prior, ok := upserted.PriorEnhancements[module.Name()]; ok && prior.State == core.EnhancementComplete {
				s.logger.Debug("content unchanged, skipping module", "entry", entry.EntryID, "module", module.Name())
				continue
			}
		}

		if err := module.Process(ctx, entry); err != nil {
			s.logger.Error("enhancement module failed", "entry", entry.EntryID, "module", module.Name(), "err", err)
			failed++
			if markErr := s.entries.MarkEnhancementFailed(ctx, entry.EntryID, module.Name(), err.Error()); markErr != nil {
				s.logger.Error("failed to record enhancement failure", "entry", entry.EntryID, "module", module.Name(), "err", markErr)
			}
			continue
		}

		if markErr := s.entries.MarkEnhancementComplete(ctx, entry.EntryID, module.Name()); markErr != nil {
			s.logger.Error("failed to record enhancement completion", "entry", entry.EntryID, "module", module.Name(), "err", markErr)
		}
	}

	return failed
}

// closeFailed closes the run as failed, retaining counters and the error
// message. A nil run (dry-run) is a no-op.
func (s *Scheduler) closeFailed(ctx context.Context, run *core.IngestionRun, result *PollResult, cause error) {
	if run == nil {
		return
	}
	if err := s.runs.FailIngestionRun(ctx, run.ID, result.EntriesAdded, result.EntriesUpdated, result.EntriesFailed, cause.Error()); err != nil {
		s.logger.Error("failed to close run as failed", "run", run.ID, "err", err)
	}
}

// NextInterval computes the sleep before the next poll after the given
// number of consecutive failures: baseInterval * multiplier^failures,
// capped at the configured maximum. Zero failures yields the base
// interval.
func (s *Scheduler) NextInterval(consecutiveFailures int) time.Duration {
	interval := s.baseInterval
	if consecutiveFailures > 0 {
		scaled := float64(s.baseInterval) * math.Pow(s.watch.BackoffMultiplier, float64(consecutiveFailures))
		interval = time.Duration(scaled)
	}
	if max := s.watch.MaxInterval(); max > 0 && interval > max {
		interval = max
	}
	return interval
}

// Start runs the poll loop until Stop is called, the context is
// cancelled, or consecutive failures reach the configured limit
// (fail-stop). Stop is cooperative: an in-flight poll always finishes.
func (s *Scheduler) Start(ctx context.Context) error {
	s.running.Store(true)
	consecutiveFailures := 0

	for s.running.Load() {
		if _, err := s.PollOnce(ctx, false); err != nil {
			consecutiveFailures++
			s.logger.Error("poll failed", "consecutive_failures", consecutiveFailures, "err", err)
			if consecutiveFailures >= s.watch.MaxConsecutiveFailures {
				return fmt.Errorf("%w: %d", ErrTooManyFailures, consecutiveFailures)
			}
		} else {
			consecutiveFailures = 0
		}

		interval := s.NextInterval(consecutiveFailures)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil
}

// Stop signals the poll loop to exit after the current poll completes.
func (s *Scheduler) Stop() {
	s.running.Store(false)
}

// Release releases the worker pool. The scheduler should not be used
// after calling Release.
func (s *Scheduler) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}
