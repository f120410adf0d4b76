package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter serves a fixed entry slice, optionally failing mid-stream.
type stubAdapter struct {
	entries   []*core.LogbookEntry
	streamErr error // Returned by Stream itself
	failAfter int   // Next fails after this many entries; 0 disables
	lastSince *time.Time
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) Stream(ctx context.Context, since *time.Time) (EntryStream, error) {
	a.lastSince = since
	if a.streamErr != nil {
		return nil, a.streamErr
	}
	if a.failAfter > 0 {
		return &failingStream{entries: a.entries, failAfter: a.failAfter}, nil
	}
	return &sliceStream{entries: a.entries}, nil
}

type failingStream struct {
	entries   []*core.LogbookEntry
	failAfter int
	pos       int
}

func (s *failingStream) Next(ctx context.Context) (*core.LogbookEntry, error) {
	if s.pos >= s.failAfter {
		return nil, errors.New("connection reset")
	}
	if s.pos >= len(s.entries) {
		return nil, ErrEndOfStream
	}
	entry := s.entries[s.pos]
	s.pos++
	return entry, nil
}

func (s *failingStream) Close() error { return nil }

// stubModule records which entries it processed and can be set to fail.
type stubModule struct {
	name      string
	err       error
	processed []string
}

func (m *stubModule) Name() string { return m.name }

func (m *stubModule) Process(ctx context.Context, entry *core.LogbookEntry) error {
	m.processed = append(m.processed, entry.EntryID)
	return m.err
}

// slowModule fails every entry after a short delay so that pool workers
// are still in flight while the stream loop keeps counting.
type slowModule struct {
	name  string
	delay time.Duration
}

func (m *slowModule) Name() string { return m.name }

func (m *slowModule) Process(ctx context.Context, entry *core.LogbookEntry) error {
	time.Sleep(m.delay)
	return errors.New("embedder overloaded")
}

func testEntry(id string, ts time.Time) *core.LogbookEntry {
	return &core.LogbookEntry{
		EntryID:      id,
		SourceSystem: "ops-log",
		Timestamp:    ts,
		Author:       "operator",
		RawText:      "routine maintenance on " + id,
	}
}

func testIngestionConfig() *config.IngestionConfig {
	return &config.IngestionConfig{
		Adapter:             "http",
		SourceSystem:        "ops-log",
		PollIntervalSeconds: 60,
		Watch: config.WatchConfig{
			MaxConsecutiveFailures: 5,
			BackoffMultiplier:      2,
			MaxIntervalSeconds:     300,
		},
	}
}

func newTestScheduler(t *testing.T, adapter Adapter, modules []Module, cfg *config.IngestionConfig) (*Scheduler, *memory.Store) {
	t.Helper()
	entries, runs, _, store := memory.NewRepositories()
	sched, err := NewScheduler(entries, runs, adapter, modules, cfg, WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(sched.Release)
	return sched, store
}

func lastRun(t *testing.T, sched *Scheduler) *core.IngestionRun {
	t.Helper()
	runs := sched.runs.(*memory.RunRepository).Runs()
	require.NotEmpty(t, runs)
	return runs[len(runs)-1]
}

func TestPollOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("ingests and enhances new entries", func(t *testing.T) {
		adapter := &stubAdapter{entries: []*core.LogbookEntry{
			testEntry("e1", now.Add(-2*time.Hour)),
			testEntry("e2", now.Add(-time.Hour)),
		}}
		module := &stubModule{name: "text_embedding"}
		sched, _ := newTestScheduler(t, adapter, []Module{module}, testIngestionConfig())

		result, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 2, result.EntriesSeen)
		assert.Equal(t, 2, result.EntriesAdded)
		assert.Zero(t, result.EntriesUpdated)
		assert.Zero(t, result.EntriesFailed)
		assert.ElementsMatch(t, []string{"e1", "e2"}, module.processed)

		run := lastRun(t, sched)
		assert.Equal(t, core.RunStatusSuccess, run.Status)
		assert.Equal(t, 2, run.EntriesAdded)

		stored, err := sched.entries.GetEntry(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, core.EnhancementComplete, stored.Enhancements["text_embedding"].State)
	})

	t.Run("module failure is isolated per entry and module", func(t *testing.T) {
		adapter := &stubAdapter{entries: []*core.LogbookEntry{
			testEntry("e1", now),
			testEntry("e2", now),
		}}
		failing := &stubModule{name: "text_embedding", err: errors.New("embedder down")}
		working := &stubModule{name: "semantic_processor"}
		sched, _ := newTestScheduler(t, adapter, []Module{failing, working}, testIngestionConfig())

		result, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)

		// Two entries, one failing module each: exactly two failed pairs.
		assert.Equal(t, 2, result.EntriesFailed)
		assert.Equal(t, 2, result.EntriesAdded)

		// The failing module never stopped the working one.
		assert.Len(t, working.processed, 2)

		run := lastRun(t, sched)
		assert.Equal(t, core.RunStatusSuccess, run.Status)
		assert.Equal(t, 2, run.EntriesFailed)

		stored, err := sched.entries.GetEntry(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, core.EnhancementFailed, stored.Enhancements["text_embedding"].State)
		assert.Equal(t, "embedder down", stored.Enhancements["text_embedding"].Error)
		assert.Equal(t, core.EnhancementComplete, stored.Enhancements["semantic_processor"].State)
	})

	t.Run("adapter failure mid stream fails the run", func(t *testing.T) {
		adapter := &stubAdapter{
			entries:   []*core.LogbookEntry{testEntry("e1", now), testEntry("e2", now)},
			failAfter: 1,
		}
		sched, _ := newTestScheduler(t, adapter, nil, testIngestionConfig())

		result, err := sched.PollOnce(ctx, false)
		require.Error(t, err)
		assert.Equal(t, 1, result.EntriesAdded)

		run := lastRun(t, sched)
		assert.Equal(t, core.RunStatusFailed, run.Status)
		assert.Contains(t, run.ErrorMessage, "connection reset")
		assert.Equal(t, 1, run.EntriesAdded)
	})

	t.Run("require_initial_ingest blocks first poll without a run", func(t *testing.T) {
		adapter := &stubAdapter{entries: []*core.LogbookEntry{testEntry("e1", now)}}
		cfg := testIngestionConfig()
		cfg.Watch.RequireInitialIngest = true
		sched, _ := newTestScheduler(t, adapter, nil, cfg)

		result, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)

		assert.True(t, result.Skipped)
		assert.Zero(t, result.EntriesSeen)
		assert.Zero(t, result.EntriesAdded)
		assert.Empty(t, sched.runs.(*memory.RunRepository).Runs())
	})

	t.Run("since resolves to last successful run completion", func(t *testing.T) {
		adapter := &stubAdapter{entries: []*core.LogbookEntry{testEntry("e1", now)}}
		sched, _ := newTestScheduler(t, adapter, nil, testIngestionConfig())

		_, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)
		assert.Nil(t, adapter.lastSince)

		_, err = sched.PollOnce(ctx, false)
		require.NoError(t, err)
		require.NotNil(t, adapter.lastSince)
		assert.WithinDuration(t, time.Now().UTC(), *adapter.lastSince, 5*time.Second)
	})

	t.Run("dry run writes nothing", func(t *testing.T) {
		adapter := &stubAdapter{entries: []*core.LogbookEntry{testEntry("e1", now)}}
		module := &stubModule{name: "text_embedding"}
		sched, _ := newTestScheduler(t, adapter, []Module{module}, testIngestionConfig())

		result, err := sched.PollOnce(ctx, true)
		require.NoError(t, err)

		assert.True(t, result.DryRun)
		assert.Equal(t, 1, result.EntriesSeen)
		assert.Zero(t, result.EntriesAdded)
		assert.Empty(t, module.processed)
		assert.Empty(t, sched.runs.(*memory.RunRepository).Runs())

		_, err = sched.entries.GetEntry(ctx, "e1")
		assert.Error(t, err)
	})

	t.Run("invalid entries are counted and skipped", func(t *testing.T) {
		bad := testEntry("", now)
		adapter := &stubAdapter{entries: []*core.LogbookEntry{bad, testEntry("e1", now)}}
		sched, _ := newTestScheduler(t, adapter, nil, testIngestionConfig())

		result, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 2, result.EntriesSeen)
		assert.Equal(t, 1, result.EntriesAdded)
		assert.Equal(t, 1, result.EntriesFailed)
	})

	t.Run("failure counts stay exact under concurrent enhancement", func(t *testing.T) {
		// Interleave valid and invalid entries so invalid-entry drops in
		// the stream loop overlap with module failures reported by pool
		// workers. Every failed (entry, module) pair and every dropped
		// entry must land in EntriesFailed, with nothing lost.
		var entries []*core.LogbookEntry
		for i := 0; i < 20; i++ {
			entries = append(entries,
				testEntry(fmt.Sprintf("e%d", i), now),
				testEntry("", now),
			)
		}
		adapter := &stubAdapter{entries: entries}
		module := &slowModule{name: "text_embedding", delay: time.Millisecond}

		entryRepo, runRepo, _, _ := memory.NewRepositories()
		sched, err := NewScheduler(entryRepo, runRepo, adapter, []Module{module}, testIngestionConfig(), WithPoolSize(4))
		require.NoError(t, err)
		t.Cleanup(sched.Release)

		result, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 40, result.EntriesSeen)
		assert.Equal(t, 20, result.EntriesAdded)
		assert.Equal(t, 40, result.EntriesFailed)

		run := lastRun(t, sched)
		assert.Equal(t, core.RunStatusSuccess, run.Status)
		assert.Equal(t, 40, run.EntriesFailed)
	})

	t.Run("unchanged content skips completed modules", func(t *testing.T) {
		entry := testEntry("e1", now)
		adapter := &stubAdapter{entries: []*core.LogbookEntry{entry}}
		module := &stubModule{name: "text_embedding"}
		sched, _ := newTestScheduler(t, adapter, []Module{module}, testIngestionConfig())

		_, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)
		require.Len(t, module.processed, 1)

		// Same content re-ingested: the completed module must not rerun.
		adapter.entries = []*core.LogbookEntry{testEntry("e1", now)}
		result, err := sched.PollOnce(ctx, false)
		require.NoError(t, err)

		assert.Equal(t, 1, result.EntriesUpdated)
		assert.Len(t, module.processed, 1)

		// Changed content reruns it.
		changed := testEntry("e1", now)
		changed.RawText = "replaced pump seal on e1"
		adapter.entries = []*core.LogbookEntry{changed}
		_, err = sched.PollOnce(ctx, false)
		require.NoError(t, err)
		assert.Len(t, module.processed, 2)
	})
}

func TestNextInterval(t *testing.T) {
	sched, _ := newTestScheduler(t, &stubAdapter{}, nil, testIngestionConfig())

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"no failures", 0, 60 * time.Second},
		{"one failure", 1, 120 * time.Second},
		{"two failures", 2, 240 * time.Second},
		{"three failures hits cap", 3, 300 * time.Second},
		{"ten failures stays capped", 10, 300 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sched.NextInterval(tt.failures))
		})
	}
}

func TestStartFailStop(t *testing.T) {
	cfg := testIngestionConfig()
	cfg.PollIntervalSeconds = 0 // No sleeping between polls in tests
	cfg.Watch.MaxConsecutiveFailures = 3

	adapter := &stubAdapter{streamErr: errors.New("source unreachable")}
	sched, _ := newTestScheduler(t, adapter, nil, cfg)

	err := sched.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyFailures)

	// Every failed poll left a terminal run record.
	runs := sched.runs.(*memory.RunRepository).Runs()
	require.Len(t, runs, 3)
	for _, run := range runs {
		assert.Equal(t, core.RunStatusFailed, run.Status)
	}
}

func TestStopIsCooperative(t *testing.T) {
	cfg := testIngestionConfig()
	cfg.PollIntervalSeconds = 0

	adapter := &stubAdapter{}
	sched, _ := newTestScheduler(t, adapter, nil, cfg)

	done := make(chan error, 1)
	go func() { done <- sched.Start(context.Background()) }()

	// Let at least one poll complete, then signal a cooperative stop.
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
