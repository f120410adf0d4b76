package memory

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry(id, text string, ts time.Time) *core.LogbookEntry {
	return &core.LogbookEntry{
		EntryID:      id,
		SourceSystem: "elog",
		Timestamp:    ts,
		Author:       "operator",
		RawText:      text,
	}
}

func TestUpsertEntry_InsertThenUpdate(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	ctx := context.Background()
	ts := time.Now().Add(-time.Hour)

	res, err := entries.UpsertEntry(ctx, testEntry("e1", "vacuum pressure spike in sector 3", ts))
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.True(t, res.ContentChanged)
	created := res.Entry.CreatedAt

	// Same content: update, content unchanged.
	res, err = entries.UpsertEntry(ctx, testEntry("e1", "vacuum pressure spike in sector 3", ts))
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.False(t, res.ContentChanged)
	assert.Equal(t, created, res.Entry.CreatedAt, "created_at is immutable")

	// New content: update with content change.
	res, err = entries.UpsertEntry(ctx, testEntry("e1", "pressure recovered after bakeout", ts))
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.True(t, res.ContentChanged)

	count, err := entries.CountEntries(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "re-ingestion of the same id is an update, not a duplicate")
}

func TestUpsertEntry_PreservesEnhancements(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	ctx := context.Background()
	ts := time.Now().Add(-time.Hour)

	_, err := entries.UpsertEntry(ctx, testEntry("e1", "initial text", ts))
	require.NoError(t, err)
	require.NoError(t, entries.MarkEnhancementComplete(ctx, "e1", "text_embedding"))

	res, err := entries.UpsertEntry(ctx, testEntry("e1", "revised text", ts))
	require.NoError(t, err)
	assert.Equal(t, core.EnhancementComplete, res.PriorEnhancements["text_embedding"].State)

	stored, err := entries.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, core.EnhancementComplete, stored.Enhancements["text_embedding"].State,
		"upsert must not wipe the enhancement map")
	assert.Equal(t, "revised text", stored.RawText, "content is replaced wholesale")
}

func TestGetEntriesByIDs_SubsetAndEmpty(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	ctx := context.Background()
	ts := time.Now().Add(-time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		_, err := entries.UpsertEntry(ctx, testEntry(id, "entry "+id, ts))
		require.NoError(t, err)
	}

	out, err := entries.GetEntriesByIDs(ctx, []string{"a", "zz", "c"})
	require.NoError(t, err)
	ids := []string{}
	for _, e := range out {
		ids = append(ids, e.EntryID)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, ids, "result is a subset of requested ids")

	out, err = entries.GetEntriesByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGetEntry_NotFound(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	_, err := entries.GetEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeywordSearch(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	ctx := context.Background()
	ts := time.Now().Add(-time.Hour)

	_, err := entries.UpsertEntry(ctx, testEntry("e1", "beam current dropped during injection", ts))
	require.NoError(t, err)
	_, err = entries.UpsertEntry(ctx, testEntry("e2", "routine maintenance of cooling water", ts))
	require.NoError(t, err)

	t.Run("anded terms", func(t *testing.T) {
		hits, err := entries.KeywordSearch(ctx, "beam injection", nil, nil, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "e1", hits[0].Entry.EntryID)
		assert.NotEmpty(t, hits[0].Highlights)
	})

	t.Run("negation", func(t *testing.T) {
		hits, err := entries.KeywordSearch(ctx, "maintenance -beam", nil, nil, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "e2", hits[0].Entry.EntryID)
	})

	t.Run("quoted phrase", func(t *testing.T) {
		hits, err := entries.KeywordSearch(ctx, `"cooling water"`, nil, nil, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "e2", hits[0].Entry.EntryID)
	})

	t.Run("or", func(t *testing.T) {
		hits, err := entries.KeywordSearch(ctx, "beam OR cooling", nil, nil, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("no match returns empty", func(t *testing.T) {
		hits, err := entries.KeywordSearch(ctx, "cryogenics", nil, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestFuzzySearch_NoMatchesIsEmptyNotError(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	ctx := context.Background()

	_, err := entries.UpsertEntry(ctx, testEntry("e1", "quadrupole magnet power supply fault", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	found, err := entries.FuzzySearch(ctx, "quadrupole magnet fault", 0.2, 10, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, found)

	none, err := entries.FuzzySearch(ctx, "zzzzzz", 0.9, 10, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchByTimeRange(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_, err := entries.UpsertEntry(ctx, testEntry(id, "entry "+id, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	start := base.Add(30 * time.Minute)
	out, err := entries.SearchByTimeRange(ctx, &start, nil, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].EntryID, "ordered by timestamp ascending")
}

func TestIncompleteEntriesAndMarks(t *testing.T) {
	entries, _, _, _ := NewRepositories()
	ctx := context.Background()
	ts := time.Now().Add(-time.Hour)

	for _, id := range []string{"a", "b"} {
		_, err := entries.UpsertEntry(ctx, testEntry(id, "entry "+id, ts))
		require.NoError(t, err)
	}

	incomplete, err := entries.GetIncompleteEntries(ctx, "text_embedding", 10)
	require.NoError(t, err)
	assert.Len(t, incomplete, 2)

	require.NoError(t, entries.MarkEnhancementComplete(ctx, "a", "text_embedding"))
	require.NoError(t, entries.MarkEnhancementFailed(ctx, "b", "text_embedding", "embedder unavailable"))

	incomplete, err = entries.GetIncompleteEntries(ctx, "text_embedding", 10)
	require.NoError(t, err)
	require.Len(t, incomplete, 1, "failed entries remain backfill targets")
	assert.Equal(t, "b", incomplete[0].EntryID)

	stored, err := entries.GetEntry(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "embedder unavailable", stored.Enhancements["text_embedding"].Error)

	assert.ErrorIs(t, entries.MarkEnhancementComplete(ctx, "missing", "text_embedding"), storage.ErrNotFound)
}

func TestRunLifecycle(t *testing.T) {
	_, runs, _, _ := NewRepositories()
	ctx := context.Background()

	last, err := runs.GetLastSuccessfulRun(ctx, "elog")
	require.NoError(t, err)
	assert.Nil(t, last, "no successful run yet")

	run, err := runs.StartIngestionRun(ctx, "elog")
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusRunning, run.Status)

	require.NoError(t, runs.CompleteIngestionRun(ctx, run.ID, 3, 1, 0))
	assert.ErrorIs(t, runs.CompleteIngestionRun(ctx, run.ID, 3, 1, 0), storage.ErrRunAlreadyClosed)

	last, err = runs.GetLastSuccessfulRun(ctx, "elog")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 3, last.EntriesAdded)

	failing, err := runs.StartIngestionRun(ctx, "elog")
	require.NoError(t, err)
	require.NoError(t, runs.FailIngestionRun(ctx, failing.ID, 0, 0, 2, "adapter unreachable"))

	// Last successful run is still the first one.
	last, err = runs.GetLastSuccessfulRun(ctx, "elog")
	require.NoError(t, err)
	assert.Equal(t, run.ID, last.ID)

	assert.ErrorIs(t, runs.CompleteIngestionRun(ctx, 9999, 0, 0, 0), storage.ErrRunNotFound)
}

func TestEmbeddings(t *testing.T) {
	entries, _, embeddings, store := NewRepositories()
	ctx := context.Background()
	ts := time.Now().Add(-time.Hour)

	err := embeddings.ValidateSearchModelTable(ctx, "test-model")
	var ce *core.ConfigurationError
	require.ErrorAs(t, err, &ce, "absent table is a configuration error")

	store.CreateEmbeddingTable("test-model", 3)
	require.NoError(t, embeddings.ValidateSearchModelTable(ctx, "test-model"))

	_, err = entries.UpsertEntry(ctx, testEntry("e1", "about beams", ts))
	require.NoError(t, err)
	_, err = entries.UpsertEntry(ctx, testEntry("e2", "about cooling", ts))
	require.NoError(t, err)

	require.NoError(t, embeddings.StoreEmbedding(ctx, "test-model", "e1", []float32{1, 0, 0}))
	require.NoError(t, embeddings.StoreEmbedding(ctx, "test-model", "e2", []float32{0, 1, 0}))

	hits, err := embeddings.SimilaritySearch(ctx, "test-model", []float32{0.9, 0.1, 0}, 0.5, 10, nil, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "e1", hits[0].Entry.EntryID)
	assert.Greater(t, hits[0].Similarity, 0.9)

	tables, err := embeddings.GetEmbeddingTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "text_embeddings_test_model", tables[0].Table)
	assert.EqualValues(t, 2, tables[0].Rows)
	assert.Equal(t, 3, tables[0].Dimension)
}
