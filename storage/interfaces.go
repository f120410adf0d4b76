package storage

import (
	"context"
	"time"

	"github.com/poiesic/ariel/core"
)

// UpsertResult reports what an upsert did, so callers can keep accurate
// run counters and skip re-enhancement of unchanged entries.
type UpsertResult struct {
	// Entry is the stored entry with CreatedAt/UpdatedAt populated.
	Entry *core.LogbookEntry

	// Inserted is true when the entry did not previously exist.
	Inserted bool

	// ContentChanged is true for inserts and for updates whose RawText
	// content hash differs from the stored one.
	ContentChanged bool

	// PriorEnhancements holds the enhancement statuses as they were
	// before the upsert. Empty for inserts.
	PriorEnhancements map[string]core.EnhancementStatus
}

// EntryRepository provides operations for managing logbook entries.
type EntryRepository interface {
	// UpsertEntry creates or overwrites an entry keyed by EntryID.
	// Content fields are replaced wholesale; the stored enhancement
	// statuses are preserved and only ever merged key-by-key via the
	// MarkEnhancement methods. CreatedAt is immutable, UpdatedAt is
	// bumped on every call.
	UpsertEntry(ctx context.Context, entry *core.LogbookEntry) (*UpsertResult, error)

	// GetEntry retrieves a single entry by its EntryID.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, entryID string) (*core.LogbookEntry, error)

	// GetEntriesByIDs retrieves multiple entries by their EntryIDs.
	// An empty input returns an empty result without issuing a query.
	// Missing ids are skipped, not errors.
	GetEntriesByIDs(ctx context.Context, entryIDs []string) ([]*core.LogbookEntry, error)

	// CountEntries returns the total number of stored entries.
	CountEntries(ctx context.Context) (int64, error)

	// SearchByTimeRange retrieves entries within an optional time window,
	// ordered by timestamp ascending, capped at limit. A nil bound is open.
	SearchByTimeRange(ctx context.Context, start, end *time.Time, limit int) ([]*core.LogbookEntry, error)

	// FuzzySearch finds entries whose text approximately matches the given
	// text using trigram similarity. Returns an empty list, not an error,
	// when nothing clears the threshold.
	FuzzySearch(ctx context.Context, text string, threshold float64, maxResults int, start, end *time.Time) ([]*core.LogbookEntry, error)

	// KeywordSearch runs a boolean/phrase full-text query (AND/OR/NOT,
	// quoted phrases) and returns relevance-ranked hits with highlighted
	// snippets, filtered by the optional time window, capped at limit.
	KeywordSearch(ctx context.Context, query string, start, end *time.Time, limit int) ([]*core.KeywordHit, error)

	// GetIncompleteEntries lists entries that lack a successful status for
	// the named enhancement module, up to limit. These are the backfill
	// targets for enhance/reembed.
	GetIncompleteEntries(ctx context.Context, module string, limit int) ([]*core.LogbookEntry, error)

	// MarkEnhancementComplete merges a successful status for one module
	// into the entry's enhancement map.
	MarkEnhancementComplete(ctx context.Context, entryID, module string) error

	// MarkEnhancementFailed merges a failed status (with the cause) for
	// one module into the entry's enhancement map.
	MarkEnhancementFailed(ctx context.Context, entryID, module, cause string) error

	// Close releases resources held by the repository.
	Close() error
}

// RunRepository provides bookkeeping for ingestion runs.
type RunRepository interface {
	// StartIngestionRun opens a run for a source system with status
	// "running" and returns it with ID and StartedAt populated.
	StartIngestionRun(ctx context.Context, sourceSystem string) (*core.IngestionRun, error)

	// CompleteIngestionRun closes a run as success with final counters.
	CompleteIngestionRun(ctx context.Context, runID int64, added, updated, failed int) error

	// FailIngestionRun closes a run as failed, retaining counters and the
	// error message.
	FailIngestionRun(ctx context.Context, runID int64, added, updated, failed int, message string) error

	// GetLastSuccessfulRun returns the most recent successful run for a
	// source system, or (nil, nil) when no successful run exists yet.
	GetLastSuccessfulRun(ctx context.Context, sourceSystem string) (*core.IngestionRun, error)

	// Close releases resources held by the repository.
	Close() error
}

// EmbeddingRepository provides access to the per-model embedding tables.
// Table names are derived deterministically via core.EmbeddingTableName.
type EmbeddingRepository interface {
	// StoreEmbedding upserts the vector for an entry into the model's table.
	StoreEmbedding(ctx context.Context, model, entryID string, vector []float32) error

	// SimilaritySearch returns entries whose stored vectors have cosine
	// similarity >= threshold with the query vector, most similar first,
	// filtered by the optional time window, capped at limit.
	SimilaritySearch(ctx context.Context, model string, vector []float32, threshold float64, limit int, start, end *time.Time) ([]*core.SemanticHit, error)

	// GetEmbeddingTables introspects which per-model tables exist, with
	// row counts and vector dimensions.
	GetEmbeddingTables(ctx context.Context) ([]core.EmbeddingTableInfo, error)

	// ValidateSearchModelTable fails fast with a *core.ConfigurationError
	// when the configured model's table is absent. Catches schema drift
	// before any query runs against the table.
	ValidateSearchModelTable(ctx context.Context, model string) error

	// Close releases resources held by the repository.
	Close() error
}
