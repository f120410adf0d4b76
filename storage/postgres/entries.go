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


package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

const entryColumns = `entry_id, source_system, logged_at, author, title, raw_text,
	attachments, metadata, enhancements, content_hash, created_at, updated_at`

// EntryRepository implements storage.EntryRepository on PostgreSQL.
type EntryRepository struct {
	backend *Backend
	logger  *slog.Logger
}

// NewEntryRepository creates an entry repository on the given backend.
//
// Returns the storage.EntryRepository interface to enforce abstraction.
func NewEntryRepository(backend *Backend) (storage.EntryRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &EntryRepository{
		backend: backend,
		logger:  slog.Default().With("component", "entry-repository"),
	}, nil
}

func scanEntry(row pgx.Row) (*core.LogbookEntry, error) {
	entry := &core.LogbookEntry{}
	err := row.Scan(
		&entry.EntryID, &entry.SourceSystem, &entry.Timestamp, &entry.Author,
		&entry.Title, &entry.RawText, &entry.Attachments, &entry.Metadata,
		&entry.Enhancements, &entry.ContentHash, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// UpsertEntry creates or overwrites an entry keyed by EntryID. The stored
// enhancement map is never replaced here; it is returned so the caller can
// decide which modules still need to run.
func (r *EntryRepository) UpsertEntry(ctx context.Context, entry *core.LogbookEntry) (*storage.UpsertResult, error) {
	if err := core.ValidateEntry(entry); err != nil {
		return nil, err
	}
	if entry.ContentHash == "" {
		entry.ContentHash = core.ContentHash(entry.RawText)
	}
	if entry.Attachments == nil {
		entry.Attachments = []core.Attachment{}
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}

	const q = `
		WITH prev AS (
			SELECT content_hash, enhancements FROM logbook_entries WHERE entry_id = $1
		)
		INSERT INTO logbook_entries
			(entry_id, source_system, logged_at, author, title, raw_text, attachments, metadata, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (entry_id) DO UPDATE SET
			source_system = EXCLUDED.source_system,
			logged_at     = EXCLUDED.logged_at,
			author        = EXCLUDED.author,
			title         = EXCLUDED.title,
			raw_text      = EXCLUDED.raw_text,
			attachments   = EXCLUDED.attachments,
			metadata      = EXCLUDED.metadata,
			content_hash  = EXCLUDED.content_hash,
			updated_at    = now()
		RETURNING (xmax = 0) AS inserted,
			created_at, updated_at,
			(SELECT content_hash FROM prev) AS prev_hash,
			COALESCE((SELECT enhancements FROM prev), '{}'::jsonb) AS prev_enhancements`

	var (
		inserted  bool
		prevHash  *string
		prevEnhan map[string]core.EnhancementStatus
	)
	err := r.backend.pool.QueryRow(ctx, q,
		entry.EntryID, entry.SourceSystem, entry.Timestamp, entry.Author,
		entry.Title, entry.RawText, entry.Attachments, entry.Metadata,
		entry.ContentHash,
	).Scan(&inserted, &entry.CreatedAt, &entry.UpdatedAt, &prevHash, &prevEnhan)
	if err != nil {
		return nil, wrapErr("UpsertEntry", err)
	}

	result := &storage.UpsertResult{
		Entry:             entry,
		Inserted:          inserted,
		ContentChanged:    inserted || prevHash == nil || *prevHash != entry.ContentHash,
		PriorEnhancements: prevEnhan,
	}
	entry.Enhancements = prevEnhan
	return result, nil
}

// GetEntry retrieves a single entry by its EntryID.
func (r *EntryRepository) GetEntry(ctx context.Context, entryID string) (*core.LogbookEntry, error) {
	q := fmt.Sprintf(`SELECT %s FROM logbook_entries WHERE entry_id = $1`, entryColumns)
	entry, err := scanEntry(r.backend.pool.QueryRow(ctx, q, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("GetEntry", err)
	}
	return entry, nil
}

// GetEntriesByIDs retrieves multiple entries. Empty input returns an empty
// result without touching the database.
func (r *EntryRepository) GetEntriesByIDs(ctx context.Context, entryIDs []string) ([]*core.LogbookEntry, error) {
	if len(entryIDs) == 0 {
		return []*core.LogbookEntry{}, nil
	}

	q := fmt.Sprintf(`SELECT %s FROM logbook_entries WHERE entry_id = ANY($1)`, entryColumns)
	rows, err := r.backend.pool.Query(ctx, q, entryIDs)
	if err != nil {
		return nil, wrapErr("GetEntriesByIDs", err)
	}
	defer rows.Close()

	return collectEntries(rows, "GetEntriesByIDs")
}

// CountEntries returns the total number of stored entries.
func (r *EntryRepository) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := r.backend.pool.QueryRow(ctx, `SELECT count(*) FROM logbook_entries`).Scan(&count)
	if err != nil {
		return 0, wrapErr("CountEntries", err)
	}
	return count, nil
}

// SearchByTimeRange retrieves entries within an optional time window.
func (r *EntryRepository) SearchByTimeRange(ctx context.Context, start, end *time.Time, limit int) ([]*core.LogbookEntry, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM logbook_entries
		WHERE ($1::timestamptz IS NULL OR logged_at >= $1)
		  AND ($2::timestamptz IS NULL OR logged_at <= $2)
		ORDER BY logged_at
		LIMIT $3`, entryColumns)

	rows, err := r.backend.pool.Query(ctx, q, start, end, limit)
	if err != nil {
		return nil, wrapErr("SearchByTimeRange", err)
	}
	defer rows.Close()

	return collectEntries(rows, "SearchByTimeRange")
}

// FuzzySearch finds approximately matching entries via pg_trgm similarity.
// No matches is an empty list, never an error.
func (r *EntryRepository) FuzzySearch(ctx context.Context, text string, threshold float64, maxResults int, start, end *time.Time) ([]*core.LogbookEntry, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM logbook_entries
		WHERE similarity(raw_text, $1) >= $2
		  AND ($3::timestamptz IS NULL OR logged_at >= $3)
		  AND ($4::timestamptz IS NULL OR logged_at <= $4)
		ORDER BY similarity(raw_text, $1) DESC
		LIMIT $5`, entryColumns)

	rows, err := r.backend.pool.Query(ctx, q, text, threshold, start, end, maxResults)
	if err != nil {
		return nil, wrapErr("FuzzySearch", err)
	}
	defer rows.Close()

	return collectEntries(rows, "FuzzySearch")
}

// KeywordSearch runs a websearch-syntax full-text query (AND implied, OR,
// -negation, "quoted phrases") and returns ranked hits with ts_headline
// snippets.
func (r *EntryRepository) KeywordSearch(ctx context.Context, query string, start, end *time.Time, limit int) ([]*core.KeywordHit, error) {
	q := fmt.Sprintf(`
		SELECT %s,
			ts_rank(e.search_vector, q) AS rank,
			ts_headline('english', e.raw_text, q,
				'MaxFragments=3, MaxWords=18, MinWords=4') AS headline
		FROM logbook_entries e,
			websearch_to_tsquery('english', $1) q
		WHERE e.search_vector @@ q
		  AND ($2::timestamptz IS NULL OR e.logged_at >= $2)
		  AND ($3::timestamptz IS NULL OR e.logged_at <= $3)
		ORDER BY rank DESC
		LIMIT $4`, qualifiedEntryColumns("e"))

	rows, err := r.backend.pool.Query(ctx, q, query, start, end, limit)
	if err != nil {
		return nil, wrapErr("KeywordSearch", err)
	}
	defer rows.Close()

	hits := make([]*core.KeywordHit, 0, limit)
	for rows.Next() {
		entry := &core.LogbookEntry{}
		var rank float64
		var headline string
		err := rows.Scan(
			&entry.EntryID, &entry.SourceSystem, &entry.Timestamp, &entry.Author,
			&entry.Title, &entry.RawText, &entry.Attachments, &entry.Metadata,
			&entry.Enhancements, &entry.ContentHash, &entry.CreatedAt, &entry.UpdatedAt,
			&rank, &headline,
		)
		if err != nil {
			return nil, wrapErr("KeywordSearch", err)
		}
		hits = append(hits, &core.KeywordHit{
			Entry:      entry,
			Score:      rank,
			Highlights: splitHeadline(headline),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("KeywordSearch", err)
	}
	return hits, nil
}

// GetIncompleteEntries lists entries lacking a successful status for the
// named enhancement module, oldest first.
func (r *EntryRepository) GetIncompleteEntries(ctx context.Context, module string, limit int) ([]*core.LogbookEntry, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM logbook_entries
		WHERE COALESCE(enhancements #>> ARRAY[$1, 'state'], '') <> 'complete'
		ORDER BY logged_at
		LIMIT $2`, entryColumns)

	rows, err := r.backend.pool.Query(ctx, q, module, limit)
	if err != nil {
		return nil, wrapErr("GetIncompleteEntries", err)
	}
	defer rows.Close()

	return collectEntries(rows, "GetIncompleteEntries")
}

// MarkEnhancementComplete merges a successful status for one module into
// the entry's enhancement map. Only the module's own key changes.
func (r *EntryRepository) MarkEnhancementComplete(ctx context.Context, entryID, module string) error {
	return r.markEnhancement(ctx, entryID, module, core.EnhancementStatus{
		State:     core.EnhancementComplete,
		Timestamp: time.Now().UTC(),
	})
}

// MarkEnhancementFailed merges a failed status with the cause message.
func (r *EntryRepository) MarkEnhancementFailed(ctx context.Context, entryID, module, cause string) error {
	return r.markEnhancement(ctx, entryID, module, core.EnhancementStatus{
		State:     core.EnhancementFailed,
		Timestamp: time.Now().UTC(),
		Error:     cause,
	})
}

func (r *EntryRepository) markEnhancement(ctx context.Context, entryID, module string, status core.EnhancementStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return &core.QueryError{Op: "markEnhancement", Cause: err}
	}

	const q = `
		UPDATE logbook_entries
		SET enhancements = jsonb_set(COALESCE(enhancements, '{}'::jsonb), ARRAY[$2], $3::jsonb, true),
			updated_at = now()
		WHERE entry_id = $1`

	tag, err := r.backend.pool.Exec(ctx, q, entryID, module, payload)
	if err != nil {
		return wrapErr("markEnhancement", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close is a no-op; the backend owns the pool.
func (r *EntryRepository) Close() error {
	return nil
}

func collectEntries(rows pgx.Rows, op string) ([]*core.LogbookEntry, error) {
	entries := []*core.LogbookEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return entries, nil
}

// qualifiedEntryColumns prefixes every entry column with a table alias.
func qualifiedEntryColumns(alias string) string {
	cols := strings.Split(entryColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

// splitHeadline splits ts_headline output into individual fragments.
func splitHeadline(headline string) []string {
	if headline == "" {
		return nil
	}
	parts := strings.Split(headline, " ... ")
	fragments := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			fragments = append(fragments, trimmed)
		}
	}
	return fragments
}
