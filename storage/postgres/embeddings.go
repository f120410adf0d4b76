package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository on PostgreSQL
// with pgvector. Each embedding model gets its own table, created by the
// migration runner and named via core.EmbeddingTableName.
type EmbeddingRepository struct {
	backend *Backend
	logger  *slog.Logger
}

// NewEmbeddingRepository creates an embedding repository on the backend.
//
// Returns the storage.EmbeddingRepository interface to enforce abstraction.
func NewEmbeddingRepository(backend *Backend) (storage.EmbeddingRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &EmbeddingRepository{
		backend: backend,
		logger:  slog.Default().With("component", "embedding-repository"),
	}, nil
}

// StoreEmbedding upserts an entry's vector into the model's table.
func (r *EmbeddingRepository) StoreEmbedding(ctx context.Context, model, entryID string, vector []float32) error {
	// Table names come from EmbeddingTableName and contain only
	// [a-z0-9_], so interpolation is safe here.
	table := core.EmbeddingTableName(model)
	q := fmt.Sprintf(`
		INSERT INTO %s (entry_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (entry_id) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`, table)

	if _, err := r.backend.pool.Exec(ctx, q, entryID, newVector(vector)); err != nil {
		return wrapErr("StoreEmbedding", err)
	}
	return nil
}

// SimilaritySearch returns entries with cosine similarity >= threshold,
// most similar first.
func (r *EmbeddingRepository) SimilaritySearch(ctx context.Context, model string, vector []float32, threshold float64, limit int, start, end *time.Time) ([]*core.SemanticHit, error) {
	table := core.EmbeddingTableName(model)
	q := fmt.Sprintf(`
		SELECT %s, 1 - (t.embedding <=> $1) AS similarity
		FROM %s t
		JOIN logbook_entries e ON e.entry_id = t.entry_id
		WHERE 1 - (t.embedding <=> $1) >= $2
		  AND ($3::timestamptz IS NULL OR e.logged_at >= $3)
		  AND ($4::timestamptz IS NULL OR e.logged_at <= $4)
		ORDER BY t.embedding <=> $1
		LIMIT $5`, qualifiedEntryColumns("e"), table)

	rows, err := r.backend.pool.Query(ctx, q, newVector(vector), threshold, start, end, limit)
	if err != nil {
		return nil, wrapErr("SimilaritySearch", err)
	}
	defer rows.Close()

	hits := make([]*core.SemanticHit, 0, limit)
	for rows.Next() {
		entry := &core.LogbookEntry{}
		var similarity float64
		err := rows.Scan(
			&entry.EntryID, &entry.SourceSystem, &entry.Timestamp, &entry.Author,
			&entry.Title, &entry.RawText, &entry.Attachments, &entry.Metadata,
			&entry.Enhancements, &entry.ContentHash, &entry.CreatedAt, &entry.UpdatedAt,
			&similarity,
		)
		if err != nil {
			return nil, wrapErr("SimilaritySearch", err)
		}
		hits = append(hits, &core.SemanticHit{Entry: entry, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("SimilaritySearch", err)
	}
	return hits, nil
}

// GetEmbeddingTables introspects existing per-model tables with row counts
// and vector dimensions.
func (r *EmbeddingRepository) GetEmbeddingTables(ctx context.Context) ([]core.EmbeddingTableInfo, error) {
	// For vector columns the type modifier is the dimension itself.
	const q = `
		SELECT c.relname, a.atttypmod
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attname = 'embedding'
		WHERE n.nspname = current_schema()
		  AND c.relkind = 'r'
		  AND c.relname LIKE 'text\_embeddings\_%'
		ORDER BY c.relname`

	rows, err := r.backend.pool.Query(ctx, q)
	if err != nil {
		return nil, wrapErr("GetEmbeddingTables", err)
	}
	defer rows.Close()

	infos := []core.EmbeddingTableInfo{}
	for rows.Next() {
		var info core.EmbeddingTableInfo
		if err := rows.Scan(&info.Table, &info.Dimension); err != nil {
			return nil, wrapErr("GetEmbeddingTables", err)
		}
		info.Model = strings.TrimPrefix(info.Table, core.EmbeddingTablePrefix)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("GetEmbeddingTables", err)
	}

	for i := range infos {
		countQ := fmt.Sprintf(`SELECT count(*) FROM %s`, infos[i].Table)
		if err := r.backend.pool.QueryRow(ctx, countQ).Scan(&infos[i].Rows); err != nil {
			return nil, wrapErr("GetEmbeddingTables", err)
		}
	}
	return infos, nil
}

// ValidateSearchModelTable fails fast with a configuration error when the
// configured model's table is absent, catching schema drift before any
// similarity query runs.
func (r *EmbeddingRepository) ValidateSearchModelTable(ctx context.Context, model string) error {
	table := core.EmbeddingTableName(model)

	var exists bool
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`
	if err := r.backend.pool.QueryRow(ctx, q, table).Scan(&exists); err != nil {
		return wrapErr("ValidateSearchModelTable", err)
	}
	if !exists {
		return &core.ConfigurationError{
			Reason: fmt.Sprintf("embedding table %s for model %q does not exist; run migrations", table, model),
		}
	}
	return nil
}

// Close is a no-op; the backend owns the pool.
func (r *EmbeddingRepository) Close() error {
	return nil
}
