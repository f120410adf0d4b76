package migrate

import (
	"context"
	"fmt"

	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
)

func execAll(ctx context.Context, db Execer, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func extensionTrgm() Migration {
	return Migration{
		Name: "ext_pg_trgm",
		Apply: func(ctx context.Context, db Execer) error {
			return execAll(ctx, db, `CREATE EXTENSION IF NOT EXISTS pg_trgm`)
		},
	}
}

func extensionVector() Migration {
	return Migration{
		Name: "ext_vector",
		Apply: func(ctx context.Context, db Execer) error {
			return execAll(ctx, db, `CREATE EXTENSION IF NOT EXISTS vector`)
		},
	}
}

func logbookEntries() Migration {
	return Migration{
		Name:      "logbook_entries",
		DependsOn: []string{"ext_pg_trgm"},
		Apply: func(ctx context.Context, db Execer) error {
			return execAll(ctx, db,
				`CREATE TABLE IF NOT EXISTS logbook_entries (
					entry_id      TEXT PRIMARY KEY,
					source_system TEXT NOT NULL,
					logged_at     TIMESTAMPTZ NOT NULL,
					author        TEXT NOT NULL DEFAULT '',
					title         TEXT NOT NULL DEFAULT '',
					raw_text      TEXT NOT NULL,
					attachments   JSONB NOT NULL DEFAULT '[]'::jsonb,
					metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
					enhancements  JSONB NOT NULL DEFAULT '{}'::jsonb,
					content_hash  TEXT NOT NULL,
					created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
					updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
					search_vector TSVECTOR GENERATED ALWAYS AS (
						to_tsvector('english', coalesce(title, '') || ' ' || raw_text)
					) STORED
				)`,
				`CREATE INDEX IF NOT EXISTS logbook_entries_logged_at_idx
					ON logbook_entries (logged_at)`,
				`CREATE INDEX IF NOT EXISTS logbook_entries_source_idx
					ON logbook_entries (source_system)`,
			)
		},
	}
}

func entryFTSIndex() Migration {
	return Migration{
		Name:      "entry_fts_index",
		DependsOn: []string{"logbook_entries"},
		Apply: func(ctx context.Context, db Execer) error {
			return execAll(ctx, db,
				`CREATE INDEX IF NOT EXISTS logbook_entries_search_idx
					ON logbook_entries USING GIN (search_vector)`,
				`CREATE INDEX IF NOT EXISTS logbook_entries_trgm_idx
					ON logbook_entries USING GIN (raw_text gin_trgm_ops)`,
			)
		},
	}
}

func ingestionRuns() Migration {
	return Migration{
		Name: "ingestion_runs",
		Apply: func(ctx context.Context, db Execer) error {
			return execAll(ctx, db,
				`CREATE TABLE IF NOT EXISTS ingestion_runs (
					id              BIGSERIAL PRIMARY KEY,
					source_system   TEXT NOT NULL,
					started_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
					completed_at    TIMESTAMPTZ,
					status          TEXT NOT NULL CHECK (status IN ('running', 'success', 'failed')),
					entries_added   INTEGER NOT NULL DEFAULT 0,
					entries_updated INTEGER NOT NULL DEFAULT 0,
					entries_failed  INTEGER NOT NULL DEFAULT 0,
					error_message   TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX IF NOT EXISTS ingestion_runs_source_idx
					ON ingestion_runs (source_system, status, completed_at DESC)`,
			)
		},
	}
}

// EmbeddingTable builds the migration for one model's embedding table.
// It is exported so the reembed command can create a table for a model
// that is not (yet) in configuration.
func EmbeddingTable(model string, dimension int) Migration {
	table := core.EmbeddingTableName(model)
	return Migration{
		Name:      "embedding_table_" + table,
		DependsOn: []string{"ext_vector", "logbook_entries"},
		Apply: func(ctx context.Context, db Execer) error {
			return execAll(ctx, db,
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					entry_id   TEXT PRIMARY KEY REFERENCES logbook_entries(entry_id) ON DELETE CASCADE,
					embedding  VECTOR(%d) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
				)`, table, dimension),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_cosine_idx
					ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
			)
		},
	}
}

// ForConfig assembles the migration set implied by the configuration.
// The vector extension and per-model tables exist only when a module
// needs them.
func ForConfig(cfg *config.Config) []Migration {
	migrations := []Migration{
		extensionTrgm(),
		logbookEntries(),
		entryFTSIndex(),
		ingestionRuns(),
	}

	embedding := cfg.EnhancementModules.TextEmbedding
	needsVector := cfg.SearchModules.Semantic.Enabled || (embedding.Enabled && len(embedding.EmbeddingModels()) > 0)
	if !needsVector {
		return migrations
	}

	migrations = append(migrations, extensionVector())
	seen := map[string]bool{}
	for _, model := range embedding.EmbeddingModels() {
		table := core.EmbeddingTableName(model)
		if seen[table] {
			continue
		}
		seen[table] = true
		migrations = append(migrations, EmbeddingTable(model, embedding.Dimension))
	}

	// The semantic search model may differ from the enhancement models;
	// its table must exist before the retriever validates it.
	if cfg.SearchModules.Semantic.Enabled {
		table := core.EmbeddingTableName(cfg.SearchModules.Semantic.Model)
		if !seen[table] {
			dim := embedding.Dimension
			if dim <= 0 {
				dim = 1536
			}
			migrations = append(migrations, EmbeddingTable(cfg.SearchModules.Semantic.Model, dim))
		}
	}

	return migrations
}
