// Package postgres implements the storage repositories on PostgreSQL.
//
// It uses pgxpool for pooled access, pgvector for embedding columns,
// websearch_to_tsquery full-text search for keyword retrieval, and
// pg_trgm for fuzzy matching. Per-model embedding tables are named via
// core.EmbeddingTableName.
//
// Constructors return the storage interfaces, not concrete types.
package postgres
