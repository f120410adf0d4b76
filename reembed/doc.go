// Package reembed provides batch backfill of vector embeddings for
// logbook entries, used when an embedding model is added or replaced.
//
// By default only entries lacking a successful embedding status are
// processed; force mode re-embeds everything. The package supports batch
// processing, progress tracking, retry with exponential backoff, and
// vector normalization for cosine similarity search.
package reembed
