package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// EmbeddingRepository is the in-memory storage.EmbeddingRepository.
type EmbeddingRepository struct {
	store *Store
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

func (r *EmbeddingRepository) StoreEmbedding(_ context.Context, model, entryID string, vector []float32) error {
	table := core.EmbeddingTableName(model)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	vectors, ok := r.store.embeddings[table]
	if !ok {
		return &core.QueryError{Op: "StoreEmbedding", Cause: fmt.Errorf("relation %q does not exist", table)}
	}
	vectors[entryID] = append([]float32(nil), vector...)
	return nil
}

func (r *EmbeddingRepository) SimilaritySearch(_ context.Context, model string, vector []float32, threshold float64, limit int, start, end *time.Time) ([]*core.SemanticHit, error) {
	table := core.EmbeddingTableName(model)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	vectors, ok := r.store.embeddings[table]
	if !ok {
		return nil, &core.QueryError{Op: "SimilaritySearch", Cause: fmt.Errorf("relation %q does not exist", table)}
	}

	hits := []*core.SemanticHit{}
	for entryID, stored := range vectors {
		entry, ok := r.store.entries[entryID]
		if !ok || !inRange(entry.Timestamp, start, end) {
			continue
		}
		similarity := cosineSimilarity(vector, stored)
		if similarity >= threshold {
			hits = append(hits, &core.SemanticHit{Entry: cloneEntry(entry), Similarity: similarity})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (r *EmbeddingRepository) GetEmbeddingTables(_ context.Context) ([]core.EmbeddingTableInfo, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	infos := []core.EmbeddingTableInfo{}
	for table, vectors := range r.store.embeddings {
		infos = append(infos, core.EmbeddingTableInfo{
			Model:     table[len(core.EmbeddingTablePrefix):],
			Table:     table,
			Rows:      int64(len(vectors)),
			Dimension: r.store.dimensions[table],
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Table < infos[j].Table })
	return infos, nil
}

func (r *EmbeddingRepository) ValidateSearchModelTable(_ context.Context, model string) error {
	table := core.EmbeddingTableName(model)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if _, ok := r.store.embeddings[table]; !ok {
		return &core.ConfigurationError{
			Reason: fmt.Sprintf("embedding table %s for model %q does not exist; run migrations", table, model),
		}
	}
	return nil
}

func (r *EmbeddingRepository) Close() error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
