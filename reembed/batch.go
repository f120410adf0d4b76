package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ariel/ai"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/ingestion"
	"github.com/poiesic/ariel/storage"
)

// BatchProcessor embeds batches of entries and stores the vectors in the
// target model's embedding table.
type BatchProcessor struct {
	entries        storage.EntryRepository
	embeddings     storage.EmbeddingRepository
	embedder       ai.Embedder
	model          string
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor for the target model.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(entries storage.EntryRepository, embeddings storage.EmbeddingRepository, embedder ai.Embedder, model string, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		entries:        entries,
		embeddings:     embeddings,
		embedder:       embedder,
		model:          model,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds one batch of entries and stores each vector, marking the
// embedding module complete per entry. Vectors are normalized after
// embedding to ensure compatibility with cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, batch []*core.LogbookEntry) error {
	if len(batch) == 0 {
		return nil
	}

	texts := make([]string, len(batch))
	for i, entry := range batch {
		texts[i] = entry.RawText
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
	}

	for i, entry := range batch {
		vector := NormalizeVector(embeddings[i])
		if err := bp.embeddings.StoreEmbedding(ctx, bp.model, entry.EntryID, vector); err != nil {
			return fmt.Errorf("store embedding for entry %s: %w", entry.EntryID, err)
		}
		if err := bp.entries.MarkEnhancementComplete(ctx, entry.EntryID, ingestion.ModuleTextEmbedding); err != nil {
			return fmt.Errorf("mark entry %s complete: %w", entry.EntryID, err)
		}
	}

	return nil
}
