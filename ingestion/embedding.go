package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ariel/ai"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// ModuleTextEmbedding is the configuration key of the embedding module.
const ModuleTextEmbedding = "text_embedding"

// EmbeddingModule generates vector embeddings for entry text and stores
// them in the per-model embedding tables. One module instance covers all
// configured models; an entry is only marked complete when every model's
// vector has been stored.
type EmbeddingModule struct {
	embeddings storage.EmbeddingRepository
	embedders  map[string]ai.Embedder // Model name -> embedder configured for that model
	logger     *slog.Logger
}

// NewEmbeddingModule creates the embedding enhancement module.
func NewEmbeddingModule(embeddings storage.EmbeddingRepository, embedders map[string]ai.Embedder) (*EmbeddingModule, error) {
	if embeddings == nil {
		return nil, fmt.Errorf("embedding repository required")
	}
	if len(embedders) == 0 {
		return nil, fmt.Errorf("at least one embedder required")
	}
	return &EmbeddingModule{
		embeddings: embeddings,
		embedders:  embedders,
		logger:     slog.Default().With("module", ModuleTextEmbedding),
	}, nil
}

// Name returns the module's configuration key.
func (m *EmbeddingModule) Name() string {
	return ModuleTextEmbedding
}

// Process embeds the entry's raw text once per configured model and
// stores each vector. The first failing model aborts the entry so its
// status reflects the incomplete state and a later backfill retries it.
func (m *EmbeddingModule) Process(ctx context.Context, entry *core.LogbookEntry) error {
	for model, embedder := range m.embedders {
		vector, err := embedder.EmbedText(ctx, entry.RawText)
		if err != nil {
			return fmt.Errorf("embed entry %s with model %s: %w", entry.EntryID, model, err)
		}

		if err := m.embeddings.StoreEmbedding(ctx, model, entry.EntryID, vector); err != nil {
			return fmt.Errorf("store embedding for entry %s model %s: %w", entry.EntryID, model, err)
		}

		m.logger.Debug("stored embedding", "entry", entry.EntryID, "model", model, "dimension", len(vector))
	}
	return nil
}
