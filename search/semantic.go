package search

import (
	"context"
	"log/slog"
	"sync"

	"github.com/poiesic/ariel/ai"
	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/storage"
)

// ModuleSemantic is the configuration key of the semantic retriever.
const ModuleSemantic = "semantic"

// SemanticRetriever embeds the query text and searches the configured
// model's embedding table by cosine similarity.
type SemanticRetriever struct {
	embeddings storage.EmbeddingRepository
	embedder   ai.Embedder
	cfg        config.ModuleConfig

	validateOnce sync.Once
	validateErr  error

	logger *slog.Logger
}

// NewSemanticRetriever creates a semantic retriever for the configured model.
func NewSemanticRetriever(embeddings storage.EmbeddingRepository, embedder ai.Embedder, cfg config.ModuleConfig) (*SemanticRetriever, error) {
	if embeddings == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	return &SemanticRetriever{
		embeddings: embeddings,
		embedder:   embedder,
		cfg:        cfg,
		logger:     slog.Default().With("retriever", ModuleSemantic, "model", cfg.Model),
	}, nil
}

// Name returns the retriever's configuration key.
func (r *SemanticRetriever) Name() string {
	return ModuleSemantic
}

// Retrieve embeds the query and runs a similarity search. The configured
// model's table is validated once per retriever lifetime, catching schema
// drift before the first real query rather than during it.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query Query) ([]*Hit, error) {
	if err := config.RequireModule(ModuleSemantic, r.cfg.Enabled); err != nil {
		return nil, err
	}

	r.validateOnce.Do(func() {
		r.validateErr = r.embeddings.ValidateSearchModelTable(ctx, r.cfg.Model)
	})
	if r.validateErr != nil {
		return nil, r.validateErr
	}

	vector, err := r.embedder.EmbedText(ctx, query.Text)
	if err != nil {
		return nil, err
	}

	limit := query.MaxResults
	if limit <= 0 {
		limit = r.cfg.MaxResults
	}

	matches, err := r.embeddings.SimilaritySearch(ctx, r.cfg.Model, vector, r.cfg.SimilarityThreshold, limit, query.Start, query.End)
	if err != nil {
		return nil, err
	}

	hits := make([]*Hit, len(matches))
	for i, match := range matches {
		hits[i] = &Hit{
			Entry: match.Entry,
			Score: match.Similarity,
		}
	}

	r.logger.Debug("semantic retrieval complete", "query", query.Text, "hits", len(hits))
	return hits, nil
}
