package search

import (
	"context"
	"log/slog"

	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/storage"
)

// ModuleKeyword is the configuration key of the keyword retriever.
const ModuleKeyword = "keyword"

// KeywordRetriever runs boolean/phrase full-text queries against the
// entry store. Supports AND/OR/NOT and quoted phrases via the search
// grammar of the underlying repository.
type KeywordRetriever struct {
	entries storage.EntryRepository
	cfg     config.ModuleConfig
	logger  *slog.Logger
}

// NewKeywordRetriever creates a keyword retriever.
func NewKeywordRetriever(entries storage.EntryRepository, cfg config.ModuleConfig) (*KeywordRetriever, error) {
	if entries == nil {
		return nil, ErrEntryRepositoryRequired
	}
	return &KeywordRetriever{
		entries: entries,
		cfg:     cfg,
		logger:  slog.Default().With("retriever", ModuleKeyword),
	}, nil
}

// Name returns the retriever's configuration key.
func (r *KeywordRetriever) Name() string {
	return ModuleKeyword
}

// Retrieve runs the full-text query. The enabled check happens before
// any storage access.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query Query) ([]*Hit, error) {
	if err := config.RequireModule(ModuleKeyword, r.cfg.Enabled); err != nil {
		return nil, err
	}

	limit := query.MaxResults
	if limit <= 0 {
		limit = r.cfg.MaxResults
	}

	matches, err := r.entries.KeywordSearch(ctx, query.Text, query.Start, query.End, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]*Hit, len(matches))
	for i, match := range matches {
		hits[i] = &Hit{
			Entry:      match.Entry,
			Score:      match.Score,
			Highlights: match.Highlights,
		}
	}

	r.logger.Debug("keyword retrieval complete", "query", query.Text, "hits", len(hits))
	return hits, nil
}
