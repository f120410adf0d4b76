package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ariel/ai"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// ModuleSemanticProcessor is the configuration key of the summarization module.
const ModuleSemanticProcessor = "semantic_processor"

// summaryInputLimit caps how much entry text is sent to the LLM.
const summaryInputLimit = 8000

const summarySystemPrompt = `You summarize operational logbook entries.
Produce a single concise paragraph (at most three sentences) capturing what
happened, which systems were involved, and the outcome. Do not speculate
beyond the text. Respond with the summary only.`

// SummaryModule produces a short LLM-generated summary of each entry and
// persists it under the "summary" metadata key.
type SummaryModule struct {
	entries   storage.EntryRepository
	generator ai.Generator
	logger    *slog.Logger
}

// NewSummaryModule creates the summarization enhancement module.
func NewSummaryModule(entries storage.EntryRepository, generator ai.Generator) (*SummaryModule, error) {
	if entries == nil {
		return nil, ErrEntryRepositoryRequired
	}
	if generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	return &SummaryModule{
		entries:   entries,
		generator: generator,
		logger:    slog.Default().With("module", ModuleSemanticProcessor),
	}, nil
}

// Name returns the module's configuration key.
func (m *SummaryModule) Name() string {
	return ModuleSemanticProcessor
}

// Process generates a summary of the entry text and upserts the entry
// with the summary merged into its metadata. The upsert leaves raw text
// untouched, so content hashing still sees the entry as unchanged.
func (m *SummaryModule) Process(ctx context.Context, entry *core.LogbookEntry) error {
	text := entry.RawText
	if len(text) > summaryInputLimit {
		text = text[:summaryInputLimit]
	}

	summary, err := m.generator.Generate(ctx, summarySystemPrompt, text)
	if err != nil {
		return fmt.Errorf("summarize entry %s: %w", entry.EntryID, err)
	}
	if summary == "" {
		m.logger.Warn("empty summary generated", "entry", entry.EntryID)
		return nil
	}

	if entry.Metadata == nil {
		entry.Metadata = make(map[string]string)
	}
	entry.Metadata["summary"] = summary

	if _, err := m.entries.UpsertEntry(ctx, entry); err != nil {
		return fmt.Errorf("persist summary for entry %s: %w", entry.EntryID, err)
	}

	m.logger.Debug("stored summary", "entry", entry.EntryID, "length", len(summary))
	return nil
}
