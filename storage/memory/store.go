package memory

import (
	"sync"
	"time"

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// Store holds all in-memory state shared by the repositories.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*core.LogbookEntry
	runs       map[int64]*core.IngestionRun
	nextRunID  int64
	embeddings map[string]map[string][]float32 // table -> entry id -> vector
	dimensions map[string]int                  // table -> vector dimension
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries:    make(map[string]*core.LogbookEntry),
		runs:       make(map[int64]*core.IngestionRun),
		embeddings: make(map[string]map[string][]float32),
		dimensions: make(map[string]int),
	}
}

// NewRepositories creates a store and returns repositories over it.
// Mirrors the production constructors for drop-in use in tests.
func NewRepositories() (storage.EntryRepository, storage.RunRepository, storage.EmbeddingRepository, *Store) {
	s := NewStore()
	return &EntryRepository{store: s}, &RunRepository{store: s}, &EmbeddingRepository{store: s}, s
}

// CreateEmbeddingTable registers a per-model table, as the migration
// runner would in PostgreSQL.
func (s *Store) CreateEmbeddingTable(model string, dimension int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := core.EmbeddingTableName(model)
	if _, ok := s.embeddings[table]; !ok {
		s.embeddings[table] = make(map[string][]float32)
		s.dimensions[table] = dimension
	}
}

func cloneEntry(e *core.LogbookEntry) *core.LogbookEntry {
	if e == nil {
		return nil
	}
	out := *e
	out.Attachments = append([]core.Attachment(nil), e.Attachments...)
	out.Metadata = make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		out.Metadata[k] = v
	}
	out.Enhancements = make(map[string]core.EnhancementStatus, len(e.Enhancements))
	for k, v := range e.Enhancements {
		out.Enhancements[k] = v
	}
	return &out
}

func inRange(ts time.Time, start, end *time.Time) bool {
	if start != nil && ts.Before(*start) {
		return false
	}
	if end != nil && ts.After(*end) {
		return false
	}
	return true
}
