package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

// EntryRepository is the in-memory storage.EntryRepository.
type EntryRepository struct {
	store *Store
}

var _ storage.EntryRepository = (*EntryRepository)(nil)

// UpsertEntry follows the PostgreSQL backend semantics: content replaced
// wholesale, enhancement statuses preserved, created_at immutable.
func (r *EntryRepository) UpsertEntry(_ context.Context, entry *core.LogbookEntry) (*storage.UpsertResult, error) {
	if err := core.ValidateEntry(entry); err != nil {
		return nil, err
	}
	if entry.ContentHash == "" {
		entry.ContentHash = core.ContentHash(entry.RawText)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	prev, exists := r.store.entries[entry.EntryID]

	stored := cloneEntry(entry)
	stored.UpdatedAt = now
	result := &storage.UpsertResult{Inserted: !exists, ContentChanged: true}

	if exists {
		stored.CreatedAt = prev.CreatedAt
		stored.Enhancements = prev.Enhancements
		result.ContentChanged = prev.ContentHash != stored.ContentHash
		result.PriorEnhancements = cloneEntry(prev).Enhancements
	} else {
		stored.CreatedAt = now
		stored.Enhancements = map[string]core.EnhancementStatus{}
		result.PriorEnhancements = map[string]core.EnhancementStatus{}
	}

	r.store.entries[entry.EntryID] = stored
	result.Entry = cloneEntry(stored)
	return result, nil
}

func (r *EntryRepository) GetEntry(_ context.Context, entryID string) (*core.LogbookEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.entries[entryID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneEntry(entry), nil
}

func (r *EntryRepository) GetEntriesByIDs(_ context.Context, entryIDs []string) ([]*core.LogbookEntry, error) {
	if len(entryIDs) == 0 {
		return []*core.LogbookEntry{}, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := make([]*core.LogbookEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		if entry, ok := r.store.entries[id]; ok {
			entries = append(entries, cloneEntry(entry))
		}
	}
	return entries, nil
}

func (r *EntryRepository) CountEntries(_ context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.entries)), nil
}

func (r *EntryRepository) SearchByTimeRange(_ context.Context, start, end *time.Time, limit int) ([]*core.LogbookEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := []*core.LogbookEntry{}
	for _, entry := range r.store.entries {
		if inRange(entry.Timestamp, start, end) {
			entries = append(entries, cloneEntry(entry))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *EntryRepository) FuzzySearch(_ context.Context, text string, threshold float64, maxResults int, start, end *time.Time) ([]*core.LogbookEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	type scored struct {
		entry *core.LogbookEntry
		score float64
	}
	matches := []scored{}
	for _, entry := range r.store.entries {
		if !inRange(entry.Timestamp, start, end) {
			continue
		}
		score := trigramSimilarity(text, entry.RawText)
		if score >= threshold {
			matches = append(matches, scored{cloneEntry(entry), score})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	entries := make([]*core.LogbookEntry, len(matches))
	for i, m := range matches {
		entries[i] = m.entry
	}
	return entries, nil
}

func (r *EntryRepository) KeywordSearch(_ context.Context, query string, start, end *time.Time, limit int) ([]*core.KeywordHit, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	parsed := parseQuery(query)
	hits := []*core.KeywordHit{}
	for _, entry := range r.store.entries {
		if !inRange(entry.Timestamp, start, end) {
			continue
		}
		document := strings.ToLower(entry.Title + " " + entry.RawText)
		score, highlights := parsed.match(document)
		if score > 0 {
			hits = append(hits, &core.KeywordHit{
				Entry:      cloneEntry(entry),
				Score:      score,
				Highlights: highlights,
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (r *EntryRepository) GetIncompleteEntries(_ context.Context, module string, limit int) ([]*core.LogbookEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := []*core.LogbookEntry{}
	for _, entry := range r.store.entries {
		if status, ok := entry.Enhancements[module]; !ok || status.State != core.EnhancementComplete {
			entries = append(entries, cloneEntry(entry))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *EntryRepository) MarkEnhancementComplete(ctx context.Context, entryID, module string) error {
	return r.mark(entryID, module, core.EnhancementStatus{
		State:     core.EnhancementComplete,
		Timestamp: time.Now().UTC(),
	})
}

func (r *EntryRepository) MarkEnhancementFailed(ctx context.Context, entryID, module, cause string) error {
	return r.mark(entryID, module, core.EnhancementStatus{
		State:     core.EnhancementFailed,
		Timestamp: time.Now().UTC(),
		Error:     cause,
	})
}

func (r *EntryRepository) mark(entryID, module string, status core.EnhancementStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry, ok := r.store.entries[entryID]
	if !ok {
		return storage.ErrNotFound
	}
	if entry.Enhancements == nil {
		entry.Enhancements = map[string]core.EnhancementStatus{}
	}
	entry.Enhancements[module] = status
	entry.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *EntryRepository) Close() error { return nil }

// trigramSimilarity approximates pg_trgm similarity: shared trigrams over
// the union of trigrams.
func trigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func trigrams(text string) map[string]bool {
	out := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			out[padded[i:i+3]] = true
		}
	}
	return out
}
