package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/ariel/core"
)

// contextDelimiter separates rendered entry blocks in the assembled
// context window.
const contextDelimiter = "\n---\n"

// truncationMarker is appended to a body cut down to the per-entry budget.
const truncationMarker = "..."

// AssembledContext is the output of the context-window assembler: one
// bounded text block plus the entries that made it in.
type AssembledContext struct {
	Text      string
	Included  []*core.LogbookEntry
	Truncated bool
}

// TopKAssembler packages the top fused hits as-is.
type TopKAssembler struct {
	K int
}

// Assemble returns up to K entries in fused-rank order.
func (a *TopKAssembler) Assemble(fused []*core.FusedHit) []*core.LogbookEntry {
	limit := a.K
	if limit <= 0 || limit > len(fused) {
		limit = len(fused)
	}
	entries := make([]*core.LogbookEntry, limit)
	for i := 0; i < limit; i++ {
		entries[i] = fused[i].Entry
	}
	return entries
}

// ContextWindowAssembler renders fused hits into one text block bounded
// by a total-character budget and a per-entry character budget. Entries
// are appended in fused-rank order; the first entry whose block would
// exceed the remaining total budget stops assembly, drops the rest, and
// sets the truncation flag. Entries are never split across the boundary.
type ContextWindowAssembler struct {
	TotalBudget int
	EntryBudget int
}

// Assemble builds the bounded context window.
func (a *ContextWindowAssembler) Assemble(fused []*core.FusedHit) *AssembledContext {
	result := &AssembledContext{}

	var b strings.Builder
	for _, hit := range fused {
		block := renderEntryBlock(hit.Entry, a.EntryBudget)

		needed := len(block)
		if b.Len() > 0 {
			needed += len(contextDelimiter)
		}
		if a.TotalBudget > 0 && b.Len()+needed > a.TotalBudget {
			result.Truncated = true
			break
		}

		if b.Len() > 0 {
			b.WriteString(contextDelimiter)
		}
		b.WriteString(block)
		result.Included = append(result.Included, hit.Entry)
	}

	result.Text = b.String()
	return result
}

// renderEntryBlock renders one entry as a fixed block: an id header line
// with timestamp and author, an optional title line, and the body. A
// body over the per-entry budget is cut and marked with an ellipsis so
// the block never exceeds the budget plus header lines.
func renderEntryBlock(entry *core.LogbookEntry, entryBudget int) string {
	timestamp := "Unknown"
	if !entry.Timestamp.IsZero() {
		timestamp = entry.Timestamp.UTC().Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[#%s] %s by %s\n", entry.EntryID, timestamp, entry.Author)
	if entry.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", entry.Title)
	}

	body := entry.RawText
	if entryBudget > 0 && len(body) > entryBudget {
		cut := entryBudget - len(truncationMarker)
		if cut < 0 {
			cut = 0
		}
		body = body[:cut] + truncationMarker
	}
	b.WriteString(body)

	return b.String()
}
