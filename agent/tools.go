// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/search"
)

// toolEntryPreview caps how much of an entry body a tool returns to the
// model per result line.
const toolEntryPreview = 400

// Tool is one callable capability exposed to the executor. Input and
// output are plain text, matching what tool-calling models exchange.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Searcher is the slice of the search service the tools need.
type Searcher interface {
	Search(ctx context.Context, mode search.Mode, query search.Query) (*core.PipelineResult, error)
}

// SearchTools builds the logbook retrieval tools for an executor. Each
// call is bounded by timeout; zero disables the bound.
func SearchTools(searcher Searcher, timeout time.Duration) []Tool {
	return []Tool{
		&searchTool{
			searcher: searcher,
			mode:     search.ModeKeyword,
			name:     "keyword_search",
			description: "Full-text search over logbook entries. Input: search terms. " +
				"Returns matching entries with their IDs, timestamps and authors.",
			timeout: timeout,
		},
		&searchTool{
			searcher: searcher,
			mode:     search.ModeSemantic,
			name:     "semantic_search",
			description: "Meaning-based search over logbook entries. Input: a natural " +
				"language description of what to find. Returns conceptually similar entries.",
			timeout: timeout,
		},
	}
}

type searchTool struct {
	searcher    Searcher
	mode        search.Mode
	name        string
	description string
	timeout     time.Duration
}

func (t *searchTool) Name() string        { return t.name }
func (t *searchTool) Description() string { return t.description }

func (t *searchTool) Call(ctx context.Context, input string) (string, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	result, err := t.searcher.Search(ctx, t.mode, search.Query{Text: input})
	if ctx.Err() == context.DeadlineExceeded {
		return "", &core.TimeoutError{Op: t.name, Limit: t.timeout}
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.name, err)
	}

	return formatToolResult(result), nil
}

// formatToolResult renders retrieved entries as plain text for the model.
func formatToolResult(result *core.PipelineResult) string {
	if len(result.Entries) == 0 {
		return "No matching logbook entries found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d entries:\n", len(result.Entries))
	for _, entry := range result.Entries {
		body := entry.RawText
		if len(body) > toolEntryPreview {
			body = body[:toolEntryPreview] + "..."
		}
		when := "Unknown"
		if !entry.Timestamp.IsZero() {
			when = entry.Timestamp.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "\n[#%s] %s by %s\n%s\n", entry.EntryID, when, entry.Author, body)
	}
	return b.String()
}
