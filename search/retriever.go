package search

import (
	"context"
	"time"

	"github.com/poiesic/ariel/core"
)

// Query is a retrieval request: free text plus an optional time window
// and a result cap.
type Query struct {
	Text       string
	Start      *time.Time
	End        *time.Time
	MaxResults int
}

// Hit is one scored retrieval match. Highlights is only populated by
// retrievers that produce snippets (keyword).
type Hit struct {
	Entry      *core.LogbookEntry
	Score      float64
	Highlights []string
}

// Retriever is one source of ranked hits for a query. Implementations
// check their module's enabled flag before touching storage.
type Retriever interface {
	// Name is the retriever's configuration key, e.g. "keyword".
	Name() string

	// Retrieve returns relevance-ranked hits, best first, capped at
	// query.MaxResults.
	Retrieve(ctx context.Context, query Query) ([]*Hit, error)
}
