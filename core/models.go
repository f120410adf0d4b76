package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// EnhancementState is the lifecycle state of a single enhancement module
// applied to a single entry.
type EnhancementState string

const (
	// EnhancementPending means the module has not yet run for the entry.
	EnhancementPending EnhancementState = "pending"
	// EnhancementComplete means the module ran successfully.
	EnhancementComplete EnhancementState = "complete"
	// EnhancementFailed means the module failed; Error holds the cause.
	EnhancementFailed EnhancementState = "failed"
)

// EnhancementStatus records the outcome of one enhancement module for one entry.
type EnhancementStatus struct {
	State     EnhancementState `json:"state"`
	Timestamp time.Time        `json:"timestamp"`
	Error     string           `json:"error,omitempty"`
}

// Attachment is a file or link carried by a logbook entry.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// LogbookEntry is a single timestamped free-text entry ingested from an
// external source system.
//
// EntryID is the natural key from the source system and is globally unique
// per logical entry: re-ingestion of the same id is an update, never a
// duplicate. Content fields are replaced wholesale on update, while
// Enhancements is merged key-by-key and never wholesale-replaced.
type LogbookEntry struct {
	EntryID      string
	SourceSystem string
	Timestamp    time.Time // When the entry was written in the source system
	Author       string
	Title        string
	RawText      string
	Attachments  []Attachment
	Metadata     map[string]string
	Enhancements map[string]EnhancementStatus // Module name -> status (populated by enhancement modules)
	ContentHash  string                       // BLAKE2b hash of RawText, used to skip re-enhancement of unchanged entries
	CreatedAt    time.Time                    // Immutable
	UpdatedAt    time.Time                    // Bumped on every upsert
}

// RunStatus is the terminal or in-flight state of an ingestion run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// IngestionRun is the bookkeeping record for a single poll of a source
// system. Every run is closed exactly once, as success or failed, before a
// new run for the same source starts.
type IngestionRun struct {
	ID             int64
	SourceSystem   string
	StartedAt      time.Time
	CompletedAt    time.Time
	Status         RunStatus
	EntriesAdded   int
	EntriesUpdated int
	EntriesFailed  int
	ErrorMessage   string
}

// KeywordHit is a full-text search match with highlighted snippets.
type KeywordHit struct {
	Entry      *LogbookEntry
	Score      float64
	Highlights []string
}

// SemanticHit is a vector similarity match.
type SemanticHit struct {
	Entry      *LogbookEntry
	Similarity float64
}

// FusedHit is an entry with its combined Reciprocal Rank Fusion score.
type FusedHit struct {
	Entry *LogbookEntry
	Score float64
}

// PipelineResult is the outcome of a search pipeline invocation.
// Answer is empty for non-RAG modes. Citations are unique and
// order-preserving.
type PipelineResult struct {
	Entries          []*LogbookEntry
	Answer           string
	Citations        []string
	RetrievalCount   int
	ContextTruncated bool
	SearchModesUsed  []string
	Timings          map[string]time.Duration
}

// EmbeddingTableInfo describes one per-model embedding table.
type EmbeddingTableInfo struct {
	Model     string
	Table     string
	Rows      int64
	Dimension int
}

// ContentHash returns a deterministic 64-bit BLAKE2b hash of text, hex
// encoded. Identical content always produces an identical hash.
func ContentHash(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
