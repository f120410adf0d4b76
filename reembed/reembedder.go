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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/ariel/ai"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/ingestion"
	"github.com/poiesic/ariel/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of entries to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// DryRun reports what would be embedded without writing anything
	DryRun bool

	// Force re-embeds every entry, not just the incomplete ones
	Force bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder orchestrates the backfill of one embedding model's table.
type Reembedder struct {
	config    *Config
	model     string
	progress  io.Writer
	processor *BatchProcessor
	iterator  *EntryIterator
}

// NewReembedder creates a new reembedder for the target model.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(entries storage.EntryRepository, embeddings storage.EmbeddingRepository, embedder ai.Embedder, model string, config *Config, progress io.Writer) (*Reembedder, error) {
	if model == "" {
		return nil, ErrModelRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		config:    config,
		model:     model,
		progress:  progress,
		processor: NewBatchProcessor(entries, embeddings, embedder, model, config.MaxRetries, config.RetryDelay),
		iterator:  NewEntryIterator(entries, ingestion.ModuleTextEmbedding, config.BatchSize, config.Force),
	}, nil
}

// Run executes the reembedding operation. Target entries are embedded
// with the configured model in batches; progress is reported to the
// configured writer. In dry-run mode the targets are only counted.
func (r *Reembedder) Run(ctx context.Context) error {
	targets, err := r.iterator.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to query backfill targets: %w", err)
	}

	total := len(targets)
	if total == 0 {
		fmt.Fprintf(r.progress, "No entries need embedding for model %s (0 entries)\n", r.model)
		return nil
	}

	if r.config.DryRun {
		fmt.Fprintf(r.progress, "Dry run: %d entries would be embedded with model %s\n", total, r.model)
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entries with model %s (batch size: %d)\n",
		total, r.model, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, targets, func(batch []*core.LogbookEntry) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d entries in %v (%.1f entries/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}
