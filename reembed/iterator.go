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

	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/storage"
)

const (
	// DefaultBatchSize is the default number of entries to process in each batch
	DefaultBatchSize = 100
)

// EntryIterator iterates over backfill target entries in batches.
// By default the targets are entries lacking a successful status for the
// module; in force mode every stored entry is a target.
type EntryIterator struct {
	entries   storage.EntryRepository
	module    string
	batchSize int
	force     bool
}

// NewEntryIterator creates an iterator over backfill targets.
// batchSize: number of entries per batch (must be > 0)
func NewEntryIterator(entries storage.EntryRepository, module string, batchSize int, force bool) *EntryIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &EntryIterator{
		entries:   entries,
		module:    module,
		batchSize: batchSize,
		force:     force,
	}
}

// Load fetches the full target set, oldest first.
func (it *EntryIterator) Load(ctx context.Context) ([]*core.LogbookEntry, error) {
	total, err := it.entries.CountEntries(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	if it.force {
		return it.entries.SearchByTimeRange(ctx, nil, nil, int(total))
	}
	return it.entries.GetIncompleteEntries(ctx, it.module, int(total))
}

// ForEach walks an already-loaded target set, calling fn for each batch.
// The caller loads the set once (via Load) so that the total it reports
// is exactly the set being walked. Iteration stops on the first error
// from fn; context cancellation is checked between batches.
func (it *EntryIterator) ForEach(ctx context.Context, entries []*core.LogbookEntry, fn func([]*core.LogbookEntry) error) error {
	for i := 0; i < len(entries); i += it.batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := i + it.batchSize
		if end > len(entries) {
			end = len(entries)
		}

		if err := fn(entries[i:end]); err != nil {
			return err
		}
	}

	return nil
}
