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


package ingestion

import (
	"context"
	"time"

	"github.com/poiesic/ariel/core"
)

// EntryStream is a lazy, finite sequence of logbook entries produced by
// an adapter. A stream is consumed by a single poll and restarted fresh
// on the next poll.
type EntryStream interface {
	// Next returns the next entry, or ErrEndOfStream when the stream is
	// exhausted. Any other error is a hard adapter failure.
	Next(ctx context.Context) (*core.LogbookEntry, error)

	// Close releases resources held by the stream.
	Close() error
}

// Adapter connects the scheduler to an external source system.
type Adapter interface {
	// Name identifies the adapter kind, e.g. "http" or "file".
	Name() string

	// Stream opens a stream of entries logged after since. A nil since
	// requests the full history.
	Stream(ctx context.Context, since *time.Time) (EntryStream, error)
}

// sliceStream adapts an in-memory slice of entries to the EntryStream
// interface. Used by the file adapter and by tests.
type sliceStream struct {
	entries []*core.LogbookEntry
	pos     int
}

func (s *sliceStream) Next(ctx context.Context) (*core.LogbookEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.entries) {
		return nil, ErrEndOfStream
	}
	entry := s.entries[s.pos]
	s.pos++
	return entry, nil
}

func (s *sliceStream) Close() error {
	return nil
}
