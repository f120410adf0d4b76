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

	"github.com/poiesic/ariel/core"
)

// Module is a per-entry enrichment step applied by the scheduler after an
// entry has been upserted. Implementations must be safe for concurrent
// use; the scheduler processes entries on a worker pool.
type Module interface {
	// Name is the module's configuration key, e.g. "text_embedding".
	// It is also the key under which completion status is recorded in
	// the entry's enhancement map.
	Name() string

	// Process enriches a single entry. An error marks the (entry, module)
	// pair failed without aborting the run.
	Process(ctx context.Context, entry *core.LogbookEntry) error
}
