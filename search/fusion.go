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


package search

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ariel/core"
)

// DefaultFusionK is the reference RRF constant. Smaller values bias the
// fused score more strongly toward top-ranked hits.
const DefaultFusionK = 60

// Fuse merges ranked hit lists via Reciprocal Rank Fusion. Each distinct
// entry scores the sum of 1/(fusionK + rank) over every list it appears
// in, rank being its 1-based position within that list. Output is sorted
// by combined score descending and truncated to maxResults.
func Fuse(lists [][]*Hit, fusionK, maxResults int) []*core.FusedHit {
	if fusionK <= 0 {
		fusionK = DefaultFusionK
	}

	scores := make(map[string]float64)
	entries := make(map[string]*core.LogbookEntry)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, hit := range list {
			id := hit.Entry.EntryID
			if _, seen := scores[id]; !seen {
				order = append(order, id)
				entries[id] = hit.Entry
			}
			scores[id] += 1.0 / float64(fusionK+rank+1)
		}
	}

	fused := make([]*core.FusedHit, 0, len(order))
	for _, id := range order {
		fused = append(fused, &core.FusedHit{Entry: entries[id], Score: scores[id]})
	}

	// Stable sort keeps first-seen order among exact ties.
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	if maxResults > 0 && len(fused) > maxResults {
		fused = fused[:maxResults]
	}
	return fused
}

// HybridRetriever runs every enabled retriever concurrently and fuses
// their ranked lists. A retriever that fails contributes an empty list
// (logged, non-fatal); only when every retriever fails does the run
// surface an error.
type HybridRetriever struct {
	retrievers []Retriever
	fusionK    int
	pool       *ants.Pool
	logger     *slog.Logger
}

// NewHybridRetriever creates a fusion runner over the given retrievers.
func NewHybridRetriever(retrievers []Retriever, fusionK int) (*HybridRetriever, error) {
	if len(retrievers) == 0 {
		return nil, ErrNoRetrievers
	}

	poolSize := len(retrievers)
	if cpus := runtime.NumCPU(); poolSize > cpus {
		poolSize = cpus
	}
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &HybridRetriever{
		retrievers: retrievers,
		fusionK:    fusionK,
		pool:       pool,
		logger:     slog.Default().With("component", "hybrid-retriever"),
	}, nil
}

// Retrieve fans the query out to every retriever, waits for all of them,
// and fuses the results. ModesUsed reports which retrievers returned
// successfully.
func (h *HybridRetriever) Retrieve(ctx context.Context, query Query) ([]*core.FusedHit, []string, error) {
	lists := make([][]*Hit, len(h.retrievers))
	errs := make([]error, len(h.retrievers))

	var wg sync.WaitGroup
	for i, retriever := range h.retrievers {
		wg.Add(1)
		if submitErr := h.pool.Submit(func() {
			defer wg.Done()
			hits, err := retriever.Retrieve(ctx, query)
			if err != nil {
				h.logger.Warn("retriever failed, treating as empty", "retriever", retriever.Name(), "err", err)
				errs[i] = err
				return
			}
			lists[i] = hits
		}); submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	modesUsed := make([]string, 0, len(h.retrievers))
	failures := 0
	for i, retriever := range h.retrievers {
		if errs[i] != nil {
			failures++
			continue
		}
		modesUsed = append(modesUsed, retriever.Name())
	}

	if failures == len(h.retrievers) {
		return nil, nil, &core.ExecutionError{
			Mode:  "multi",
			Query: query.Text,
			Cause: errs[0],
		}
	}

	fused := Fuse(lists, h.fusionK, query.MaxResults)
	return fused, modesUsed, nil
}

// Release releases the worker pool.
func (h *HybridRetriever) Release() {
	if h.pool != nil {
		h.pool.Release()
	}
}
