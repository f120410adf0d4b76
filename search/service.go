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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ariel/core"
)

// Mode selects the search pipeline.
type Mode string

const (
	// ModeKeyword runs only the keyword retriever.
	ModeKeyword Mode = "keyword"
	// ModeSemantic runs only the semantic retriever.
	ModeSemantic Mode = "semantic"
	// ModeMulti runs all enabled retrievers and fuses their results.
	ModeMulti Mode = "multi"
	// ModeRAG runs hybrid retrieval plus answer synthesis.
	ModeRAG Mode = "rag"
)

// ParseMode maps a user-supplied mode string to a Mode. "auto" resolves
// to RAG when the RAG pipeline is enabled and to fused multi-retrieval
// otherwise. Unknown modes are a configuration error.
func ParseMode(raw string, ragEnabled bool) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "keyword":
		return ModeKeyword, nil
	case "semantic":
		return ModeSemantic, nil
	case "multi":
		return ModeMulti, nil
	case "rag":
		return ModeRAG, nil
	case "auto", "":
		if ragEnabled {
			return ModeRAG, nil
		}
		return ModeMulti, nil
	default:
		return "", &core.ConfigurationError{Reason: fmt.Sprintf("unsupported search mode %q", raw)}
	}
}

// Service routes queries to the pipeline selected by mode and enforces
// the per-operation timeout.
type Service struct {
	retrievers map[string]Retriever
	hybrid     *HybridRetriever
	rag        *RAGPipeline
	timeout    time.Duration
	monitor    SearchMonitor
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMonitor attaches a monitor receiving callbacks at each search stage.
func WithMonitor(monitor SearchMonitor) ServiceOption {
	return func(s *Service) {
		if monitor != nil {
			s.monitor = monitor
		}
	}
}

// WithTimeout sets the per-search timeout. Zero disables it.
func WithTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// NewService creates the mode-routing search service. The rag pipeline
// may be nil when the RAG mode is disabled in configuration.
func NewService(retrievers []Retriever, hybrid *HybridRetriever, rag *RAGPipeline, opts ...ServiceOption) (*Service, error) {
	if len(retrievers) == 0 {
		return nil, ErrNoRetrievers
	}

	byName := make(map[string]Retriever, len(retrievers))
	for _, r := range retrievers {
		byName[r.Name()] = r
	}

	s := &Service{
		retrievers: byName,
		hybrid:     hybrid,
		rag:        rag,
		monitor:    &noopMonitor{},
		logger:     slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search runs one query in the given mode.
//
// A timeout does not reach the caller as an error: the result carries an
// explanatory answer instead, and the typed timeout is logged.
func (s *Service) Search(ctx context.Context, mode Mode, query Query) (*core.PipelineResult, error) {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.search(ctx, mode, query)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		timeoutErr := &core.TimeoutError{Op: string(mode), Limit: s.timeout}
		s.logger.Warn("search timed out", "mode", mode, "query", query.Text, "err", timeoutErr)
		return &core.PipelineResult{
			Entries: []*core.LogbookEntry{},
			Answer:  fmt.Sprintf("Search timed out: %v", timeoutErr),
			Timings: map[string]time.Duration{"total": time.Since(start)},
		}, nil
	}
	if result != nil {
		if result.Timings == nil {
			result.Timings = make(map[string]time.Duration, 1)
		}
		result.Timings["total"] = time.Since(start)
	}
	return result, err
}

func (s *Service) search(ctx context.Context, mode Mode, query Query) (*core.PipelineResult, error) {
	switch mode {
	case ModeKeyword, ModeSemantic:
		return s.single(ctx, string(mode), query)

	case ModeMulti:
		if s.hybrid == nil {
			return nil, ErrNoRetrievers
		}
		fused, modesUsed, err := s.hybrid.Retrieve(ctx, query)
		if err != nil {
			return nil, err
		}
		s.monitor.AfterFusion(fused)

		assembler := &TopKAssembler{K: query.MaxResults}
		result := &core.PipelineResult{
			Entries:         assembler.Assemble(fused),
			RetrievalCount:  len(fused),
			SearchModesUsed: modesUsed,
		}
		s.monitor.Finish(result)
		return result, nil

	case ModeRAG:
		if s.rag == nil {
			return nil, &core.ModuleNotEnabledError{Module: "rag"}
		}
		return s.rag.Answer(ctx, query, s.monitor)

	default:
		return nil, &core.ConfigurationError{Reason: fmt.Sprintf("unsupported search mode %q", mode)}
	}
}

// single runs one named retriever and packages its hits directly.
func (s *Service) single(ctx context.Context, name string, query Query) (*core.PipelineResult, error) {
	retriever, ok := s.retrievers[name]
	if !ok {
		return nil, &core.ModuleNotEnabledError{Module: name}
	}

	s.monitor.Start(query.Text)
	hits, err := retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	s.monitor.AfterRetrieval(name, hits)

	entries := make([]*core.LogbookEntry, len(hits))
	for i, hit := range hits {
		entries[i] = hit.Entry
	}

	result := &core.PipelineResult{
		Entries:         entries,
		RetrievalCount:  len(hits),
		SearchModesUsed: []string{name},
	}
	s.monitor.Finish(result)
	return result, nil
}
