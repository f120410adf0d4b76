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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ariel/ai"
	"github.com/poiesic/ariel/core"
)

// NoContextAnswer is returned when there is nothing to answer from:
// an empty query or zero retrieved entries.
const NoContextAnswer = "I don't have enough information in the logbook to answer that."

const ragSystemPrompt = `You answer questions about operational logbook entries.
Use only the entries provided in the context. When a statement is supported by
an entry, cite it inline with its bracketed id, e.g. [#PLC-1042]. If the context
does not contain the answer, say so plainly.`

// RAGPipeline retrieves entries, assembles a bounded context window, and
// synthesizes an answer with citations.
type RAGPipeline struct {
	hybrid    *HybridRetriever
	assembler *ContextWindowAssembler
	generator ai.Generator
	logger    *slog.Logger
}

// NewRAGPipeline creates a RAG pipeline over the given fusion runner.
func NewRAGPipeline(hybrid *HybridRetriever, generator ai.Generator, totalBudget, entryBudget int) (*RAGPipeline, error) {
	if hybrid == nil {
		return nil, ErrNoRetrievers
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	return &RAGPipeline{
		hybrid:    hybrid,
		assembler: &ContextWindowAssembler{TotalBudget: totalBudget, EntryBudget: entryBudget},
		generator: generator,
		logger:    slog.Default().With("component", "rag-pipeline"),
	}, nil
}

// Answer runs retrieval, assembly, and generation for one query.
//
// An empty or whitespace-only query short-circuits to the canned
// no-context answer without touching retrieval or the LLM. Zero fused
// entries produce the same answer with the retrieval attempt still
// reflected in SearchModesUsed. A generation failure is converted into a
// visible error answer while the retrieved entries are kept: generation
// failure never discards retrieval results.
func (p *RAGPipeline) Answer(ctx context.Context, query Query, monitor SearchMonitor) (*core.PipelineResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query.Text)

	if strings.TrimSpace(query.Text) == "" {
		result := &core.PipelineResult{
			Entries: []*core.LogbookEntry{},
			Answer:  NoContextAnswer,
		}
		monitor.Finish(result)
		return result, nil
	}

	retrievalStart := time.Now()
	fused, modesUsed, err := p.hybrid.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	retrievalElapsed := time.Since(retrievalStart)
	monitor.AfterFusion(fused)

	if len(fused) == 0 {
		result := &core.PipelineResult{
			Entries:         []*core.LogbookEntry{},
			Answer:          NoContextAnswer,
			SearchModesUsed: modesUsed,
			Timings:         map[string]time.Duration{"retrieval": retrievalElapsed},
		}
		monitor.Finish(result)
		return result, nil
	}

	assembled := p.assembler.Assemble(fused)
	monitor.AfterAssembly(assembled)

	result := &core.PipelineResult{
		Entries:          assembled.Included,
		RetrievalCount:   len(fused),
		ContextTruncated: assembled.Truncated,
		SearchModesUsed:  modesUsed,
		Timings:          map[string]time.Duration{"retrieval": retrievalElapsed},
	}

	userPrompt := fmt.Sprintf("Logbook context:\n\n%s\n\nQuestion: %s", assembled.Text, query.Text)
	generationStart := time.Now()
	answer, genErr := p.generator.Generate(ctx, ragSystemPrompt, userPrompt)
	result.Timings["generation"] = time.Since(generationStart)
	if genErr != nil {
		p.logger.Error("answer generation failed, keeping retrieved entries", "err", genErr)
		result.Answer = fmt.Sprintf("Error generating answer: %v", genErr)
		monitor.Finish(result)
		return result, nil
	}

	result.Answer = answer
	result.Citations = ExtractCitations(answer)
	if len(result.Citations) == 0 {
		// An answer that cites nothing is assumed to have used everything
		// it was given.
		for _, entry := range assembled.Included {
			result.Citations = append(result.Citations, entry.EntryID)
		}
	}

	monitor.Finish(result)
	return result, nil
}
