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


package ariel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ariel/ai"
	"github.com/poiesic/ariel/ai/openai"
	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
	"github.com/poiesic/ariel/ingestion"
	"github.com/poiesic/ariel/migrate"
	"github.com/poiesic/ariel/reembed"
	"github.com/poiesic/ariel/search"
	"github.com/poiesic/ariel/storage"
	"github.com/poiesic/ariel/storage/postgres"
)

// Service is the engine façade. It owns the storage backend, the
// repositories and the AI provider, and constructs the ingestion and
// search pipelines from one configuration.
type Service struct {
	cfg        *config.Config
	backend    *postgres.Backend
	entries    storage.EntryRepository
	runs       storage.RunRepository
	embeddings storage.EmbeddingRepository
	provider   ai.Provider
	embedders  map[string]ai.Embedder
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEmbedders overrides the per-model embedder set. Without this
// option every configured embedding model uses the provider's embedder.
func WithEmbedders(embedders map[string]ai.Embedder) ServiceOption {
	return func(s *Service) {
		s.embedders = embedders
	}
}

// WithServiceLogger sets the façade logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open connects to Postgres and assembles a Service from configuration.
// The caller owns the returned Service and must Close it.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	if cfg.Database.URI == "" {
		return nil, &core.ConfigurationError{Reason: "database.uri is required"}
	}

	backend, err := postgres.OpenBackend(ctx, cfg.Database.URI)
	if err != nil {
		return nil, err
	}

	entries, err := postgres.NewEntryRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	runs, err := postgres.NewRunRepository(backend)
	if err != nil {
		entries.Close()
		backend.Close()
		return nil, err
	}
	embeddings, err := postgres.NewEmbeddingRepository(backend)
	if err != nil {
		runs.Close()
		entries.Close()
		backend.Close()
		return nil, err
	}

	provider, err := openai.NewProvider(providerConfig(cfg))
	if err != nil {
		embeddings.Close()
		runs.Close()
		entries.Close()
		backend.Close()
		return nil, err
	}

	embedders, err := buildEmbedders(cfg)
	if err != nil {
		provider.Close()
		embeddings.Close()
		runs.Close()
		entries.Close()
		backend.Close()
		return nil, err
	}

	svc, err := NewService(cfg, entries, runs, embeddings, provider, WithEmbedders(embedders))
	if err != nil {
		provider.Close()
		embeddings.Close()
		runs.Close()
		entries.Close()
		backend.Close()
		return nil, err
	}
	svc.backend = backend
	return svc, nil
}

// NewService assembles a Service from already-constructed components.
// Used by Open and directly by tests with in-memory repositories.
func NewService(cfg *config.Config, entries storage.EntryRepository, runs storage.RunRepository, embeddings storage.EmbeddingRepository, provider ai.Provider, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, &core.ConfigurationError{Reason: "configuration required"}
	}

	s := &Service{
		cfg:        cfg,
		entries:    entries,
		runs:       runs,
		embeddings: embeddings,
		provider:   provider,
		logger:     slog.Default().With("component", "service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.embedders == nil && provider != nil {
		s.embedders = make(map[string]ai.Embedder)
		for _, model := range cfg.EnhancementModules.TextEmbedding.EmbeddingModels() {
			s.embedders[model] = provider.Embedder()
		}
		if model := cfg.SearchModules.Semantic.Model; model != "" {
			if _, ok := s.embedders[model]; !ok {
				s.embedders[model] = provider.Embedder()
			}
		}
	}
	return s, nil
}

// providerConfig derives the AI provider settings from the engine
// configuration. Hosts come from module settings and fall back to the
// local default.
func providerConfig(cfg *config.Config) *ai.Config {
	var opts []ai.ConfigOption

	if host := settingString(cfg.EnhancementModules.TextEmbedding.Settings, "host"); host != "" {
		opts = append(opts, ai.WithEmbeddingHost(host))
	}
	if host := settingString(cfg.EnhancementModules.SemanticProcessor.Settings, "host"); host != "" {
		opts = append(opts, ai.WithGeneratorHost(host))
	}
	if models := cfg.EnhancementModules.TextEmbedding.EmbeddingModels(); len(models) > 0 {
		opts = append(opts, ai.WithEmbeddingModel(models[0]))
	} else if model := cfg.SearchModules.Semantic.Model; model != "" {
		opts = append(opts, ai.WithEmbeddingModel(model))
	}
	if model := cfg.EnhancementModules.SemanticProcessor.Model; model != "" {
		opts = append(opts, ai.WithGeneratorModel(model))
	}

	return ai.NewConfig(opts...)
}

// buildEmbedders creates one embedder per configured embedding model,
// so multi-model setups hit the right endpoint per table.
func buildEmbedders(cfg *config.Config) (map[string]ai.Embedder, error) {
	host := settingString(cfg.EnhancementModules.TextEmbedding.Settings, "host")

	models := cfg.EnhancementModules.TextEmbedding.EmbeddingModels()
	if model := cfg.SearchModules.Semantic.Model; model != "" {
		found := false
		for _, m := range models {
			if m == model {
				found = true
				break
			}
		}
		if !found {
			models = append(models, model)
		}
	}

	embedders := make(map[string]ai.Embedder, len(models))
	for _, model := range models {
		var opts []ai.ConfigOption
		if host != "" {
			opts = append(opts, ai.WithEmbeddingHost(host))
		}
		opts = append(opts, ai.WithEmbeddingModel(model))

		embedder, err := openai.NewEmbedder(ai.NewConfig(opts...))
		if err != nil {
			return nil, fmt.Errorf("create embedder for model %s: %w", model, err)
		}
		embedders[model] = embedder
	}
	return embedders, nil
}

func settingString(settings map[string]any, key string) string {
	if settings == nil {
		return ""
	}
	if v, ok := settings[key].(string); ok {
		return v
	}
	return ""
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// EntryRepository exposes the entry repository.
func (s *Service) EntryRepository() storage.EntryRepository {
	return s.entries
}

// Migrate applies all pending schema migrations in dependency order.
func (s *Service) Migrate(ctx context.Context) error {
	if s.backend == nil {
		return &core.ConfigurationError{Reason: "migrations require a postgres backend"}
	}
	runner := migrate.NewRunner(migrate.ForConfig(s.cfg), s.logger)
	return runner.Apply(ctx, s.backend.Pool())
}

// EnsureEmbeddingTable creates the per-model embedding table if it does
// not exist yet.
func (s *Service) EnsureEmbeddingTable(ctx context.Context, model string, dimension int) error {
	if s.backend == nil {
		return &core.ConfigurationError{Reason: "migrations require a postgres backend"}
	}
	runner := migrate.NewRunner([]migrate.Migration{migrate.EmbeddingTable(model, dimension)}, s.logger)
	return runner.Apply(ctx, s.backend.Pool())
}

// adapter builds the configured source adapter. name overrides the
// configured adapter kind when non-empty.
func (s *Service) adapter(name string) (ingestion.Adapter, error) {
	kind := name
	if kind == "" {
		kind = s.cfg.Ingestion.Adapter
	}
	switch kind {
	case "http", "":
		return ingestion.NewHTTPAdapter(&s.cfg.Ingestion)
	case "file":
		return ingestion.NewFileAdapter(s.cfg.Ingestion.SourceURL, s.cfg.Ingestion.SourceSystem)
	default:
		return nil, &core.ConfigurationError{Reason: fmt.Sprintf("unknown ingestion adapter %q", kind)}
	}
}

// enhancementModules instantiates the enabled enhancement modules in
// processing order.
func (s *Service) enhancementModules() ([]ingestion.Module, error) {
	var modules []ingestion.Module

	if s.cfg.EnhancementModules.TextEmbedding.Enabled {
		mod, err := ingestion.NewEmbeddingModule(s.embeddings, s.embedders)
		if err != nil {
			return nil, err
		}
		modules = append(modules, mod)
	}
	if s.cfg.EnhancementModules.SemanticProcessor.Enabled {
		mod, err := ingestion.NewSummaryModule(s.entries, s.provider.Generator())
		if err != nil {
			return nil, err
		}
		modules = append(modules, mod)
	}
	return modules, nil
}

// NewScheduler builds the poll scheduler for the configured source.
// adapterName overrides the configured adapter kind when non-empty.
func (s *Service) NewScheduler(adapterName string, opts ...ingestion.Option) (*ingestion.Scheduler, error) {
	adapter, err := s.adapter(adapterName)
	if err != nil {
		return nil, err
	}
	modules, err := s.enhancementModules()
	if err != nil {
		return nil, err
	}
	return ingestion.NewScheduler(s.entries, s.runs, adapter, modules, &s.cfg.Ingestion, opts...)
}

// NewSearcher builds the mode-routing search service from the enabled
// search modules and pipelines.
func (s *Service) NewSearcher(opts ...search.ServiceOption) (*search.Service, error) {
	var retrievers []search.Retriever

	if s.cfg.SearchModules.Keyword.Enabled {
		kw, err := search.NewKeywordRetriever(s.entries, s.cfg.SearchModules.Keyword)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, kw)
	}
	if s.cfg.SearchModules.Semantic.Enabled {
		model := s.cfg.SearchModules.Semantic.Model
		embedder, ok := s.embedders[model]
		if !ok {
			return nil, &core.ConfigurationError{Reason: fmt.Sprintf("no embedder configured for model %q", model)}
		}
		sem, err := search.NewSemanticRetriever(s.embeddings, embedder, s.cfg.SearchModules.Semantic)
		if err != nil {
			return nil, err
		}
		retrievers = append(retrievers, sem)
	}
	if len(retrievers) == 0 {
		return nil, &core.ConfigurationError{Reason: "no search modules enabled"}
	}

	hybrid, err := search.NewHybridRetriever(retrievers, int(s.cfg.SearchModules.Keyword.FusionK))
	if err != nil {
		return nil, err
	}

	var rag *search.RAGPipeline
	if s.cfg.Pipelines.RAG.Enabled {
		rag, err = search.NewRAGPipeline(hybrid, s.provider.Generator(),
			s.cfg.Pipelines.RAG.ContextBudget, s.cfg.Pipelines.RAG.EntryBudget)
		if err != nil {
			return nil, err
		}
	}

	return search.NewService(retrievers, hybrid, rag, opts...)
}

// NewReembedder builds a backfill runner for one embedding model.
func (s *Service) NewReembedder(model string, rcfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	embedder, ok := s.embedders[model]
	if !ok {
		return nil, &core.ConfigurationError{Reason: fmt.Sprintf("no embedder configured for model %q", model)}
	}
	return reembed.NewReembedder(s.entries, s.embeddings, embedder, model, rcfg, progress)
}

// Enhance reruns one enhancement module over every entry that lacks a
// successful status for it. Failures are recorded per entry and do not
// stop the pass. It returns processed and failed counts.
func (s *Service) Enhance(ctx context.Context, moduleName string) (processed, failed int, err error) {
	modules, err := s.enhancementModules()
	if err != nil {
		return 0, 0, err
	}
	var module ingestion.Module
	for _, m := range modules {
		if m.Name() == moduleName {
			module = m
			break
		}
	}
	if module == nil {
		return 0, 0, &core.ModuleNotEnabledError{Module: moduleName}
	}

	total, err := s.entries.CountEntries(ctx)
	if err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}

	targets, err := s.entries.GetIncompleteEntries(ctx, moduleName, int(total))
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range targets {
		select {
		case <-ctx.Done():
			return processed, failed, ctx.Err()
		default:
		}

		if procErr := module.Process(ctx, entry); procErr != nil {
			failed++
			s.logger.Warn("enhancement failed", "module", moduleName, "entry", entry.EntryID, "err", procErr)
			if markErr := s.entries.MarkEnhancementFailed(ctx, entry.EntryID, moduleName, procErr.Error()); markErr != nil {
				return processed, failed, markErr
			}
			continue
		}
		if markErr := s.entries.MarkEnhancementComplete(ctx, entry.EntryID, moduleName); markErr != nil {
			return processed, failed, markErr
		}
		processed++
	}
	return processed, failed, nil
}

// Status summarizes the stored corpus and the most recent successful
// ingestion run.
type Status struct {
	Entries         int64
	EmbeddingTables []core.EmbeddingTableInfo
	LastRun         *core.IngestionRun
}

// Status reports entry count, embedding table sizes, and the last
// successful run for the configured source system.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	count, err := s.entries.CountEntries(ctx)
	if err != nil {
		return nil, err
	}

	tables, err := s.embeddings.GetEmbeddingTables(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{Entries: count, EmbeddingTables: tables}
	if source := s.cfg.Ingestion.SourceSystem; source != "" {
		lastRun, runErr := s.runs.GetLastSuccessfulRun(ctx, source)
		if runErr != nil {
			return nil, runErr
		}
		status.LastRun = lastRun
	}
	return status, nil
}

// SearchTimeout derives the search service timeout from the reasoning
// tool timeout so CLI searches and agent tool calls share one bound.
func (s *Service) SearchTimeout() time.Duration {
	return time.Duration(s.cfg.Reasoning.ToolTimeoutSeconds) * time.Second
}

// Close releases every owned component in reverse construction order.
// The first error is returned after every component had its chance to
// close.
func (s *Service) Close() error {
	var firstErr error

	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			firstErr = err
		}
	}
	for _, repo := range []io.Closer{s.embeddings, s.runs, s.entries} {
		if repo == nil {
			continue
		}
		if err := repo.Close(); err != nil {
			s.logger.Error("error closing repository", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			s.logger.Error("error closing backend", "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
