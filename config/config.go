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


package config

import (
	"fmt"
	"os"
	"time"

	"github.com/poiesic/ariel/core"
	"gopkg.in/yaml.v3"
)

// ModuleConfig configures one search module (keyword or semantic).
type ModuleConfig struct {
	Enabled             bool           `yaml:"enabled"`
	Provider            string         `yaml:"provider"`
	Model               string         `yaml:"model"`
	SimilarityThreshold float64        `yaml:"similarity_threshold"`
	MaxResults          int            `yaml:"max_results"`
	FusionK             float64        `yaml:"fusion_k"`
	Settings            map[string]any `yaml:"settings"`
}

// EnhancementConfig configures one enhancement module.
type EnhancementConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Provider  string         `yaml:"provider"`
	Model     string         `yaml:"model"`
	Models    []string       `yaml:"models"`
	Dimension int            `yaml:"dimension"`
	Settings  map[string]any `yaml:"settings"`
}

// PipelineConfig configures one search pipeline and enumerates which
// retrieval modules it draws from.
type PipelineConfig struct {
	Enabled          bool     `yaml:"enabled"`
	RetrievalModules []string `yaml:"retrieval_modules"`
	ContextBudget    int      `yaml:"context_budget"`
	EntryBudget      int      `yaml:"entry_budget"`
}

// WatchConfig tunes the continuous ingestion loop.
type WatchConfig struct {
	RequireInitialIngest   bool    `yaml:"require_initial_ingest"`
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures"`
	BackoffMultiplier      float64 `yaml:"backoff_multiplier"`
	MaxIntervalSeconds     int     `yaml:"max_interval_seconds"`
}

// IngestionConfig configures the source adapter and the poll scheduler.
type IngestionConfig struct {
	Adapter               string      `yaml:"adapter"`
	SourceSystem          string      `yaml:"source_system"`
	SourceURL             string      `yaml:"source_url"`
	PollIntervalSeconds   int         `yaml:"poll_interval_seconds"`
	ChunkDays             int         `yaml:"chunk_days"`
	RequestTimeoutSeconds int         `yaml:"request_timeout_seconds"`
	MaxRetries            int         `yaml:"max_retries"`
	RetryDelaySeconds     int         `yaml:"retry_delay_seconds"`
	Watch                 WatchConfig `yaml:"watch"`
}

// ReasoningConfig configures the external agent executor.
type ReasoningConfig struct {
	Provider            string  `yaml:"provider"`
	ModelID             string  `yaml:"model_id"`
	MaxIterations       int     `yaml:"max_iterations"`
	Temperature         float64 `yaml:"temperature"`
	ToolTimeoutSeconds  int     `yaml:"tool_timeout_seconds"`
	TotalTimeoutSeconds int     `yaml:"total_timeout_seconds"`
}

// Config is the root engine configuration.
type Config struct {
	Database struct {
		URI string `yaml:"uri"`
	} `yaml:"database"`

	SearchModules struct {
		Keyword  ModuleConfig `yaml:"keyword"`
		Semantic ModuleConfig `yaml:"semantic"`
	} `yaml:"search_modules"`

	EnhancementModules struct {
		TextEmbedding     EnhancementConfig `yaml:"text_embedding"`
		SemanticProcessor EnhancementConfig `yaml:"semantic_processor"`
	} `yaml:"enhancement_modules"`

	Pipelines struct {
		RAG   PipelineConfig `yaml:"rag"`
		Agent PipelineConfig `yaml:"agent"`
	} `yaml:"pipelines"`

	Ingestion IngestionConfig `yaml:"ingestion"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
}

// Load reads, expands, parses, and validates a YAML configuration file.
// Environment variables in the file are expanded before parsing, so
// secrets like database URIs can stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ConfigurationError{Reason: fmt.Sprintf("read config %s", path), Cause: err}
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

// Parse parses an already-expanded YAML document.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, &core.ConfigurationError{Reason: "parse config", Cause: err}
	}
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with every default applied and no modules
// enabled. Useful for tests and programmatic construction.
func Default() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func (c *Config) defaults() {
	if c.SearchModules.Keyword.MaxResults <= 0 {
		c.SearchModules.Keyword.MaxResults = 20
	}
	if c.SearchModules.Semantic.MaxResults <= 0 {
		c.SearchModules.Semantic.MaxResults = 20
	}
	if c.SearchModules.Semantic.SimilarityThreshold <= 0 {
		c.SearchModules.Semantic.SimilarityThreshold = 0.60
	}
	if c.SearchModules.Keyword.FusionK <= 0 {
		c.SearchModules.Keyword.FusionK = 60
	}
	if c.SearchModules.Semantic.FusionK <= 0 {
		c.SearchModules.Semantic.FusionK = 60
	}

	if c.Pipelines.RAG.ContextBudget <= 0 {
		c.Pipelines.RAG.ContextBudget = 12000
	}
	if c.Pipelines.RAG.EntryBudget <= 0 {
		c.Pipelines.RAG.EntryBudget = 2000
	}
	if len(c.Pipelines.RAG.RetrievalModules) == 0 {
		c.Pipelines.RAG.RetrievalModules = []string{"keyword", "semantic"}
	}

	if c.Ingestion.PollIntervalSeconds <= 0 {
		c.Ingestion.PollIntervalSeconds = 60
	}
	if c.Ingestion.ChunkDays <= 0 {
		c.Ingestion.ChunkDays = 7
	}
	if c.Ingestion.RequestTimeoutSeconds <= 0 {
		c.Ingestion.RequestTimeoutSeconds = 30
	}
	if c.Ingestion.MaxRetries <= 0 {
		c.Ingestion.MaxRetries = 3
	}
	if c.Ingestion.RetryDelaySeconds <= 0 {
		c.Ingestion.RetryDelaySeconds = 1
	}
	if c.Ingestion.Watch.MaxConsecutiveFailures <= 0 {
		c.Ingestion.Watch.MaxConsecutiveFailures = 5
	}
	if c.Ingestion.Watch.BackoffMultiplier <= 0 {
		c.Ingestion.Watch.BackoffMultiplier = 2
	}
	if c.Ingestion.Watch.MaxIntervalSeconds <= 0 {
		c.Ingestion.Watch.MaxIntervalSeconds = 300
	}

	if c.Reasoning.MaxIterations <= 0 {
		c.Reasoning.MaxIterations = 8
	}
	if c.Reasoning.ToolTimeoutSeconds <= 0 {
		c.Reasoning.ToolTimeoutSeconds = 30
	}
	if c.Reasoning.TotalTimeoutSeconds <= 0 {
		c.Reasoning.TotalTimeoutSeconds = 180
	}
}

// Validate checks cross-field consistency. It returns a
// *core.ConfigurationError describing the first violation found.
func (c *Config) Validate() error {
	if c.SearchModules.Semantic.Enabled && c.SearchModules.Semantic.Model == "" {
		return &core.ConfigurationError{Reason: "search_modules.semantic.model is required when semantic search is enabled"}
	}
	if c.EnhancementModules.TextEmbedding.Enabled {
		if len(c.EnhancementModules.TextEmbedding.EmbeddingModels()) == 0 {
			return &core.ConfigurationError{Reason: "enhancement_modules.text_embedding.models is required when text embedding is enabled"}
		}
		if c.EnhancementModules.TextEmbedding.Dimension <= 0 {
			return &core.ConfigurationError{Reason: "enhancement_modules.text_embedding.dimension is required when text embedding is enabled"}
		}
	}
	if c.Pipelines.RAG.Enabled {
		for _, mod := range c.Pipelines.RAG.RetrievalModules {
			if mod != "keyword" && mod != "semantic" {
				return &core.ConfigurationError{Reason: fmt.Sprintf("pipelines.rag.retrieval_modules: unknown module %q", mod)}
			}
		}
	}
	if c.SearchModules.Semantic.SimilarityThreshold < 0 || c.SearchModules.Semantic.SimilarityThreshold > 1 {
		return &core.ConfigurationError{Reason: "search_modules.semantic.similarity_threshold must be within [0, 1]"}
	}
	return nil
}

// EmbeddingModels returns the configured model list, falling back to the
// single Model field when the list form is not used.
func (e *EnhancementConfig) EmbeddingModels() []string {
	if len(e.Models) > 0 {
		return e.Models
	}
	if e.Model != "" {
		return []string{e.Model}
	}
	return nil
}

// PollInterval returns the base poll interval as a duration.
func (i *IngestionConfig) PollInterval() time.Duration {
	return time.Duration(i.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-request adapter timeout as a duration.
func (i *IngestionConfig) RequestTimeout() time.Duration {
	return time.Duration(i.RequestTimeoutSeconds) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (i *IngestionConfig) RetryDelay() time.Duration {
	return time.Duration(i.RetryDelaySeconds) * time.Second
}

// MaxInterval returns the backoff cap as a duration.
func (w *WatchConfig) MaxInterval() time.Duration {
	return time.Duration(w.MaxIntervalSeconds) * time.Second
}
