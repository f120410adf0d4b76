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


package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
)

// Config carries the runtime parameters an executor needs to drive its
// reasoning loop against the logbook tools.
type Config struct {
	// Provider names the LLM provider the executor should use.
	Provider string

	// ModelID is the provider-specific model identifier.
	ModelID string

	// MaxIterations bounds the executor's tool-call loop.
	MaxIterations int

	// Temperature is passed through to the reasoning model.
	Temperature float64

	// ToolTimeout bounds each individual tool call.
	ToolTimeout time.Duration

	// TotalTimeout bounds the whole reasoning run.
	TotalTimeout time.Duration
}

// NewConfig builds an executor config from the reasoning section of the
// engine configuration, converting second counts into durations.
func NewConfig(rc config.ReasoningConfig) Config {
	return Config{
		Provider:      rc.Provider,
		ModelID:       rc.ModelID,
		MaxIterations: rc.MaxIterations,
		Temperature:   rc.Temperature,
		ToolTimeout:   time.Duration(rc.ToolTimeoutSeconds) * time.Second,
		TotalTimeout:  time.Duration(rc.TotalTimeoutSeconds) * time.Second,
	}
}

// Validate checks the config for values an executor cannot work with.
func (c Config) Validate() error {
	if c.ModelID == "" {
		return &core.ConfigurationError{Reason: "reasoning model_id required"}
	}
	if c.MaxIterations <= 0 {
		return &core.ConfigurationError{Reason: fmt.Sprintf("reasoning max_iterations must be positive, got %d", c.MaxIterations)}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &core.ConfigurationError{Reason: fmt.Sprintf("reasoning temperature must be in [0, 2], got %g", c.Temperature)}
	}
	return nil
}

// Result is what an executor hands back after a reasoning run.
type Result struct {
	// Answer is the final synthesized answer.
	Answer string

	// Entries are the logbook entries the executor retrieved.
	Entries []*core.LogbookEntry

	// CitedEntryIDs are the entry IDs cited in Answer, in first-mention
	// order and de-duplicated.
	CitedEntryIDs []string

	// ToolsUsed lists the names of the tools invoked, in call order.
	ToolsUsed []string
}

// Executor runs a reasoning loop over the logbook tools. Implementations
// live outside this module.
type Executor interface {
	Execute(ctx context.Context, question string) (*Result, error)
}
