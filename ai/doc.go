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


// Package ai provides abstractions for the AI services used by ariel.
//
// Two capabilities are needed: vector embeddings (semantic retrieval and
// the text_embedding enhancement module) and chat completion (RAG answer
// synthesis and the semantic_processor summarization module). The package
// defines interfaces only; ai/openai implements them against any
// OpenAI-compatible API via langchaingo, and ai/mock provides test
// doubles.
//
// Public constructors in implementation packages return these interfaces
// to prevent coupling to a concrete provider.
package ai
