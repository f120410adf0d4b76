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


// Package search provides hybrid retrieval over logbook entries.
//
// The retrieval layer combines:
//   - Keyword retrieval using boolean/phrase full-text queries
//   - Semantic retrieval using vector embeddings
//   - Reciprocal Rank Fusion to merge ranked lists from both
//
// On top of retrieval sit the assemblers (top-k pass-through and a
// budgeted context window) and the RAG pipeline, which synthesizes an
// answer with citations from the assembled context. The Service type
// routes between the supported search modes and enforces timeouts.
package search
