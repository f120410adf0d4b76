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


// Package storage provides the storage abstraction layer for ariel.
//
// It defines repository interfaces that decouple the retrieval and
// ingestion layers from the concrete backend. The production backend is
// PostgreSQL (storage/postgres); storage/memory provides an in-memory
// implementation for tests.
//
// Public constructors in backend packages return these interfaces rather
// than concrete types so that consumers never couple to backend specifics.
//
// All repository implementations must be safe for concurrent use and
// accept a context.Context for cancellation and timeouts. Failures are
// mapped onto the core error taxonomy: unreachable databases surface as
// *core.ConnectionError, driver-level failures as *core.QueryError.
package storage
