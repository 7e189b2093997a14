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


// Package index provides the two in-memory retrieval indexes of the query
// engine:
//
//   - SemanticIndex ranks documents by cosine similarity between a query
//     embedding and stored document embeddings.
//   - LexicalIndex ranks documents by BM25 over tokenized content.
//
// Both indexes accept incremental additions without rebuilding, replace
// documents wholesale by ID on re-ingestion, apply exact-match metadata
// filters, and break score ties by ascending document ID so that rankings
// are deterministic.
package index
