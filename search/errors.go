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

import "errors"

var (
	// ErrSemanticIndexRequired is returned when an orchestrator is constructed
	// without a semantic index.
	ErrSemanticIndexRequired = errors.New("semantic index is required")

	// ErrLexicalIndexRequired is returned when an orchestrator is constructed
	// without a lexical index.
	ErrLexicalIndexRequired = errors.New("lexical index is required")

	// ErrEmbedderRequired is returned when an orchestrator is constructed
	// without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrGenerationUnavailable is returned when answer generation is requested
	// but no gateway was configured.
	ErrGenerationUnavailable = errors.New("answer generation is not available")

	// ErrInvalidWeights is returned when a fusion weight is negative.
	ErrInvalidWeights = errors.New("fusion weights must be non-negative")

	// ErrInvalidThreshold is returned when the similarity threshold is outside [0, 1].
	ErrInvalidThreshold = errors.New("similarity threshold must be in [0, 1]")
)
