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


package index

import "errors"

var (
	// ErrInvalidDimension is returned when an index is created with a
	// non-positive embedding dimension.
	ErrInvalidDimension = errors.New("index dimension must be positive")

	// ErrMissingEmbedding is returned when a document without an embedding
	// is submitted to the semantic index.
	ErrMissingEmbedding = errors.New("document has no embedding")

	// ErrInvalidBM25Params is returned when BM25 parameters are negative.
	ErrInvalidBM25Params = errors.New("BM25 parameters must be non-negative")
)
