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


package core

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrInvalidQuery indicates query parameters failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmptyQuery indicates the query text is empty.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrInvalidTopK indicates a non-positive topK value.
	ErrInvalidTopK = errors.New("topK must be positive")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates the Content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")
)

// Downstream call errors
var (
	// ErrDimensionMismatch indicates a query vector whose length differs
	// from the index's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrTimeout indicates a gateway call exceeded its deadline.
	// The gateway slot is always released before this is surfaced.
	ErrTimeout = errors.New("request timed out")

	// ErrTransient indicates a downstream network or 5xx failure.
	// Retry policy belongs to the caller, not the gateway.
	ErrTransient = errors.New("transient downstream failure")

	// ErrAuthentication indicates a downstream credential failure.
	// Surfaced immediately, never retried.
	ErrAuthentication = errors.New("downstream authentication failed")
)

// DimensionError reports the exact mismatch between an index's configured
// dimension and a query vector's length. It unwraps to ErrDimensionMismatch.
type DimensionError struct {
	Want int // index dimension
	Got  int // query vector length
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index dimension %d, query vector length %d", e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }
