package index

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/ragkit/core"
)

// SemanticIndex stores document embeddings and ranks documents by cosine
// similarity against a query embedding. All operations are safe for
// concurrent use; searches are read-only and may run in parallel.
type SemanticIndex struct {
	mu        sync.RWMutex
	dimension int
	docs      map[string]*core.Document
	logger    *slog.Logger
}

// SemanticOption configures a SemanticIndex.
type SemanticOption func(*SemanticIndex)

// WithSemanticLogger sets a custom logger.
// Default is slog.Default().
func WithSemanticLogger(logger *slog.Logger) SemanticOption {
	return func(idx *SemanticIndex) {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger
	}
}

// NewSemanticIndex creates an empty semantic index for embeddings of the
// given dimension.
func NewSemanticIndex(dimension int, opts ...SemanticOption) (*SemanticIndex, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	idx := &SemanticIndex{
		dimension: dimension,
		docs:      make(map[string]*core.Document),
		logger:    slog.Default().With("component", "semantic-index"),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Dimension returns the configured embedding dimension.
func (idx *SemanticIndex) Dimension() int {
	return idx.dimension
}

// Len returns the number of indexed documents.
func (idx *SemanticIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Index adds documents to the index. A document whose ID is already present
// is replaced wholesale. Every document must carry an embedding of the
// index's dimension.
func (idx *SemanticIndex) Index(ctx context.Context, docs ...*core.Document) error {
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
		if len(doc.Embedding) == 0 {
			return ErrMissingEmbedding
		}
		if len(doc.Embedding) != idx.dimension {
			return &core.DimensionError{Want: idx.dimension, Got: len(doc.Embedding)}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, doc := range docs {
		idx.docs[doc.ID] = doc
	}
	return nil
}

// Remove deletes documents by ID. Missing IDs are ignored.
func (idx *SemanticIndex) Remove(ctx context.Context, ids ...string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		delete(idx.docs, id)
	}
}

// Search returns up to topK filter-matching documents whose cosine
// similarity to queryEmbedding is at least threshold, ordered by descending
// similarity with ties broken by ascending document ID.
//
// Returns a core.DimensionError when the query vector's length differs from
// the index's configured dimension; no partial results are produced.
func (idx *SemanticIndex) Search(ctx context.Context, queryEmbedding []float32, topK int, threshold float64, filters map[string]string) ([]*core.SearchResult, error) {
	if len(queryEmbedding) != idx.dimension {
		return nil, &core.DimensionError{Want: idx.dimension, Got: len(queryEmbedding)}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]*core.SearchResult, 0, topK)
	for _, doc := range idx.docs {
		if !matchesFilters(doc.Metadata, filters) {
			continue
		}

		similarity := cosineSimilarity(queryEmbedding, doc.Embedding)
		if similarity < threshold {
			continue
		}

		results = append(results, &core.SearchResult{
			DocumentID: doc.ID,
			Content:    doc.Content,
			Metadata:   doc.Metadata,
			Score:      similarity,
			Source:     core.SourceSemantic,
		})
	}

	sortByScoreDesc(results)
	if len(results) > topK {
		results = results[:topK]
	}

	idx.logger.Debug("semantic search complete", "candidates", len(idx.docs), "hits", len(results))
	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScoreDesc orders results by descending score, breaking ties by
// ascending document ID for deterministic rankings.
func sortByScoreDesc(results []*core.SearchResult) {
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return strings.Compare(a.DocumentID, b.DocumentID)
	})
}
