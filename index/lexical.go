package index

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/poiesic/ragkit/core"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// lexicalDoc holds the per-document state needed for BM25 scoring.
type lexicalDoc struct {
	doc      *core.Document
	termFreq map[string]int
	length   int
}

// LexicalIndex stores tokenized documents and ranks them with BM25.
// All operations are safe for concurrent use; searches are read-only and may
// run in parallel.
type LexicalIndex struct {
	mu       sync.RWMutex
	k1       float64
	b        float64
	docs     map[string]*lexicalDoc
	docFreq  map[string]int // number of documents containing each term
	totalLen int
	logger   *slog.Logger
}

// LexicalOption configures a LexicalIndex.
type LexicalOption func(*LexicalIndex)

// WithBM25Params overrides the default k1 and b parameters.
func WithBM25Params(k1, b float64) LexicalOption {
	return func(idx *LexicalIndex) {
		idx.k1 = k1
		idx.b = b
	}
}

// WithLexicalLogger sets a custom logger.
// Default is slog.Default().
func WithLexicalLogger(logger *slog.Logger) LexicalOption {
	return func(idx *LexicalIndex) {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger
	}
}

// NewLexicalIndex creates an empty BM25 index with k1=1.5 and b=0.75 unless
// overridden.
func NewLexicalIndex(opts ...LexicalOption) (*LexicalIndex, error) {
	idx := &LexicalIndex{
		k1:      DefaultK1,
		b:       DefaultB,
		docs:    make(map[string]*lexicalDoc),
		docFreq: make(map[string]int),
		logger:  slog.Default().With("component", "lexical-index"),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.k1 < 0 || idx.b < 0 {
		return nil, ErrInvalidBM25Params
	}
	return idx, nil
}

// Len returns the number of indexed documents.
func (idx *LexicalIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Index adds documents to the index. A document whose ID is already present
// is replaced wholesale.
func (idx *LexicalIndex) Index(ctx context.Context, docs ...*core.Document) error {
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, doc := range docs {
		idx.removeLocked(doc.ID)

		tokens := Tokenize(doc.Content)
		termFreq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			termFreq[tok]++
		}
		for term := range termFreq {
			idx.docFreq[term]++
		}

		idx.docs[doc.ID] = &lexicalDoc{
			doc:      doc,
			termFreq: termFreq,
			length:   len(tokens),
		}
		idx.totalLen += len(tokens)
	}
	return nil
}

// Remove deletes documents by ID. Missing IDs are ignored.
func (idx *LexicalIndex) Remove(ctx context.Context, ids ...string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		idx.removeLocked(id)
	}
}

// removeLocked unindexes one document. Callers must hold the write lock.
func (idx *LexicalIndex) removeLocked(id string) {
	ld, ok := idx.docs[id]
	if !ok {
		return
	}
	for term := range ld.termFreq {
		idx.docFreq[term]--
		if idx.docFreq[term] <= 0 {
			delete(idx.docFreq, term)
		}
	}
	idx.totalLen -= ld.length
	delete(idx.docs, id)
}

// Search tokenizes queryText with the ingestion tokenizer and returns up to
// topK filter-matching documents ordered by descending BM25 score, ties
// broken by ascending document ID. Documents sharing no terms with the query
// are excluded rather than scored zero.
func (idx *LexicalIndex) Search(ctx context.Context, queryText string, topK int, filters map[string]string) ([]*core.SearchResult, error) {
	queryTerms := Tokenize(queryText)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 || len(queryTerms) == 0 {
		return []*core.SearchResult{}, nil
	}
	avgLen := float64(idx.totalLen) / float64(n)

	// IDF per distinct query term, computed over the whole corpus.
	idf := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		if _, done := idf[term]; done {
			continue
		}
		df := idx.docFreq[term]
		idf[term] = math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
	}

	results := make([]*core.SearchResult, 0, topK)
	for _, ld := range idx.docs {
		if !matchesFilters(ld.doc.Metadata, filters) {
			continue
		}

		var score float64
		overlap := false
		for term, termIDF := range idf {
			tf := ld.termFreq[term]
			if tf == 0 {
				continue
			}
			overlap = true
			norm := 1 - idx.b + idx.b*float64(ld.length)/avgLen
			score += termIDF * float64(tf) * (idx.k1 + 1) / (float64(tf) + idx.k1*norm)
		}
		if !overlap {
			continue
		}

		results = append(results, &core.SearchResult{
			DocumentID: ld.doc.ID,
			Content:    ld.doc.Content,
			Metadata:   ld.doc.Metadata,
			Score:      score,
			Source:     core.SourceLexical,
		})
	}

	sortByScoreDesc(results)
	if len(results) > topK {
		results = results[:topK]
	}

	idx.logger.Debug("lexical search complete", "queryTerms", len(queryTerms), "hits", len(results))
	return results, nil
}
