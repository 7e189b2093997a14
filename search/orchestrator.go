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

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/ragkit/ai"
	"github.com/poiesic/ragkit/core"
	"golang.org/x/sync/errgroup"
)

// SemanticSearcher is the vector-search surface the orchestrator consumes.
type SemanticSearcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, threshold float64, filters map[string]string) ([]*core.SearchResult, error)
}

// LexicalSearcher is the term-search surface the orchestrator consumes.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int, filters map[string]string) ([]*core.SearchResult, error)
}

// ResultCache is the caching surface the orchestrator consumes.
type ResultCache interface {
	Get(fp core.Fingerprint, preimage string) (*core.CachedResult, bool)
	Put(fp core.Fingerprint, preimage, collection string, value *core.CachedResult)
}

// AnswerGenerator is the mediated generation surface the orchestrator
// consumes, normally the gateway.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Config holds the orchestrator's retrieval and generation tuning.
type Config struct {
	// SemanticWeight scales normalized semantic scores during fusion.
	SemanticWeight float64

	// LexicalWeight scales normalized lexical scores during fusion.
	LexicalWeight float64

	// SimilarityThreshold discards semantic matches below this cosine
	// similarity before fusion.
	SimilarityThreshold float64

	// Temperature is passed through to answer generation.
	Temperature float64

	// MaxTokens bounds generated answer length; 0 leaves it to the model.
	MaxTokens int
}

// DefaultConfig returns the standard hybrid retrieval tuning: semantic-heavy
// fusion with a moderate similarity cutoff.
func DefaultConfig() Config {
	return Config{
		SemanticWeight:      0.7,
		LexicalWeight:       0.3,
		SimilarityThreshold: 0.3,
		Temperature:         0.2,
		MaxTokens:           1024,
	}
}

// Validate checks the configuration. Weights need not sum to 1; callers may
// deliberately over- or under-weight, but negative weights are rejected.
func (c Config) Validate() error {
	if c.SemanticWeight < 0 || c.LexicalWeight < 0 {
		return ErrInvalidWeights
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

// QueryRequest describes one retrieval request.
type QueryRequest struct {
	// Text is the natural-language query.
	Text string

	// Collection restricts retrieval to documents whose metadata carries
	// this collection name. Empty means all collections.
	Collection string

	// TopK is the maximum number of fused results to return.
	TopK int

	// Filters are exact-match metadata constraints.
	Filters map[string]string

	// UseCache enables the fingerprint cache for this request. When false
	// the cache is neither consulted nor written.
	UseCache bool

	// GenerateAnswer requests an LLM answer grounded in the retrieved
	// passages.
	GenerateAnswer bool
}

// QueryResponse is the outcome of one retrieval request.
type QueryResponse struct {
	// Results is the fused ranking, best first.
	Results []*core.SearchResult

	// Answer is the generated answer, empty when generation was not
	// requested or failed.
	Answer string

	// CacheHit reports whether the response was served from the cache.
	CacheHit bool
}

// Orchestrator runs the full query pipeline: validation, cache lookup, query
// embedding, parallel semantic and lexical search, score fusion, optional
// answer generation, and cache population.
type Orchestrator struct {
	config   Config
	semantic SemanticSearcher
	lexical  LexicalSearcher
	embedder ai.Embedder
	cache    ResultCache     // nil disables caching entirely
	gateway  AnswerGenerator // nil disables answer generation
	monitor  QueryMonitor
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache attaches a result cache. Without one, every request runs the
// full pipeline.
func WithCache(cache ResultCache) Option {
	return func(o *Orchestrator) {
		o.cache = cache
	}
}

// WithGateway attaches the generation gateway. Without one, requests with
// GenerateAnswer set fail with ErrGenerationUnavailable.
func WithGateway(gateway AnswerGenerator) Option {
	return func(o *Orchestrator) {
		o.gateway = gateway
	}
}

// WithMonitor attaches a query monitor.
// Default is a no-op monitor.
func WithMonitor(monitor QueryMonitor) Option {
	return func(o *Orchestrator) {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		o.monitor = monitor
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// NewOrchestrator wires a query pipeline over the given indexes and embedder.
func NewOrchestrator(semantic SemanticSearcher, lexical LexicalSearcher, embedder ai.Embedder, config Config, opts ...Option) (*Orchestrator, error) {
	if semantic == nil {
		return nil, ErrSemanticIndexRequired
	}
	if lexical == nil {
		return nil, ErrLexicalIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		config:   config,
		semantic: semantic,
		lexical:  lexical,
		embedder: embedder,
		monitor:  noopMonitor{},
		logger:   slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Query executes one retrieval request end to end.
//
// Retrieval failures return a nil response. Generation failures are partial:
// the response still carries the retrieved results alongside a non-nil
// error, so callers can degrade to retrieval-only output.
func (o *Orchestrator) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if err := core.ValidateQuery(req.Text, req.TopK); err != nil {
		return nil, err
	}

	fp, preimage := core.FingerprintQuery(req.Text, req.Collection, req.TopK, req.Filters, core.SourceHybrid)

	if req.UseCache && o.cache != nil {
		if cached, found := o.cache.Get(fp, preimage); found {
			o.monitor.OnCacheHit(req.Text, req.Collection)
			o.logger.Debug("cache hit", "collection", req.Collection)
			return &QueryResponse{
				Results:  cached.Results,
				Answer:   cached.Answer,
				CacheHit: true,
			}, nil
		}
		o.monitor.OnCacheMiss(req.Text, req.Collection)
	}

	filters := effectiveFilters(req.Collection, req.Filters)

	var semantic, lexical []*core.SearchResult
	start := time.Now()

	// Both index searches are read-only; run them concurrently. The
	// embedding call feeds only the semantic side, so it rides in that
	// goroutine while the lexical search proceeds.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		embedding, err := o.embedder.EmbedText(gctx, req.Text)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
		semantic, err = o.semantic.Search(gctx, embedding, req.TopK, o.config.SimilarityThreshold, filters)
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lexical, err = o.lexical.Search(gctx, req.Text, req.TopK, filters)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := Merge(semantic, lexical, o.config.SemanticWeight, o.config.LexicalWeight, req.TopK)
	o.monitor.OnSearchComplete(req.Text, len(semantic), len(lexical), len(results), time.Since(start))

	resp := &QueryResponse{Results: results}

	var genErr error
	if req.GenerateAnswer {
		resp.Answer, genErr = o.generateAnswer(ctx, req.Text, results)
	}

	if req.UseCache && o.cache != nil {
		o.cache.Put(fp, preimage, req.Collection, &core.CachedResult{
			Results: results,
			Answer:  resp.Answer,
		})
	}

	if genErr != nil {
		// Partial success: retrieval stands, generation is reported
		// independently.
		return resp, fmt.Errorf("answer generation: %w", genErr)
	}
	return resp, nil
}

// generateAnswer builds a grounded prompt from the fused passages and runs
// it through the gateway.
func (o *Orchestrator) generateAnswer(ctx context.Context, query string, results []*core.SearchResult) (string, error) {
	if o.gateway == nil {
		return "", ErrGenerationUnavailable
	}

	start := time.Now()
	answer, err := o.gateway.Generate(ctx, buildPrompt(query, results), o.config.Temperature, o.config.MaxTokens)
	o.monitor.OnGenerationComplete(query, time.Since(start), err)
	if err != nil {
		o.logger.Warn("generation failed", "error", err)
		return "", err
	}
	return answer, nil
}

// buildPrompt renders the retrieved passages and the user question into a
// grounded generation prompt.
func buildPrompt(query string, results []*core.SearchResult) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\nContext:\n")
	if len(results) == 0 {
		b.WriteString("(no relevant passages found)\n")
	}
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Content)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}

// effectiveFilters folds the collection constraint into the metadata
// filters. The caller's map is never mutated.
func effectiveFilters(collection string, filters map[string]string) map[string]string {
	if collection == "" {
		return filters
	}
	merged := make(map[string]string, len(filters)+1)
	for k, v := range filters {
		merged[k] = v
	}
	merged[core.MetadataCollection] = collection
	return merged
}
