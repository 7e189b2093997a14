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


// Package ragkit assembles the retrieval-augmented query engine: hybrid
// semantic and lexical search over durable document collections, a
// fingerprint result cache, and rate-limited answer generation.
package ragkit

import (
	"context"
	"log/slog"

	"github.com/poiesic/ragkit/ai"
	"github.com/poiesic/ragkit/ai/openai"
	"github.com/poiesic/ragkit/cache"
	"github.com/poiesic/ragkit/core"
	"github.com/poiesic/ragkit/gateway"
	"github.com/poiesic/ragkit/index"
	"github.com/poiesic/ragkit/ingestion"
	"github.com/poiesic/ragkit/search"
	"github.com/poiesic/ragkit/storage"
	"github.com/poiesic/ragkit/storage/badger"
)

// DefaultDimension matches the default embedding model's output size.
const DefaultDimension = 768

// Engine is the top-level facade: it owns the storage backend, both indexes,
// the result cache, the generation gateway, and the query orchestrator, and
// rebuilds the in-memory indexes from storage on startup.
type Engine struct {
	backend      *badger.Backend
	repo         storage.DocumentRepository
	semantic     *index.SemanticIndex
	lexical      *index.LexicalIndex
	cache        *cache.ResultCache
	gateway      *gateway.Gateway
	provider     ai.Provider
	orchestrator *search.Orchestrator
	pipeline     *ingestion.Pipeline
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig      *ai.Config
	provider      ai.Provider
	dimension     int
	inMemory      bool
	cacheConfig   cache.Config
	gatewayConfig gateway.Config
	searchConfig  search.Config
}

// WithAIConfig sets the AI provider configuration used when no explicit
// provider is supplied.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider supplies a pre-built AI provider, bypassing the default
// OpenAI-compatible one. Used by tests and embedders with custom transports.
func WithProvider(provider ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithDimension sets the embedding dimension the semantic index enforces.
// Must match the embedding model's output size. Default is 768.
func WithDimension(dimension int) EngineOption {
	return func(o *engineOptions) {
		o.dimension = dimension
	}
}

// WithInMemory opens the storage backend in memory, discarding all data on
// Close. Used by tests.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithCacheConfig sets the result cache configuration.
func WithCacheConfig(config cache.Config) EngineOption {
	return func(o *engineOptions) {
		o.cacheConfig = config
	}
}

// WithGatewayConfig sets the generation gateway configuration.
func WithGatewayConfig(config gateway.Config) EngineOption {
	return func(o *engineOptions) {
		o.gatewayConfig = config
	}
}

// WithSearchConfig sets the orchestrator's retrieval and generation tuning.
func WithSearchConfig(config search.Config) EngineOption {
	return func(o *engineOptions) {
		o.searchConfig = config
	}
}

// NewEngine opens (or creates) an engine at the given storage path, wiring
// every component and rebuilding the in-memory indexes from the stored
// documents.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:      ai.DefaultConfig(),
		dimension:     DefaultDimension,
		cacheConfig:   cache.DefaultConfig(),
		gatewayConfig: gateway.DefaultConfig(),
		searchConfig:  search.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}
	repo := badger.NewDocumentRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	semantic, err := index.NewSemanticIndex(options.dimension)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}
	lexical, err := index.NewLexicalIndex()
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	resultCache, err := cache.NewResultCache(options.cacheConfig)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	gw, err := gateway.NewGateway(provider.Generator(), options.gatewayConfig)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	orchestrator, err := search.NewOrchestrator(semantic, lexical, provider.Embedder(), options.searchConfig,
		search.WithCache(resultCache),
		search.WithGateway(gw),
	)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(repo, semantic, lexical, provider.Embedder(),
		ingestion.WithCacheInvalidator(resultCache),
	)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	e := &Engine{
		backend:      backend,
		repo:         repo,
		semantic:     semantic,
		lexical:      lexical,
		cache:        resultCache,
		gateway:      gw,
		provider:     provider,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		logger:       slog.Default().With("component", "engine"),
	}

	if err := e.rebuildIndexes(context.Background()); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// rebuildIndexes loads every stored document into the in-memory indexes.
// The repository is the system of record; indexes are derived state.
func (e *Engine) rebuildIndexes(ctx context.Context) error {
	collections, err := e.repo.ListCollections(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, collection := range collections {
		docs, err := e.repo.GetDocuments(ctx, collection)
		if err != nil {
			return err
		}
		if err := e.semantic.Index(ctx, docs...); err != nil {
			return err
		}
		if err := e.lexical.Index(ctx, docs...); err != nil {
			return err
		}
		total += len(docs)
	}

	if total > 0 {
		e.logger.Info("rebuilt indexes from storage",
			"collections", len(collections),
			"documents", total)
	}
	return nil
}

// Query runs a retrieval request through the orchestrator.
func (e *Engine) Query(ctx context.Context, req search.QueryRequest) (*search.QueryResponse, error) {
	return e.orchestrator.Query(ctx, req)
}

// Ingest stores and indexes documents under a collection.
func (e *Engine) Ingest(ctx context.Context, collection string, docs ...*core.Document) error {
	return e.pipeline.Ingest(ctx, collection, docs...)
}

// DeleteCollection removes a collection everywhere: storage, indexes, cache.
func (e *Engine) DeleteCollection(ctx context.Context, collection string) (int, error) {
	return e.pipeline.DeleteCollection(ctx, collection)
}

// Collections lists the stored collection names.
func (e *Engine) Collections(ctx context.Context) ([]string, error) {
	return e.repo.ListCollections(ctx)
}

// CacheStats returns a snapshot of the result cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Repository exposes the document repository.
func (e *Engine) Repository() storage.DocumentRepository {
	return e.repo
}

// Close releases every component. The engine must not be used afterwards.
func (e *Engine) Close() error {
	e.pipeline.Release()

	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.repo.Close(); err != nil {
		e.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
