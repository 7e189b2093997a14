package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragkit/ai"
	"github.com/poiesic/ragkit/core"
	"github.com/poiesic/ragkit/storage"
)

const defaultBatchSize = 32

// Indexer is the surface both in-memory indexes expose to ingestion.
type Indexer interface {
	Index(ctx context.Context, docs ...*core.Document) error
	Remove(ctx context.Context, ids ...string)
}

// CacheInvalidator drops cached query results for a collection. Ingestion
// calls it after every mutation; the cache has no other way to learn that
// documents changed.
type CacheInvalidator interface {
	Invalidate(collection string) int
}

// Pipeline ingests documents: it assigns content-addressed IDs, computes
// embeddings in parallel batches, persists to the document repository, feeds
// both indexes, and invalidates cached query results for the collection.
type Pipeline struct {
	repository storage.DocumentRepository
	semantic   Indexer
	lexical    Indexer
	embedder   ai.Embedder
	cache      CacheInvalidator // may be nil
	pool       *ants.Pool
	batchSize  int
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many documents share one embedding request.
// Default is 32.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithCacheInvalidator attaches the result cache so ingestion can drop stale
// entries for mutated collections.
func WithCacheInvalidator(cache CacheInvalidator) Option {
	return func(p *Pipeline) error {
		p.cache = cache
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	repository storage.DocumentRepository,
	semantic Indexer,
	lexical Indexer,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if semantic == nil || lexical == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		repository: repository,
		semantic:   semantic,
		lexical:    lexical,
		embedder:   embedder,
		pool:       pool,
		batchSize:  defaultBatchSize,
		logger:     slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Ingest stores and indexes documents under a collection. Documents without
// an ID get a content-addressed one. The collection name is stamped into
// each document's metadata so index filters can isolate collections.
// Ingestion is synchronous: when it returns nil, the documents are durable,
// searchable, and the collection's cached results are invalidated.
func (p *Pipeline) Ingest(ctx context.Context, collection string, docs ...*core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
		if doc.ID == "" {
			doc.ID = core.IDFromContent(doc.Content)
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]string, 1)
		}
		doc.Metadata[core.MetadataCollection] = collection
	}

	if err := p.embedAll(ctx, docs); err != nil {
		return err
	}

	if err := p.repository.AddDocuments(ctx, collection, docs...); err != nil {
		return err
	}
	if err := p.semantic.Index(ctx, docs...); err != nil {
		return err
	}
	if err := p.lexical.Index(ctx, docs...); err != nil {
		return err
	}

	if p.cache != nil {
		p.cache.Invalidate(collection)
	}

	p.logger.Info("ingested documents", "collection", collection, "count", len(docs))
	return nil
}

// DeleteCollection removes a collection from storage and both indexes, and
// invalidates its cached results.
func (p *Pipeline) DeleteCollection(ctx context.Context, collection string) (int, error) {
	docs, err := p.repository.GetDocuments(ctx, collection)
	if err != nil {
		return 0, err
	}

	removed, err := p.repository.DeleteCollection(ctx, collection)
	if err != nil {
		return 0, err
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	p.semantic.Remove(ctx, ids...)
	p.lexical.Remove(ctx, ids...)

	if p.cache != nil {
		p.cache.Invalidate(collection)
	}

	p.logger.Info("deleted collection", "collection", collection, "count", removed)
	return removed, nil
}

// embedAll fills in missing embeddings, one pool task per batch. Documents
// that already carry an embedding are left alone.
func (p *Pipeline) embedAll(ctx context.Context, docs []*core.Document) error {
	var pending []*core.Document
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			pending = append(pending, doc)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for start := 0; start < len(pending); start += p.batchSize {
		end := start + p.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.embedBatch(ctx, batch); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
		}
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []*core.Document) error {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Content
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(batch) {
		return ErrEmbeddingCountMismatch
	}
	for i, doc := range batch {
		doc.Embedding = embeddings[i]
	}
	return nil
}

// Release releases the worker pool. The pipeline should not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
