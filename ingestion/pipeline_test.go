package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/ragkit/ai/mock"
	"github.com/poiesic/ragkit/core"
	"github.com/poiesic/ragkit/index"
	"github.com/poiesic/ragkit/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingInvalidator records Invalidate calls.
type recordingInvalidator struct {
	collections []string
}

func (r *recordingInvalidator) Invalidate(collection string) int {
	r.collections = append(r.collections, collection)
	return 0
}

type testPipeline struct {
	pipeline    *Pipeline
	repo        *badger.DocumentRepository
	semantic    *index.SemanticIndex
	lexical     *index.LexicalIndex
	embedder    *mock.MockEmbedder
	invalidator *recordingInvalidator
}

func newTestPipeline(t *testing.T, opts ...Option) *testPipeline {
	t.Helper()

	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	repo := badger.NewDocumentRepository(backend)

	semantic, err := index.NewSemanticIndex(mock.DefaultDimension)
	require.NoError(t, err)
	lexical, err := index.NewLexicalIndex()
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	invalidator := &recordingInvalidator{}

	allOpts := append([]Option{WithCacheInvalidator(invalidator)}, opts...)
	pipeline, err := NewPipeline(repo, semantic, lexical, embedder, allOpts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return &testPipeline{
		pipeline:    pipeline,
		repo:        repo,
		semantic:    semantic,
		lexical:     lexical,
		embedder:    embedder,
		invalidator: invalidator,
	}
}

func TestNewPipeline(t *testing.T) {
	semantic, err := index.NewSemanticIndex(mock.DefaultDimension)
	require.NoError(t, err)
	lexical, err := index.NewLexicalIndex()
	require.NoError(t, err)
	embedder := mock.NewMockEmbedder()

	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()
	repo := badger.NewDocumentRepository(backend)

	t.Run("requires repository", func(t *testing.T) {
		_, err := NewPipeline(nil, semantic, lexical, embedder)
		assert.ErrorIs(t, err, ErrRepositoryRequired)
	})

	t.Run("requires indexes", func(t *testing.T) {
		_, err := NewPipeline(repo, nil, lexical, embedder)
		assert.ErrorIs(t, err, ErrIndexRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewPipeline(repo, semantic, lexical, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("rejects invalid batch size", func(t *testing.T) {
		_, err := NewPipeline(repo, semantic, lexical, embedder, WithBatchSize(0))
		assert.ErrorIs(t, err, ErrInvalidBatchSize)
	})
}

func TestPipeline_Ingest(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	docs := []*core.Document{
		{Content: "goroutines are lightweight threads"},
		{Content: "badger is an embeddable key-value store"},
	}
	require.NoError(t, tp.pipeline.Ingest(ctx, "docs", docs...))

	// Content-addressed IDs and collection metadata were assigned.
	for _, doc := range docs {
		assert.Equal(t, core.IDFromContent(doc.Content), doc.ID)
		assert.Equal(t, "docs", doc.Metadata[core.MetadataCollection])
		assert.Len(t, doc.Embedding, mock.DefaultDimension)
	}

	// Durable.
	stored, err := tp.repo.GetDocuments(ctx, "docs")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// Searchable in both indexes.
	assert.Equal(t, 2, tp.semantic.Len())
	assert.Equal(t, 2, tp.lexical.Len())

	results, err := tp.lexical.Search(ctx, "goroutines", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Cache invalidated for the collection.
	assert.Equal(t, []string{"docs"}, tp.invalidator.collections)
}

func TestPipeline_Ingest_ManyBatches(t *testing.T) {
	tp := newTestPipeline(t, WithBatchSize(3), WithPoolSize(4))
	ctx := context.Background()

	docs := make([]*core.Document, 20)
	for i := range docs {
		docs[i] = &core.Document{Content: fmt.Sprintf("document number %d about topic %d", i, i%5)}
	}
	require.NoError(t, tp.pipeline.Ingest(ctx, "bulk", docs...))

	assert.Equal(t, 20, tp.semantic.Len())
	assert.Equal(t, 20, tp.lexical.Len())
	for _, doc := range docs {
		assert.NotEmpty(t, doc.Embedding)
	}
}

func TestPipeline_Ingest_PreservesExistingEmbeddings(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	precomputed := make([]float32, mock.DefaultDimension)
	precomputed[0] = 1
	doc := &core.Document{Content: "already embedded", Embedding: precomputed}

	embedCalls := tp.embedder.CallCount()
	require.NoError(t, tp.pipeline.Ingest(ctx, "docs", doc))
	assert.Equal(t, embedCalls, tp.embedder.CallCount(), "embedder must not run for pre-embedded documents")
	assert.Equal(t, precomputed, doc.Embedding)
}

func TestPipeline_Ingest_EmbeddingFailure(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	embedErr := errors.New("embedding service down")
	tp.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, embedErr
	}

	err := tp.pipeline.Ingest(ctx, "docs", &core.Document{Content: "will fail"})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedErr)

	// Nothing persisted or indexed on failure.
	stored, err := tp.repo.GetDocuments(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Equal(t, 0, tp.semantic.Len())
	assert.Empty(t, tp.invalidator.collections)
}

func TestPipeline_Ingest_InvalidDocument(t *testing.T) {
	tp := newTestPipeline(t)

	err := tp.pipeline.Ingest(context.Background(), "docs", &core.Document{Content: ""})
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestPipeline_DeleteCollection(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, tp.pipeline.Ingest(ctx, "docs",
		&core.Document{Content: "first"},
		&core.Document{Content: "second"},
	))
	require.NoError(t, tp.pipeline.Ingest(ctx, "other",
		&core.Document{Content: "third"},
	))

	removed, err := tp.pipeline.DeleteCollection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.Equal(t, 1, tp.semantic.Len())
	assert.Equal(t, 1, tp.lexical.Len())

	stored, err := tp.repo.GetDocuments(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Invalidated once per ingest and once for the deletion.
	assert.Equal(t, []string{"docs", "other", "docs"}, tp.invalidator.collections)
}
