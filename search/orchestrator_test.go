package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/ragkit/ai/mock"
	"github.com/poiesic/ragkit/cache"
	"github.com/poiesic/ragkit/core"
	"github.com/poiesic/ragkit/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrchConfig() Config {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0 // deterministic mock vectors, keep every match
	return cfg
}

// testVocab drives a bag-of-words embedder so that semantic similarity in
// tests tracks actual term overlap instead of hash noise.
var testVocab = []string{"goroutines", "runtime", "vector", "database", "similarity", "search", "gardening", "tomatoes"}

func vocabVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(testVocab))
	for i, w := range testVocab {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v
}

// newTestPipeline builds an orchestrator over real in-memory indexes, a mock
// embedder, a real cache and a mock generator.
func newTestPipeline(t *testing.T, opts ...Option) (*Orchestrator, *mock.MockEmbedder, *mock.MockGenerator, *cache.ResultCache) {
	t.Helper()
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vocabVector(text), nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = vocabVector(text)
		}
		return out, nil
	}
	generator := mock.NewMockGenerator()

	semantic, err := index.NewSemanticIndex(len(testVocab))
	require.NoError(t, err)
	lexical, err := index.NewLexicalIndex()
	require.NoError(t, err)

	docs := []*core.Document{
		{ID: "go-doc", Content: "goroutines are lightweight threads managed by the go runtime", Metadata: map[string]string{"collection": "docs"}},
		{ID: "db-doc", Content: "a vector database stores embeddings for similarity search", Metadata: map[string]string{"collection": "docs"}},
		{ID: "other", Content: "unrelated text about gardening tomatoes", Metadata: map[string]string{"collection": "garden"}},
	}
	for _, doc := range docs {
		doc.Embedding, err = embedder.EmbedText(ctx, doc.Content)
		require.NoError(t, err)
	}
	require.NoError(t, semantic.Index(ctx, docs...))
	require.NoError(t, lexical.Index(ctx, docs...))

	resultCache, err := cache.NewResultCache(cache.Config{MaxSize: 16, TTL: time.Hour})
	require.NoError(t, err)

	allOpts := append([]Option{
		WithCache(resultCache),
		WithGateway(generator),
	}, opts...)
	orch, err := NewOrchestrator(semantic, lexical, embedder, testOrchConfig(), allOpts...)
	require.NoError(t, err)

	return orch, embedder, generator, resultCache
}

func TestNewOrchestrator(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	semantic, err := index.NewSemanticIndex(mock.DefaultDimension)
	require.NoError(t, err)
	lexical, err := index.NewLexicalIndex()
	require.NoError(t, err)

	t.Run("requires all components", func(t *testing.T) {
		_, err := NewOrchestrator(nil, lexical, embedder, testOrchConfig())
		assert.ErrorIs(t, err, ErrSemanticIndexRequired)

		_, err = NewOrchestrator(semantic, nil, embedder, testOrchConfig())
		assert.ErrorIs(t, err, ErrLexicalIndexRequired)

		_, err = NewOrchestrator(semantic, lexical, nil, testOrchConfig())
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("rejects negative weights", func(t *testing.T) {
		cfg := testOrchConfig()
		cfg.LexicalWeight = -0.1
		_, err := NewOrchestrator(semantic, lexical, embedder, cfg)
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("rejects out-of-range threshold", func(t *testing.T) {
		cfg := testOrchConfig()
		cfg.SimilarityThreshold = 1.5
		_, err := NewOrchestrator(semantic, lexical, embedder, cfg)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	})
}

func TestOrchestrator_Query_Validation(t *testing.T) {
	orch, _, _, _ := newTestPipeline(t)
	ctx := context.Background()

	t.Run("empty query", func(t *testing.T) {
		_, err := orch.Query(ctx, QueryRequest{Text: "   ", TopK: 5})
		assert.ErrorIs(t, err, core.ErrInvalidQuery)
		assert.ErrorIs(t, err, core.ErrEmptyQuery)
	})

	t.Run("non-positive topK", func(t *testing.T) {
		_, err := orch.Query(ctx, QueryRequest{Text: "valid", TopK: 0})
		assert.ErrorIs(t, err, core.ErrInvalidQuery)
		assert.ErrorIs(t, err, core.ErrInvalidTopK)
	})
}

func TestOrchestrator_Query_Retrieval(t *testing.T) {
	orch, _, _, _ := newTestPipeline(t)
	ctx := context.Background()

	resp, err := orch.Query(ctx, QueryRequest{
		Text:       "vector database similarity search",
		Collection: "docs",
		TopK:       5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.False(t, resp.CacheHit)
	assert.Empty(t, resp.Answer)

	assert.Equal(t, "db-doc", resp.Results[0].DocumentID)
	for _, r := range resp.Results {
		assert.Equal(t, core.SourceHybrid, r.Source)
		assert.Equal(t, "docs", r.Metadata["collection"])
	}
}

func TestOrchestrator_Query_CollectionIsolation(t *testing.T) {
	orch, _, _, _ := newTestPipeline(t)
	ctx := context.Background()

	resp, err := orch.Query(ctx, QueryRequest{
		Text:       "gardening tomatoes",
		Collection: "garden",
		TopK:       5,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "other", resp.Results[0].DocumentID)
}

func TestOrchestrator_Query_CacheRoundTrip(t *testing.T) {
	orch, embedder, _, _ := newTestPipeline(t)
	ctx := context.Background()

	req := QueryRequest{
		Text:       "goroutines in the runtime",
		Collection: "docs",
		TopK:       5,
		UseCache:   true,
	}

	cold, err := orch.Query(ctx, req)
	require.NoError(t, err)
	assert.False(t, cold.CacheHit)

	embedCalls := embedder.CallCount()

	warm, err := orch.Query(ctx, req)
	require.NoError(t, err)
	assert.True(t, warm.CacheHit)
	assert.Equal(t, cold.Results, warm.Results)
	assert.Equal(t, embedCalls, embedder.CallCount(), "cache hit must skip embedding")
}

func TestOrchestrator_Query_CacheDisabled(t *testing.T) {
	orch, _, _, resultCache := newTestPipeline(t)
	ctx := context.Background()

	req := QueryRequest{Text: "goroutines", Collection: "docs", TopK: 5, UseCache: false}

	for i := 0; i < 2; i++ {
		resp, err := orch.Query(ctx, req)
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
	}
	assert.Equal(t, 0, resultCache.Len(), "UseCache=false must not populate the cache")
}

func TestOrchestrator_Query_GenerateAnswer(t *testing.T) {
	orch, _, generator, _ := newTestPipeline(t)
	ctx := context.Background()

	var seenPrompt string
	generator.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		seenPrompt = prompt
		return "goroutines are cheap", nil
	}

	resp, err := orch.Query(ctx, QueryRequest{
		Text:           "what are goroutines",
		Collection:     "docs",
		TopK:           3,
		GenerateAnswer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "goroutines are cheap", resp.Answer)
	assert.Contains(t, seenPrompt, "what are goroutines")
	assert.Contains(t, seenPrompt, "goroutines are lightweight threads")
}

func TestOrchestrator_Query_GenerationFailureIsPartial(t *testing.T) {
	orch, _, generator, _ := newTestPipeline(t)
	ctx := context.Background()

	genErr := errors.New("model unavailable")
	generator.GenerateFunc = func(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
		return "", genErr
	}

	resp, err := orch.Query(ctx, QueryRequest{
		Text:           "what are goroutines",
		Collection:     "docs",
		TopK:           3,
		GenerateAnswer: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, genErr)

	// Retrieval succeeded and must be reported alongside the error.
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Results)
	assert.Empty(t, resp.Answer)
}

func TestOrchestrator_Query_GenerationWithoutGateway(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	semantic, err := index.NewSemanticIndex(mock.DefaultDimension)
	require.NoError(t, err)
	lexical, err := index.NewLexicalIndex()
	require.NoError(t, err)

	orch, err := NewOrchestrator(semantic, lexical, embedder, testOrchConfig())
	require.NoError(t, err)

	resp, err := orch.Query(context.Background(), QueryRequest{
		Text:           "anything",
		TopK:           3,
		GenerateAnswer: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	require.NotNil(t, resp, "retrieval results still returned")
}

func TestOrchestrator_Query_EmbeddingFailureAborts(t *testing.T) {
	orch, embedder, _, _ := newTestPipeline(t)
	ctx := context.Background()

	embedErr := errors.New("embedding service down")
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, embedErr
	}

	resp, err := orch.Query(ctx, QueryRequest{Text: "anything", Collection: "docs", TopK: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, embedErr)
	assert.Nil(t, resp)
}

func TestOrchestrator_Query_CachedAnswer(t *testing.T) {
	orch, _, generator, _ := newTestPipeline(t)
	ctx := context.Background()

	req := QueryRequest{
		Text:           "what are goroutines",
		Collection:     "docs",
		TopK:           3,
		UseCache:       true,
		GenerateAnswer: true,
	}

	cold, err := orch.Query(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "mock answer", cold.Answer)
	genCalls := generator.CallCount()

	warm, err := orch.Query(ctx, req)
	require.NoError(t, err)
	assert.True(t, warm.CacheHit)
	assert.Equal(t, cold.Answer, warm.Answer)
	assert.Equal(t, genCalls, generator.CallCount(), "cache hit must skip generation")
}
