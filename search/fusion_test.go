package search

import (
	"testing"

	"github.com/poiesic/ragkit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func semanticResults(scores map[string]float64) []*core.SearchResult {
	out := make([]*core.SearchResult, 0, len(scores))
	for id, score := range scores {
		out = append(out, &core.SearchResult{DocumentID: id, Content: "content " + id, Score: score, Source: core.SourceSemantic})
	}
	return out
}

func lexicalResults(scores map[string]float64) []*core.SearchResult {
	out := make([]*core.SearchResult, 0, len(scores))
	for id, score := range scores {
		out = append(out, &core.SearchResult{DocumentID: id, Content: "content " + id, Score: score, Source: core.SourceLexical})
	}
	return out
}

func ids(results []*core.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.DocumentID
	}
	return out
}

func TestMerge(t *testing.T) {
	t.Run("document in both lists accumulates both sides", func(t *testing.T) {
		sem := semanticResults(map[string]float64{"both": 0.9, "semonly": 0.5})
		lex := lexicalResults(map[string]float64{"both": 4.2, "lexonly": 1.1})

		merged := Merge(sem, lex, 0.7, 0.3, 10)
		require.Len(t, merged, 3)
		assert.Equal(t, "both", merged[0].DocumentID)
		// Top of both lists: 0.7*1.0 + 0.3*1.0.
		assert.InDelta(t, 1.0, merged[0].Score, 1e-9)
		assert.Equal(t, core.SourceHybrid, merged[0].Source)
	})

	t.Run("missing side contributes zero", func(t *testing.T) {
		sem := semanticResults(map[string]float64{"a": 0.9, "b": 0.1})
		merged := Merge(sem, nil, 0.7, 0.3, 10)
		require.Len(t, merged, 2)
		assert.InDelta(t, 0.7, merged[0].Score, 1e-9)
		assert.InDelta(t, 0.0, merged[1].Score, 1e-9)
	})

	t.Run("weights are not renormalized", func(t *testing.T) {
		sem := semanticResults(map[string]float64{"a": 0.9})
		lex := lexicalResults(map[string]float64{"a": 3.0})

		// Weights sum to 0.5; the fused score range compresses with them.
		merged := Merge(sem, lex, 0.25, 0.25, 10)
		require.Len(t, merged, 1)
		assert.InDelta(t, 0.5, merged[0].Score, 1e-9)
	})

	t.Run("all-equal scores normalize to one", func(t *testing.T) {
		sem := semanticResults(map[string]float64{"a": 0.42, "b": 0.42})
		merged := Merge(sem, nil, 1.0, 0.0, 10)
		require.Len(t, merged, 2)
		assert.InDelta(t, 1.0, merged[0].Score, 1e-9)
		assert.InDelta(t, 1.0, merged[1].Score, 1e-9)
	})

	t.Run("ties break by ascending document id", func(t *testing.T) {
		sem := semanticResults(map[string]float64{"zzz": 0.5, "aaa": 0.5, "mmm": 0.5})
		merged := Merge(sem, nil, 1.0, 0.0, 10)
		assert.Equal(t, []string{"aaa", "mmm", "zzz"}, ids(merged))
	})

	t.Run("truncates to topK", func(t *testing.T) {
		sem := semanticResults(map[string]float64{"a": 0.9, "b": 0.8, "c": 0.7, "d": 0.6})
		merged := Merge(sem, nil, 1.0, 0.0, 2)
		assert.Len(t, merged, 2)
	})

	t.Run("empty inputs yield empty output", func(t *testing.T) {
		assert.Empty(t, Merge(nil, nil, 0.7, 0.3, 10))
	})
}

func TestMerge_WeightBoundary(t *testing.T) {
	// With semanticWeight=1 and lexicalWeight=0 the fused order follows the
	// semantic ranking, except that the minimum-scored semantic document
	// normalizes to zero and ties with the lexical-only entry; zero-score
	// ties fall back to ascending document ID.
	sem := []*core.SearchResult{
		{DocumentID: "first", Score: 0.95, Source: core.SourceSemantic},
		{DocumentID: "second", Score: 0.80, Source: core.SourceSemantic},
		{DocumentID: "third", Score: 0.40, Source: core.SourceSemantic},
	}
	lex := lexicalResults(map[string]float64{"third": 9.0, "second": 2.0, "intruder": 5.0})

	merged := Merge(sem, lex, 1.0, 0.0, 3)
	assert.Equal(t, []string{"first", "second", "intruder"}, ids(merged))

	// Symmetric lexical-only case: "second" holds the lexical minimum, so it
	// ties with the semantic-only "first" at zero and loses on ID.
	merged = Merge(sem, lex, 0.0, 1.0, 3)
	assert.Equal(t, []string{"third", "intruder", "first"}, ids(merged))
}

func TestMerge_Deterministic(t *testing.T) {
	sem := semanticResults(map[string]float64{"a": 0.9, "b": 0.7, "c": 0.5, "d": 0.5})
	lex := lexicalResults(map[string]float64{"b": 3.0, "c": 3.0, "e": 1.0})

	first := ids(Merge(sem, lex, 0.7, 0.3, 10))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ids(Merge(sem, lex, 0.7, 0.3, 10)))
	}
}
