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
	"slices"
	"strings"

	"github.com/poiesic/ragkit/core"
)

// Merge fuses ranked lists from the semantic and lexical indexes into one
// hybrid ranking. Scores are min-max normalized within each list, then
// combined as a weighted sum. A document absent from one list contributes
// zero for that side. The weights are applied exactly as given; they are
// not renormalized, so weights summing below 1.0 deliberately compress the
// fused score range.
//
// The result is sorted by fused score descending, document ID ascending on
// ties, and truncated to topK.
func Merge(semantic, lexical []*core.SearchResult, semanticWeight, lexicalWeight float64, topK int) []*core.SearchResult {
	semNorm := normalizeScores(semantic)
	lexNorm := normalizeScores(lexical)

	fused := make(map[string]*core.SearchResult)
	for _, r := range semantic {
		fused[r.DocumentID] = &core.SearchResult{
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Score:      semanticWeight * semNorm[r.DocumentID],
			Source:     core.SourceHybrid,
		}
	}
	for _, r := range lexical {
		if existing, ok := fused[r.DocumentID]; ok {
			existing.Score += lexicalWeight * lexNorm[r.DocumentID]
			continue
		}
		fused[r.DocumentID] = &core.SearchResult{
			DocumentID: r.DocumentID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Score:      lexicalWeight * lexNorm[r.DocumentID],
			Source:     core.SourceHybrid,
		}
	}

	merged := make([]*core.SearchResult, 0, len(fused))
	for _, r := range fused {
		merged = append(merged, r)
	}
	slices.SortFunc(merged, func(a, b *core.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.DocumentID, b.DocumentID)
		}
	})

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// normalizeScores min-max normalizes a ranked list's scores into [0, 1],
// keyed by document ID. When every score is equal (including the
// single-result case) each normalizes to 1.0 rather than 0, so a sole
// match still carries full weight.
func normalizeScores(results []*core.SearchResult) map[string]float64 {
	norm := make(map[string]float64, len(results))
	if len(results) == 0 {
		return norm
	}

	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	span := max - min
	for _, r := range results {
		if span == 0 {
			norm[r.DocumentID] = 1.0
			continue
		}
		norm[r.DocumentID] = (r.Score - min) / span
	}
	return norm
}
