package index

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase tokens on whitespace and punctuation.
// No stemming is applied. The same tokenizer runs at ingestion and at query
// time so term matching stays consistent.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// matchesFilters reports whether metadata satisfies every filter pair
// exactly. A nil or empty filter set matches everything.
func matchesFilters(metadata, filters map[string]string) bool {
	for k, want := range filters {
		if got, ok := metadata[k]; !ok || got != want {
			return false
		}
	}
	return true
}
