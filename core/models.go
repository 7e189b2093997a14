package core

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// Source identifies which retrieval path produced a search result.
type Source int

const (
	// SourceSemantic marks results ranked by embedding cosine similarity.
	SourceSemantic Source = iota + 1
	// SourceLexical marks results ranked by BM25.
	SourceLexical
	// SourceHybrid marks results produced by score fusion of both paths.
	SourceHybrid
)

// String returns the canonical lowercase name of the source.
func (s Source) String() string {
	switch s {
	case SourceSemantic:
		return "semantic"
	case SourceLexical:
		return "lexical"
	case SourceHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// MetadataCollection is the metadata key that assigns a document to a
// collection. The orchestrator folds a requested collection into the
// metadata filters under this key.
const MetadataCollection = "collection"

// Document is a unit of indexed content.
// Documents are immutable once indexed; re-ingesting a document with the
// same ID replaces it wholesale (no partial update).
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32 // Populated by the ingestion pipeline; only the semantic index reads it
}

// SearchResult is a single ranked passage returned by an index or by fusion.
// Score semantics depend on Source: cosine similarity in [-1,1] for semantic,
// raw BM25 for lexical, weighted fused score for hybrid.
type SearchResult struct {
	DocumentID string
	Content    string
	Metadata   map[string]string
	Score      float64
	Source     Source
}

// CachedResult is the value cached per query fingerprint: the ordered fused
// results plus the generated answer, if one was produced.
type CachedResult struct {
	Results []*SearchResult
	Answer  string
}

// IDFromContent generates a deterministic document ID from text content
// using BLAKE2b hashing. Identical content always produces the same ID.
func IDFromContent(text string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// fingerprintFromContent hashes a canonical request string to a Fingerprint.
func fingerprintFromContent(text string) Fingerprint {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return Fingerprint(binary.LittleEndian.Uint64(sum))
}
