package core

import (
	"sort"
	"strconv"
	"strings"
)

// Fingerprint is a deterministic hash of a query's semantically relevant
// parameters, used as a cache key.
type Fingerprint uint64

// preimageEscaper neutralizes the preimage delimiters inside field values so
// that distinct requests can never canonicalize to the same preimage.
var preimageEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`, ",", `\,`, "=", `\=`)

// FingerprintQuery computes the cache fingerprint for a query and returns it
// together with the canonical preimage string it was hashed from.
//
// The preimage is the ordered tuple (query, collection, topK, sorted filter
// pairs, search mode), with delimiter characters escaped inside each field.
// Filters are order-normalized before hashing so semantically identical
// requests always collide to the same key. Callers keep the preimage
// alongside cached values to detect hash collisions.
func FingerprintQuery(query, collection string, topK int, filters map[string]string, mode Source) (Fingerprint, string) {
	var sb strings.Builder
	sb.WriteString(preimageEscaper.Replace(query))
	sb.WriteByte('|')
	sb.WriteString(preimageEscaper.Replace(collection))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(topK))
	sb.WriteByte('|')

	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for k := range filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(preimageEscaper.Replace(k))
			sb.WriteByte('=')
			sb.WriteString(preimageEscaper.Replace(filters[k]))
		}
	}
	sb.WriteByte('|')
	sb.WriteString(mode.String())

	preimage := sb.String()
	return fingerprintFromContent(preimage), preimage
}
