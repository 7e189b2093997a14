package badger

import (
	"fmt"
	"strings"
)

// Key prefix for document records. Keys are "docrec:<collection>:<id>", so a
// single collection is one contiguous prefix range and a full scan groups
// documents by collection.
const documentPrefix = "docrec"

// makeDocumentKey generates a key for a document by collection and ID.
func makeDocumentKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentPrefix, collection, id))
}

// makeCollectionPrefix generates the key prefix covering one collection.
func makeCollectionPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, collection))
}

// collectionFromKey extracts the collection segment from a document key.
// Returns "" when the key is not a document key.
func collectionFromKey(key []byte) string {
	parts := strings.SplitN(string(key), ":", 3)
	if len(parts) != 3 || parts[0] != documentPrefix {
		return ""
	}
	return parts[1]
}
