package badger

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragkit/core"
	"github.com/poiesic/ragkit/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close is a no-op; the backend owns the database lifecycle.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddDocuments stores one or more documents in a collection. A document with
// an existing ID is replaced wholesale.
func (r *DocumentRepository) AddDocuments(ctx context.Context, collection string, docs ...*core.Document) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			key := makeDocumentKey(collection, doc.ID)
			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a single document by collection and ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, collection, id string) (*core.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(collection, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = storage.UnmarshalDocument(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocuments retrieves all documents in a collection, ordered by ID.
func (r *DocumentRepository) GetDocuments(ctx context.Context, collection string) ([]*core.Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}

	var docs []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Keys sort lexicographically by ID already; keep the contract explicit.
	slices.SortFunc(docs, func(a, b *core.Document) int {
		return strings.Compare(a.ID, b.ID)
	})
	return docs, nil
}

// DeleteDocuments removes documents by ID from a collection. Missing IDs are
// ignored.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, collection string, ids ...string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makeDocumentKey(collection, id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteCollection removes every document in a collection and returns how
// many were removed.
func (r *DocumentRepository) DeleteCollection(ctx context.Context, collection string) (int, error) {
	if err := validateCollection(collection); err != nil {
		return 0, err
	}

	removed := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCollectionPrefix(collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)

		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		removed = len(keys)
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ListCollections returns the names of all collections holding at least one
// document, sorted ascending.
func (r *DocumentRepository) ListCollections(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if name := collectionFromKey(iter.Item().Key()); name != "" {
				seen[name] = struct{}{}
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	collections := make([]string, 0, len(seen))
	for name := range seen {
		collections = append(collections, name)
	}
	slices.Sort(collections)
	return collections, nil
}

// validateCollection rejects names that would break the key scheme.
func validateCollection(collection string) error {
	if collection == "" || strings.Contains(collection, ":") {
		return storage.ErrInvalidCollection
	}
	return nil
}
