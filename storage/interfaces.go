package storage

import (
	"context"

	"github.com/poiesic/ragkit/core"
)

// Repository provides common storage operations shared across repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides durable storage for indexed documents, grouped
// by collection. The repository is the system of record; the in-memory
// indexes are rebuilt from it at startup.
type DocumentRepository interface {
	Repository

	// AddDocuments stores one or more documents in a collection. A document
	// with an existing ID is replaced wholesale.
	AddDocuments(ctx context.Context, collection string, docs ...*core.Document) error

	// GetDocument retrieves a single document by collection and ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, collection, id string) (*core.Document, error)

	// GetDocuments retrieves all documents in a collection, ordered by ID.
	GetDocuments(ctx context.Context, collection string) ([]*core.Document, error)

	// DeleteDocuments removes documents by ID from a collection.
	// Missing IDs are ignored.
	DeleteDocuments(ctx context.Context, collection string, ids ...string) error

	// DeleteCollection removes every document in a collection and returns
	// how many were removed.
	DeleteCollection(ctx context.Context, collection string) (int, error)

	// ListCollections returns the names of all collections holding at least
	// one document, sorted ascending.
	ListCollections(ctx context.Context) ([]string, error)
}
