// Package storage defines the durable document repository interface and the
// MUS binary serialization for documents. Concrete backends live in
// subpackages; see storage/badger for the BadgerDB implementation.
package storage
