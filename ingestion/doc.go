// Package ingestion feeds documents into the system: content-addressed ID
// assignment, batched embedding over a worker pool, durable storage, index
// population, and result-cache invalidation for the affected collection.
package ingestion
