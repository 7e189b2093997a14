package search

import "time"

// QueryMonitor receives notifications about query execution for metrics
// collection or debugging. Implementations must be lightweight; they are
// invoked synchronously on the query path.
type QueryMonitor interface {
	// OnCacheHit is called when a query is answered from the result cache.
	OnCacheHit(query, collection string)

	// OnCacheMiss is called when a query has to run the full pipeline.
	OnCacheMiss(query, collection string)

	// OnSearchComplete is called after both indexes have been searched and
	// their results fused.
	OnSearchComplete(query string, semanticHits, lexicalHits, fusedHits int, elapsed time.Duration)

	// OnGenerationComplete is called after answer generation, with err nil
	// on success.
	OnGenerationComplete(query string, elapsed time.Duration, err error)
}

// noopMonitor ignores all notifications. Used when no monitor is configured.
type noopMonitor struct{}

func (noopMonitor) OnCacheHit(query, collection string)  {}
func (noopMonitor) OnCacheMiss(query, collection string) {}
func (noopMonitor) OnSearchComplete(query string, semanticHits, lexicalHits, fusedHits int, elapsed time.Duration) {
}
func (noopMonitor) OnGenerationComplete(query string, elapsed time.Duration, err error) {}
