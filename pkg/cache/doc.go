// Package cache stores successful processing results in Redis so repeated
// batches skip documents the service has already handled.
//
// Only successes are cached. Failures must stay retryable on the next run,
// so they are never written. Entries expire after a configurable TTL and
// Redis evicts them on its own.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create store with a 15 minute TTL
//	store := cache.NewStore(redisClient, 15*time.Minute)
//
//	// Look up a document reference
//	result, err := store.Lookup(ctx, "https://docs.example.com/a.pdf")
//	if err != nil {
//		// Infrastructure trouble; treat as a miss.
//	}
//	if result == nil {
//		// Miss - submit to the service, then:
//		_ = store.Record(ctx, "https://docs.example.com/a.pdf", result)
//	}
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - forge_cache_hits_total - Cache hits
//   - forge_cache_misses_total - Cache misses
//   - forge_cache_errors_total{operation} - Cache operation errors
package cache
