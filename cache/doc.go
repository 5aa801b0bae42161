// Package cache implements the namespaced cache-aside layer for derived
// listing and entity reads, and the fan-out policy that maps a mutation
// on a shared entity to the full set of cache keys it can stale.
//
// The relational store is the sole source of truth. Read-path cache
// writes are best-effort; mutation-path invalidation is retried with
// bounded backoff and reported if it ultimately fails.
package cache
