// Package store keeps the latest report per name in memory with TTL eviction,
// and caches /analyze results by an xxhash fingerprint of settings and body.
package store
