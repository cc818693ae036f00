// Package cache stores read-only model metadata between calls.
//
// Two Store implementations are provided: Memory, a bounded LRU with
// per-entry expiry, and Redis, which shares entries across processes.
// Loader sits in front of a Store and coalesces concurrent misses for the
// same key into a single load, so a burst of GetModelInfo("v3") calls issues
// at most one request to the API.
package cache
