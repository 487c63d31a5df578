// Package cache provides the short-TTL key/value store used to avoid
// redundant reads against the access-control provider.
//
// Two implementations exist behind the Store interface: a Redis-backed store
// for multi-process deployments and an in-memory TTL map for single-process
// deployments and tests. The cache is best effort: a stale or missing entry
// only costs one extra remote call, never incorrect synchronization, because
// every write path re-validates against the remote system.
package cache
