// Package models defines persistent entities and repository interfaces for lottiekit.
//
// The only persistent entity today is [CacheEntry], an index row for a composition
// downloaded into the local cache directory. The on-disk file is the source of truth;
// the index adds provenance (remote URL, checksum, fetch time) and drives "cache list"
// and "cache prune".
//
// Persistent entities implement [Model] (ID, timestamps, validation) and are stored
// through a [Repository].
package models
