// Package repositories implements SQLite persistence for lottiekit's index of downloaded files.
//
// Key Implementations:
//   - [CacheEntryRepository] : CRUD plus URL and path lookups for [models.CacheEntry]
//   - [FetchRecorder] : adapts the repository to fetch.Recorder so every completed download is indexed
//
// Rows are hard-deleted: an entry only describes a file, and pruning removes both.
package repositories
