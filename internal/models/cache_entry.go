package models

import (
	"fmt"
	"net/url"
	"time"
)

// CacheEntry records a remote composition downloaded to a local file.
type CacheEntry struct {
	timestamps
	remoteURL  string
	localPath  string
	size       int64
	checksum   string
	fetchedAt  time.Time
	lastUsedAt *time.Time
}

// NewCacheEntry creates an unsaved entry.
func NewCacheEntry(remoteURL, localPath string, size int64, checksum string, fetchedAt time.Time) *CacheEntry {
	return &CacheEntry{
		timestamps: newTimestamps(),
		remoteURL:  remoteURL,
		localPath:  localPath,
		size:       size,
		checksum:   checksum,
		fetchedAt:  fetchedAt.UTC(),
	}
}

func (e *CacheEntry) RemoteURL() string      { return e.remoteURL }
func (e *CacheEntry) LocalPath() string      { return e.localPath }
func (e *CacheEntry) Size() int64            { return e.size }
func (e *CacheEntry) Checksum() string       { return e.checksum }
func (e *CacheEntry) FetchedAt() time.Time   { return e.fetchedAt }
func (e *CacheEntry) LastUsedAt() *time.Time { return e.lastUsedAt }

// SetLastUsedAt marks when the local copy was last served.
func (e *CacheEntry) SetLastUsedAt(t *time.Time) { e.lastUsedAt = t }

// Refresh replaces the download details after the file was fetched again.
func (e *CacheEntry) Refresh(localPath string, size int64, checksum string, fetchedAt time.Time) {
	e.localPath, e.size, e.checksum, e.fetchedAt = localPath, size, checksum, fetchedAt.UTC()
}

// Validate checks required fields.
func (e *CacheEntry) Validate() error {
	if e.remoteURL == "" {
		return fmt.Errorf("remote url is required")
	}
	if u, err := url.Parse(e.remoteURL); err != nil || u.Scheme == "" {
		return fmt.Errorf("remote url must be absolute: %q", e.remoteURL)
	}
	if e.localPath == "" {
		return fmt.Errorf("local path is required")
	}
	if e.size < 0 {
		return fmt.Errorf("size must not be negative")
	}
	return nil
}
