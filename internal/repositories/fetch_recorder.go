package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/samse/lottiekit/internal/fetch"
	"github.com/samse/lottiekit/internal/models"
)

// FetchRecorder implements fetch.Recorder and fetch.UseRecorder using CacheEntryRepository.
//
// A URL fetched again (after its file was pruned, say) refreshes the existing row.
type FetchRecorder struct {
	repo *CacheEntryRepository
}

// NewFetchRecorder creates a new FetchRecorder with the given repository
func NewFetchRecorder(repo *CacheEntryRepository) *FetchRecorder {
	return &FetchRecorder{repo: repo}
}

// RecordFetch stores the download described by e.
func (a *FetchRecorder) RecordFetch(_ context.Context, e fetch.Entry) error {
	entry := models.NewCacheEntry(e.RemoteURL, e.LocalPath, e.Size, e.Checksum, e.FetchedAt)
	if err := a.repo.Upsert(entry); err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}
	return nil
}

// RecordUse stamps last_used_at for a local copy served from disk.
func (a *FetchRecorder) RecordUse(_ context.Context, localPath string, at time.Time) error {
	return a.repo.Touch(localPath, at)
}
