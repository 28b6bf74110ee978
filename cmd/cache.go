package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/samse/lottiekit/internal/models"
	"github.com/samse/lottiekit/internal/repositories"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/urfave/cli/v3"
)

type cacheEntryJSON struct {
	ID         string     `json:"id"`
	RemoteURL  string     `json:"remote_url"`
	LocalPath  string     `json:"local_path"`
	Size       int64      `json:"size"`
	Checksum   string     `json:"checksum"`
	FetchedAt  time.Time  `json:"fetched_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Present    bool       `json:"present"`
}

func (r *Runner) cacheRepository() (*repositories.CacheEntryRepository, func(), error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open fetch index: %w", err)
	}
	return repositories.NewCacheEntryRepository(db), func() { db.Close() }, nil
}

// CacheList prints the fetch index, newest first.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.cacheRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := repo.List(map[string]any{
		"remote_url_prefix": cmd.String("prefix"),
		"limit":             cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]cacheEntryJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, cacheEntryJSON{
				ID:         e.ID(),
				RemoteURL:  e.RemoteURL(),
				LocalPath:  e.LocalPath(),
				Size:       e.Size(),
				Checksum:   e.Checksum(),
				FetchedAt:  e.FetchedAt(),
				LastUsedAt: e.LastUsedAt(),
				Present:    present(e),
			})
		}
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Cached compositions (%d)", len(entries)))
	for i, e := range entries {
		mark := "✓"
		if !present(e) {
			mark = "✗"
		}
		r.writePlain("%d. %s %s\n", i+1, mark, e.RemoteURL())
		r.writePlain("   %s (%d bytes, fetched %s)\n", e.LocalPath(), e.Size(), e.FetchedAt().Local().Format(time.DateTime))
	}
	return nil
}

// CachePrune deletes downloaded files and their index rows.
//
// Files already removed from disk only lose their row.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.cacheRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	criteria := map[string]any{}
	if !cmd.Bool("all") {
		criteria["fetched_before"] = time.Now().Add(-cmd.Duration("older-than"))
	}

	entries, err := repo.List(criteria)
	if err != nil {
		return err
	}

	dryRun := cmd.Bool("dry-run")
	var pruned int
	var freed int64
	for _, e := range entries {
		if dryRun {
			r.writePlain("would prune %s\n", e.LocalPath())
			continue
		}
		if err := os.Remove(e.LocalPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("failed to remove cached file", "path", e.LocalPath(), "error", err)
			continue
		}
		if err := repo.Delete(e.ID()); err != nil {
			return err
		}
		pruned++
		freed += e.Size()
		r.logger.Debug("pruned", "url", e.RemoteURL(), "path", e.LocalPath())
	}

	if dryRun {
		r.writePlainln("%d entries would be pruned", len(entries))
		return nil
	}
	r.writePlain("✓ Pruned %d entries (%d bytes)\n", pruned, freed)
	return nil
}

func present(e *models.CacheEntry) bool {
	_, err := os.Stat(e.LocalPath())
	return err == nil
}
