package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samse/lottiekit/internal/fetch"
	"github.com/samse/lottiekit/internal/shared"
	"github.com/urfave/cli/v3"
)

// Fetch downloads --url to --out unless the local file already exists.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	remoteURL := cmd.String("url")
	if remoteURL == "" {
		return fmt.Errorf("%w: --url is required", shared.ErrMissingArgument)
	}

	localPath := cmd.String("out")
	if localPath == "" {
		localPath = fetch.LocalPath(r.config.Cache.Dir, remoteURL)
	}

	_, statErr := os.Stat(localPath)
	cached := statErr == nil

	fetcher, db := r.newFetcher(ctx)
	if db != nil {
		defer db.Close()
	}

	r.logger.Info("ensuring local copy", "url", remoteURL, "path", localPath)
	if err := fetcher.EnsureLocal(ctx, localPath, remoteURL); err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	if cached {
		r.writePlain("✓ Already cached: %s\n", localPath)
	} else {
		r.writePlain("✓ Downloaded %s\n", remoteURL)
		r.writePlain("  Saved to: %s\n", localPath)
	}
	return nil
}
