package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samse/lottiekit/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, the cache directory and the fetch index.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config, err := r.loadOrCreateConfig(configPath)
	if err != nil {
		return err
	}
	r.config = config
	r.configPath = configPath

	if err := os.MkdirAll(config.Cache.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	r.logger.Info("cache directory ready", "path", config.Cache.Dir)

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	pending, err := shared.PendingMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	r.logger.Info("running database migrations", "pending", len(pending))
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.writePlain("✓ Setup complete\n")
	r.writePlain("  Config:   %s\n", configPath)
	r.writePlain("  Cache:    %s\n", config.Cache.Dir)
	r.writePlain("  Database: %s (%d migrations applied)\n", config.Database.Path, len(pending))
	return nil
}

// loadOrCreateConfig loads path, writing the default config there first if it does not exist.
//
// A file that exists but fails to load is an error; setup never overwrites it.
func (r *Runner) loadOrCreateConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return config, nil
	}

	r.logger.Info("config file not found, creating from template", "path", path)
	if err := shared.CreateConfigFile(path); err != nil {
		return nil, err
	}
	r.logger.Info("config file created", "path", path)
	return shared.LoadConfig(path)
}
