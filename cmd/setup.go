package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/shared"
)

// Setup writes a config file from the template if none exists, then initializes the cache.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	switch {
	case cmd.Bool("user"):
		path = shared.UserConfigPath()
	case path == "":
		path = "config.toml"
	}

	if _, err := os.Stat(path); err == nil {
		r.logger.Info("config file found", "path", path)
	} else {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config
	r.configPath = path

	r.logger.Info("initializing cache", "path", config.Cache.Path)
	db, err := r.openCache()
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer db.Close()

	if cmd.Bool("reset-cache") {
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to reset cache: %w", err)
		}
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to reset cache: %w", err)
		}
		r.logger.Info("cache reset", "path", config.Cache.Path)
	}

	r.writePlain("✓ Config: %s\n", path)
	r.writePlain("✓ Cache:  %s\n", config.Cache.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Point server.base_url at your jukebox (currently %s)\n", config.Server.BaseURL)
	r.writePlain("2. Run 'jbx player status' to check the connection, or 'jbx mock' to try a fake server\n")
	return nil
}
