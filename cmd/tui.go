package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/session"
	"github.com/desertthunder/jbx/internal/shared"
	"github.com/desertthunder/jbx/internal/ui"
)

// TUI launches the live dashboard on a session fed by both push channels.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	repo, db, err := r.songCache()
	if err != nil {
		r.logger.Warn("offline cache unavailable", "err", err)
	} else {
		defer db.Close()
	}

	bridge := ui.NewBridge(64)
	opts := session.Options{
		Config:            r.config,
		Jukebox:           r.jukebox,
		PlayerRenderer:    bridge,
		DownloadsRenderer: bridge,
		LibraryRenderer:   bridge,
		Notifier:          bridge,
		Logger:            r.logger,
	}
	if repo != nil {
		opts.Cache = repo
	}

	s, err := session.New(opts)
	if err != nil {
		return err
	}
	defer s.Close()

	err = ui.Run(ctx, ui.Deps{
		Player:    s.Player,
		Downloads: s.Downloads,
		Library:   s.Library,
		Playlists: r.jukebox,
		Start:     s.Start,
		Visible:   s.Visible,
		Hidden:    s.Hidden,
	}, bridge)
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
