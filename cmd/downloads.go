package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/downloads"
	"github.com/desertthunder/jbx/internal/library"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
	"github.com/desertthunder/jbx/internal/tasks"
)

func (r *Runner) tracker(renderer downloads.Renderer) *downloads.Tracker {
	opts := downloads.OptionsFromConfig(r.config.Downloads)
	opts.Renderer = renderer
	opts.Logger = shared.WithLogger(r.logger, "component", "downloads")
	return downloads.New(r.jukebox, opts)
}

func (r *Runner) songLibrary(cache library.Cache) *library.Library {
	return library.New(r.jukebox, library.Options{
		Cache:    cache,
		Notifier: r.notifier(),
		Logger:   shared.WithLogger(r.logger, "component", "library"),
	})
}

// DownloadsAdd submits a URL and optionally follows it to completion.
func (r *Runner) DownloadsAdd(ctx context.Context, cmd *cli.Command) error {
	url := cmd.StringArg("url")
	target := cmd.String("playlist")

	if !cmd.Bool("watch") {
		res, err := r.songLibrary(nil).Add(ctx, url, target != "", target)
		if err != nil {
			return err
		}
		r.writePlain("Download ID: %s\n", res.DownloadID)
		return nil
	}

	tracker := r.tracker(nil)
	defer tracker.Close()
	client := r.streamClient(r.config.Server.DownloadsStreamPath, tracker.HandleEvent)
	client.Connect()
	defer client.Close()

	res, err := r.songLibrary(nil).Add(ctx, url, target != "", target)
	if err != nil {
		return err
	}
	if err := tracker.Bootstrap(ctx); err != nil {
		r.logger.Warn("could not load download status, waiting for pushes", "err", err)
	}

	ticker := time.NewTicker(watchPoll)
	defer ticker.Stop()

	var last models.DownloadStatus
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		e, err := tracker.Get(res.DownloadID)
		if err != nil {
			continue
		}
		if e.Status != last {
			last = e.Status
			r.writePlain("%s\n", downloadLine(e))
		}
		switch e.Status {
		case models.DownloadCompleted:
			r.writePlain("✓ %s added to the library\n", e.DisplayTitle())
			return nil
		case models.DownloadFailed:
			return fmt.Errorf("%w: download failed: %s", shared.ErrCommandFailed, e.Error)
		}
	}
}

// DownloadsStatus prints every download the server still reports.
func (r *Runner) DownloadsStatus(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("json") {
		list, err := r.jukebox.DownloadsStatus(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		return r.writeJSON(list, cmd.Bool("pretty"))
	}

	tracker := r.tracker(nil)
	defer tracker.Close()
	if err := tracker.Bootstrap(ctx); err != nil {
		return err
	}

	entries := tracker.Entries()
	if len(entries) == 0 {
		r.writePlain("No active downloads\n")
		return nil
	}
	r.writePlainHeader(fmt.Sprintf("Downloads (%d)", len(entries)))
	for _, e := range entries {
		r.writePlain("%s\n", downloadLine(e))
	}
	return nil
}

// DownloadsWatch follows the downloads channel and prints each stage change.
func (r *Runner) DownloadsWatch(ctx context.Context, cmd *cli.Command) error {
	var (
		mu   sync.Mutex
		seen = map[string]models.DownloadStatus{}
	)
	renderer := downloads.RendererFunc(func(entries []downloads.Entry) {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range entries {
			if seen[e.ID] == e.Status {
				continue
			}
			seen[e.ID] = e.Status
			r.writePlain("%s %s\n", time.Now().Format(time.TimeOnly), downloadLine(e))
		}
	})

	tracker := r.tracker(renderer)
	defer tracker.Close()
	client := r.streamClient(r.config.Server.DownloadsStreamPath, tracker.HandleEvent)
	client.Connect()
	defer client.Close()

	if err := tracker.Bootstrap(ctx); err != nil {
		r.logger.Warn("could not load download status, waiting for pushes", "err", err)
	}
	return r.watch(ctx, client)
}

// DownloadsImport submits every URL in a file through the rate-limited importer.
func (r *Runner) DownloadsImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file", shared.ErrMissingArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open URL list: %w", err)
	}
	urls, err := tasks.ReadURLs(f)
	f.Close()
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("%w: no URLs in %s", shared.ErrInvalidInput, path)
	}

	target := cmd.String("playlist")
	importer := tasks.NewImporter(r.jukebox, tasks.ImportOpts{
		Pool:           r.pool(cmd),
		AutoAdd:        target != "",
		TargetPlaylist: target,
	})

	progress, wait := r.printProgress()
	result, err := importer.Run(ctx, progress, urls)
	close(progress)
	wait()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Import Complete!")
	r.writePlain("Submitted: %d/%d\n", result.Accepted, result.Total)
	if result.Failed > 0 {
		r.writePlain("Failed:    %d\n", result.Failed)
		for _, item := range result.Items {
			if item.Error != nil {
				r.writePlain("  ✗ %s: %v\n", item.URL, item.Error)
			}
		}
	}
	r.writePlain("\nRun 'jbx downloads watch' to follow progress.\n")
	return nil
}

// pool reads --workers and --rate, falling back to the [import] config section.
func (r *Runner) pool(cmd *cli.Command) tasks.Pool {
	p := tasks.Pool{Workers: r.config.Import.Workers, RateLimit: r.config.Import.RateLimit}
	if w := cmd.Int("workers"); w > 0 {
		p.Workers = w
	}
	if rl := cmd.Float64("rate"); rl > 0 {
		p.RateLimit = rl
	}
	return p
}

// printProgress prints updates until the returned channel is closed; wait blocks until the last one is written.
func (r *Runner) printProgress() (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ValidateURLs, tasks.FetchPlaylist:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.Complete:
				r.writePlain("\n%s\n", update.Message)
			default:
				r.writePlain("   %s\n", update.Message)
			}
		}
	}()
	return progress, func() { <-done }
}

// downloadLine renders one entry as "id [●●◐○○○] Label pct title".
func downloadLine(e downloads.Entry) string {
	var bar strings.Builder
	for _, s := range e.Stages {
		switch {
		case s.Failed:
			bar.WriteString("✗")
		case s.Marker == downloads.MarkerCompleted:
			bar.WriteString("●")
		case s.Marker == downloads.MarkerActive:
			bar.WriteString("◐")
		default:
			bar.WriteString("○")
		}
	}

	line := fmt.Sprintf("%s [%s] %-11s", shortID(e.ID), bar.String(), e.Label())
	if e.Status == models.DownloadDownloading {
		line += fmt.Sprintf(" %3.0f%%", e.Progress)
	}
	line += " " + e.DisplayTitle()
	if e.Status == models.DownloadFailed && e.Error != "" {
		line += " (" + e.Error + ")"
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
