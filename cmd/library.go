package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/library"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/repositories"
	"github.com/desertthunder/jbx/internal/shared"
)

// cachedLibrary returns a library backed by the song cache when it can be opened.
//
// A cache that fails to open is logged and skipped; the returned func is always safe to call.
func (r *Runner) cachedLibrary() (*library.Library, *repositories.SongRepository, func()) {
	repo, db, err := r.songCache()
	if err != nil {
		r.logger.Warn("offline cache unavailable", "err", err)
		return r.songLibrary(nil), nil, func() {}
	}
	return r.songLibrary(repo), repo, func() { db.Close() }
}

// LibraryList prints library songs from the server, or from the cache with --offline.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	filter := cmd.String("filter")

	var songs []models.Track
	if cmd.Bool("offline") {
		repo, db, err := r.songCache()
		if err != nil {
			return err
		}
		defer db.Close()

		if songs, err = r.songLibrary(repo).Offline(ctx, filter); err != nil {
			return err
		}
	} else {
		lib, _, closeCache := r.cachedLibrary()
		defer closeCache()

		if err := lib.Refresh(ctx); err != nil {
			return err
		}
		songs = lib.Filter(filter)
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, cmd.Bool("pretty"))
	}

	if len(songs) == 0 {
		r.writePlain("No songs found\n")
		return nil
	}
	r.writePlainHeader(fmt.Sprintf("Library (%d songs)", len(songs)))
	for _, s := range songs {
		r.writePlain("%-10s %-40s %6s %9s  %s\n",
			shortID(s.ID), truncate(s.Title, 40), shared.FormatDuration(s.Duration),
			shared.FormatFileSize(s.Size), s.AddedDate)
	}
	return nil
}

// LibraryRename retitles a song and updates the cached row.
func (r *Runner) LibraryRename(ctx context.Context, cmd *cli.Command) error {
	id, title := cmd.StringArg("id"), cmd.StringArg("title")
	if id == "" || strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: id and title are required", shared.ErrMissingArgument)
	}

	lib, repo, closeCache := r.cachedLibrary()
	defer closeCache()
	if err := lib.Refresh(ctx); err != nil {
		return err
	}

	res, err := lib.Rename(ctx, id, title)
	if err != nil {
		return err
	}
	if res.NewFilename != "" {
		r.writePlain("  file: %s\n", res.NewFilename)
	}

	if repo != nil {
		for _, s := range lib.Songs() {
			if s.ID != id {
				continue
			}
			if err := repo.Upsert(ctx, s); err != nil {
				r.logger.Warn("failed to update cached song", "id", id, "err", err)
			}
		}
	}
	return nil
}

// LibraryDelete removes a song from the server, every playlist and the cache.
func (r *Runner) LibraryDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	lib, repo, closeCache := r.cachedLibrary()
	defer closeCache()
	if err := lib.Refresh(ctx); err != nil {
		return err
	}

	res, err := lib.Delete(ctx, id)
	if err != nil {
		return err
	}
	if len(res.RemovedFromPlaylists) > 0 {
		r.writePlain("  removed from: %s\n", strings.Join(res.RemovedFromPlaylists, ", "))
	}

	if repo != nil {
		if err := repo.Delete(ctx, id); err != nil {
			r.logger.Debug("song was not cached", "id", id, "err", err)
		}
	}
	return nil
}

// LibraryStats prints totals for the library.
func (r *Runner) LibraryStats(ctx context.Context, cmd *cli.Command) error {
	lib, repo, closeCache := r.cachedLibrary()
	defer closeCache()
	if err := lib.Refresh(ctx); err != nil {
		return err
	}
	stats := lib.Stats()

	cached := -1
	if repo != nil {
		n, err := repo.Count(ctx)
		if err != nil {
			r.logger.Warn("failed to count cached songs", "err", err)
		} else {
			cached = n
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"songs":          stats.Count,
			"total_duration": stats.TotalDuration,
			"total_size":     stats.TotalSize,
			"cached_songs":   cached,
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Library Stats")
	r.writePlain("Songs:    %d\n", stats.Count)
	r.writePlain("Duration: %s\n", stats.Duration())
	r.writePlain("Size:     %s\n", stats.Size())
	if cached >= 0 {
		r.writePlain("Cached:   %d\n", cached)
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
