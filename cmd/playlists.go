package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/formatter"
	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/repositories"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
	"github.com/desertthunder/jbx/internal/tasks"
)

// playlistCache opens the cache and returns its playlist table; the caller closes the database.
func (r *Runner) playlistCache() (*repositories.PlaylistRepository, *sql.DB, error) {
	db, err := r.openCache()
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewPlaylistRepository(db), db, nil
}

// cachePlaylists writes playlists to the cache, logging instead of failing.
func (r *Runner) cachePlaylists(ctx context.Context, fn func(*repositories.PlaylistRepository) error) {
	repo, db, err := r.playlistCache()
	if err != nil {
		r.logger.Warn("offline cache unavailable", "err", err)
		return
	}
	defer db.Close()
	if err := fn(repo); err != nil {
		r.logger.Warn("failed to update playlist cache", "err", err)
	}
}

// dropCached removes key from the cache; a playlist that was never cached is not an error.
func dropCached(ctx context.Context, repo *repositories.PlaylistRepository, key string) error {
	if err := repo.Delete(ctx, key); err != nil && !errors.Is(err, shared.ErrPlaylistNotFound) {
		return err
	}
	return nil
}

// PlaylistsList prints playlists from the server, or from the cache with --offline.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	var playlists []models.Playlist
	var tags []string

	if cmd.Bool("offline") {
		repo, db, err := r.playlistCache()
		if err != nil {
			return err
		}
		defer db.Close()
		if playlists, err = repo.List(ctx); err != nil {
			return err
		}
		tags = lo.Uniq(lo.FlatMap(playlists, func(p models.Playlist, _ int) []string { return p.Tags }))
	} else {
		list, err := r.jukebox.Playlists(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		playlists, tags = list.Playlists, list.Tags
		r.cachePlaylists(ctx, func(repo *repositories.PlaylistRepository) error {
			return repo.ReplaceAll(ctx, playlists)
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(services.PlaylistList{Playlists: playlists, Tags: tags}, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		r.writePlain("No playlists\n")
		return nil
	}
	r.writePlainHeader(fmt.Sprintf("Playlists (%d)", len(playlists)))
	for _, p := range playlists {
		count := p.SongCount
		if count == 0 {
			count = len(p.Songs)
		}
		line := fmt.Sprintf("%-30s %4d songs", truncate(p.Name, 30), count)
		if len(p.Tags) > 0 {
			line += "  #" + strings.Join(p.Tags, " #")
		}
		r.writePlain("%s\n", line)
	}
	if len(tags) > 0 {
		r.writePlain("\nTags: %s\n", strings.Join(tags, ", "))
	}
	return nil
}

// PlaylistsShow prints one playlist and caches it, or reads it from the cache with --offline.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	var pl *models.Playlist
	if cmd.Bool("offline") {
		repo, db, err := r.playlistCache()
		if err != nil {
			return err
		}
		defer db.Close()
		if pl, err = cachedPlaylist(ctx, repo, name); err != nil {
			return err
		}
	} else {
		var err error
		if pl, err = r.jukebox.Playlist(ctx, name); err != nil {
			return err
		}
		r.cachePlaylists(ctx, func(repo *repositories.PlaylistRepository) error {
			return repo.Save(ctx, *pl)
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(pl, cmd.Bool("pretty"))
	}

	r.writePlainHeader(pl.Name)
	if len(pl.Tags) > 0 {
		r.writePlain("Tags: %s\n", strings.Join(pl.Tags, ", "))
	}
	r.writePlain("%d songs, %s\n\n", len(pl.Songs), shared.FormatDuration(pl.TotalDuration()))
	for i, s := range pl.Songs {
		r.writePlain("%3d. %-40s %6s  %s\n", i+1, truncate(s.Title, 40), shared.FormatDuration(s.Duration), shortID(s.ID))
	}
	return nil
}

// cachedPlaylist looks name up as a key first, then as a display name.
func cachedPlaylist(ctx context.Context, repo *repositories.PlaylistRepository, name string) (*models.Playlist, error) {
	pl, err := repo.Get(ctx, name)
	if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return pl, err
	}

	all, lerr := repo.List(ctx)
	if lerr != nil {
		return nil, lerr
	}
	match, ok := lo.Find(all, func(p models.Playlist) bool { return strings.EqualFold(p.Name, name) })
	if !ok {
		return nil, err
	}
	return repo.Get(ctx, match.Key())
}

// PlaylistsCreate creates a playlist with optional tags and cover.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	res, err := r.jukebox.CreatePlaylist(ctx, services.PlaylistForm{
		Name:      name,
		Tags:      cmd.StringSlice("tag"),
		ImagePath: cmd.String("image"),
	})
	if err != nil {
		return err
	}
	r.writePlain("✓ %s\n", res.Message)
	return nil
}

// PlaylistsUpdate renames, retags or changes the cover of a playlist.
//
// Tags are kept unless --tag is given, since the server replaces them wholesale.
func (r *Runner) PlaylistsUpdate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	current, err := r.jukebox.Playlist(ctx, name)
	if err != nil {
		return err
	}

	form := services.PlaylistForm{
		Name:      current.Name,
		Tags:      current.Tags,
		ImagePath: cmd.String("image"),
	}
	if rename := strings.TrimSpace(cmd.String("rename")); rename != "" {
		form.Name = rename
	}
	if cmd.IsSet("tag") {
		form.Tags = cmd.StringSlice("tag")
	}

	res, err := r.jukebox.UpdatePlaylist(ctx, current.Key(), form)
	if err != nil {
		return err
	}
	r.cachePlaylists(ctx, func(repo *repositories.PlaylistRepository) error {
		return dropCached(ctx, repo, current.Key())
	})
	r.writePlain("✓ %s\n", res.Message)
	return nil
}

// PlaylistsDelete removes a playlist from the server and the cache.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	res, err := r.jukebox.DeletePlaylist(ctx, name)
	if err != nil {
		return err
	}
	r.cachePlaylists(ctx, func(repo *repositories.PlaylistRepository) error {
		return dropCached(ctx, repo, name)
	})
	r.writePlain("✓ %s\n", res.Message)
	return nil
}

// PlaylistsAddSong appends a library song to a playlist.
func (r *Runner) PlaylistsAddSong(ctx context.Context, cmd *cli.Command) error {
	name, songID := cmd.StringArg("name"), cmd.StringArg("song-id")
	if name == "" || songID == "" {
		return fmt.Errorf("%w: playlist name and song id are required", shared.ErrMissingArgument)
	}

	res, err := r.jukebox.AddSongToPlaylist(ctx, name, songID)
	if err != nil {
		return err
	}
	r.writePlain("✓ %s\n", res.Message)
	r.writePlain("  entry: %s (%s)\n", res.Song.ID, res.Song.Title)
	return nil
}

// PlaylistsRemoveSong removes one entry from a playlist.
func (r *Runner) PlaylistsRemoveSong(ctx context.Context, cmd *cli.Command) error {
	name, entryID := cmd.StringArg("name"), cmd.StringArg("entry-id")
	if name == "" || entryID == "" {
		return fmt.Errorf("%w: playlist name and entry id are required", shared.ErrMissingArgument)
	}

	res, err := r.jukebox.RemoveSongFromPlaylist(ctx, name, entryID)
	if err != nil {
		return err
	}
	r.writePlain("✓ %s\n", res.Message)
	return nil
}

// PlaylistsExport writes the named playlists (or all of them) to files.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if !lo.Contains(formatter.Formats, format) {
		return fmt.Errorf("%w: format must be one of %s", shared.ErrInvalidArgument, strings.Join(formatter.Formats, ", "))
	}

	names := cmd.StringSlice("name")
	if len(names) == 0 {
		list, err := r.jukebox.Playlists(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		names = lo.Map(list.Playlists, func(p models.Playlist, _ int) string { return p.Key() })
	}
	if len(names) == 0 {
		r.writePlain("No playlists to export\n")
		return nil
	}

	exporter := tasks.NewExporter(r.jukebox, tasks.ExportOpts{
		Pool:      r.pool(cmd),
		Format:    format,
		OutputDir: cmd.String("output"),
		BaseURL:   r.config.Server.BaseURL,
		Client:    r.httpClient,
	})

	progress, wait := r.printProgress()
	result, err := exporter.Run(ctx, progress, names)
	close(progress)
	wait()
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Output:   %s\n", result.OutputDirectory)
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	return nil
}
