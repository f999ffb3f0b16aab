package library

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
)

// Client is the slice of the REST client the library uses.
type Client interface {
	Library(ctx context.Context) ([]models.Track, error)
	AddToLibrary(ctx context.Context, rawURL string, autoAdd bool, target string) (*services.AddResult, error)
	RenameSong(ctx context.Context, id, title string) (*services.RenameResult, error)
	DeleteSong(ctx context.Context, id string) (*services.DeleteResult, error)
}

// Cache persists the last known listing for offline use.
type Cache interface {
	ReplaceAll(ctx context.Context, songs []models.Track) error
	List(ctx context.Context, filter string) ([]models.Track, error)
}

// Renderer receives the listing after every change.
type Renderer interface {
	RenderLibrary([]models.Track)
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func([]models.Track)

func (f RendererFunc) RenderLibrary(songs []models.Track) { f(songs) }

// Options holds the library's collaborators; all are optional.
type Options struct {
	Cache    Cache
	Renderer Renderer
	Notifier shared.Notifier
	Logger   *log.Logger
}

// Stats summarises the listing.
type Stats struct {
	Count         int
	TotalDuration int
	TotalSize     int64
}

// Duration formats the total play time.
func (s Stats) Duration() string { return shared.FormatDuration(s.TotalDuration) }

// Size formats the total file size.
func (s Stats) Size() string { return shared.FormatFileSize(s.TotalSize) }

// Library holds the song listing and applies optimistic mutations.
type Library struct {
	client   Client
	cache    Cache
	renderer Renderer
	notifier shared.Notifier
	logger   *log.Logger

	mu    sync.Mutex
	songs []models.Track

	renderMu sync.Mutex
}

// New creates an empty library.
func New(client Client, opts Options) *Library {
	l := &Library{
		client:   client,
		cache:    opts.Cache,
		renderer: opts.Renderer,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
	if l.renderer == nil {
		l.renderer = RendererFunc(func([]models.Track) {})
	}
	if l.notifier == nil {
		l.notifier = shared.Discard
	}
	if l.logger == nil {
		l.logger = shared.NewLogger(nil)
	}
	return l
}

// Refresh replaces the listing with the server's and writes it to the cache.
func (l *Library) Refresh(ctx context.Context) error {
	songs, err := l.client.Library(ctx)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	l.mu.Lock()
	l.songs = slices.Clone(songs)
	l.mu.Unlock()

	if l.cache != nil {
		if err := l.cache.ReplaceAll(ctx, songs); err != nil {
			l.logger.Warn("failed to update offline cache", "error", err)
		}
	}

	l.logger.Debug("library refreshed", "songs", len(songs))
	l.render()
	return nil
}

// Songs returns a copy of the listing.
func (l *Library) Songs() []models.Track {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.songs)
}

// Offline returns the cached listing without touching the server.
func (l *Library) Offline(ctx context.Context, filter string) ([]models.Track, error) {
	if l.cache == nil {
		return nil, fmt.Errorf("%w: no offline cache configured", shared.ErrMissingConfig)
	}
	return l.cache.List(ctx, filter)
}

// Add validates rawURL and asks the server to download it.
func (l *Library) Add(ctx context.Context, rawURL string, autoAdd bool, target string) (*services.AddResult, error) {
	if err := ValidateURL(rawURL); err != nil {
		l.notifier.Notify(shared.LevelError, "Please enter a valid YouTube URL")
		return nil, err
	}
	if autoAdd && strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: target playlist", shared.ErrMissingArgument)
	}

	res, err := l.client.AddToLibrary(ctx, strings.TrimSpace(rawURL), autoAdd, target)
	if err != nil {
		l.notifier.Notify(shared.LevelError, err.Error())
		return nil, err
	}

	l.notifier.Notify(shared.LevelSuccess, "Download started")
	return res, nil
}

// Rename retitles a song locally, then on the server, restoring the old title on failure.
func (l *Library) Rename(ctx context.Context, id, title string) (*services.RenameResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", shared.ErrInvalidInput)
	}

	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	previous := l.songs[i].Title
	l.songs[i].Title = title
	l.mu.Unlock()
	l.render()

	res, err := l.client.RenameSong(ctx, id, title)
	if err != nil {
		l.mu.Lock()
		if j := l.indexLocked(id); j >= 0 {
			l.songs[j].Title = previous
		}
		l.mu.Unlock()
		l.render()
		l.notifier.Notify(shared.LevelError, err.Error())
		return nil, err
	}

	if res.NewFilename != "" {
		l.mu.Lock()
		if j := l.indexLocked(id); j >= 0 {
			l.songs[j].Filename = res.NewFilename
		}
		l.mu.Unlock()
		l.render()
	}

	l.notifier.Notify(shared.LevelSuccess, "Song renamed")
	return res, nil
}

// Delete removes a song locally, then on the server, reinserting it at its old position on failure.
func (l *Library) Delete(ctx context.Context, id string) (*services.DeleteResult, error) {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", shared.ErrSongNotFound, id)
	}
	removed := l.songs[i]
	l.songs = slices.Delete(l.songs, i, i+1)
	l.mu.Unlock()
	l.render()

	res, err := l.client.DeleteSong(ctx, id)
	if err != nil {
		l.mu.Lock()
		l.songs = slices.Insert(l.songs, min(i, len(l.songs)), removed)
		l.mu.Unlock()
		l.render()
		l.notifier.Notify(shared.LevelError, err.Error())
		return nil, err
	}

	l.notifier.Notify(shared.LevelSuccess, "Song deleted")
	return res, nil
}

// Filter returns songs whose title or filename contains query, ignoring case.
func (l *Library) Filter(query string) []models.Track {
	return FilterSongs(l.Songs(), query)
}

// Stats summarises the current listing.
func (l *Library) Stats() Stats {
	return Summarize(l.Songs())
}

// FilterSongs returns songs whose title or filename contains query, ignoring case.
func FilterSongs(songs []models.Track, query string) []models.Track {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return songs
	}
	return lo.Filter(songs, func(s models.Track, _ int) bool {
		return strings.Contains(strings.ToLower(s.Title), q) || strings.Contains(strings.ToLower(s.Filename), q)
	})
}

// Summarize totals songs.
func Summarize(songs []models.Track) Stats {
	return Stats{
		Count:         len(songs),
		TotalDuration: lo.SumBy(songs, func(s models.Track) int { return s.Duration }),
		TotalSize:     lo.SumBy(songs, func(s models.Track) int64 { return s.Size }),
	}
}

func (l *Library) indexLocked(id string) int {
	return slices.IndexFunc(l.songs, func(s models.Track) bool { return s.ID == id })
}

// render copies the listing under renderMu so a stale copy is never drawn last.
func (l *Library) render() {
	l.renderMu.Lock()
	defer l.renderMu.Unlock()
	l.renderer.RenderLibrary(l.Songs())
}
