package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/repositories"
	"github.com/desertthunder/jbx/internal/services"
	"github.com/desertthunder/jbx/internal/shared"
)

type fakeClient struct {
	songs     []models.Track
	err       error
	renameErr error
	deleteErr error
	added     []string
}

func (f *fakeClient) Library(context.Context) ([]models.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.songs, nil
}

func (f *fakeClient) AddToLibrary(_ context.Context, rawURL string, _ bool, _ string) (*services.AddResult, error) {
	f.added = append(f.added, rawURL)
	return &services.AddResult{Success: true, DownloadID: "dl-1"}, nil
}

func (f *fakeClient) RenameSong(_ context.Context, id, title string) (*services.RenameResult, error) {
	if f.renameErr != nil {
		return nil, f.renameErr
	}
	return &services.RenameResult{Success: true, NewFilename: title + ".mp3"}, nil
}

func (f *fakeClient) DeleteSong(context.Context, string) (*services.DeleteResult, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &services.DeleteResult{Success: true, RemovedFromPlaylists: []string{"Road Trip"}}, nil
}

type notice struct {
	level shared.Level
	msg   string
}

func songs() []models.Track {
	return []models.Track{
		{ID: "a", Title: "Atmosphere", Filename: "atmosphere.mp3", Duration: 250, Size: 1024},
		{ID: "b", Title: "Bizarre Love Triangle", Filename: "blt.mp3", Duration: 262, Size: 2048},
		{ID: "c", Title: "Crystal", Filename: "crystal.mp3", Duration: 411, Size: 4096},
	}
}

func setup(t *testing.T, client *fakeClient) (*Library, *[]notice, *int) {
	t.Helper()
	var notices []notice
	renders := 0
	lib := New(client, Options{
		Renderer: RendererFunc(func([]models.Track) { renders++ }),
		Notifier: shared.NotifierFunc(func(l shared.Level, msg string) { notices = append(notices, notice{l, msg}) }),
	})
	return lib, &notices, &renders
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"http://youtube.com/watch?v=abc_123-x",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"  https://youtu.be/xyz  ",
	}
	for _, u := range valid {
		assert.NoError(t, ValidateURL(u), u)
	}

	invalid := []string{
		"https://vimeo.com/123",
		"youtube.com/watch?v=abc",
		"https://www.youtube.com/watch?list=abc",
		"ftp://youtu.be/abc",
	}
	for _, u := range invalid {
		assert.ErrorIs(t, ValidateURL(u), shared.ErrInvalidURL, u)
	}

	assert.ErrorIs(t, ValidateURL(""), shared.ErrMissingArgument)
}

func TestLibrary(t *testing.T) {
	ctx := context.Background()

	t.Run("Refresh", func(t *testing.T) {
		lib, _, renders := setup(t, &fakeClient{songs: songs()})
		require.NoError(t, lib.Refresh(ctx))
		assert.Len(t, lib.Songs(), 3)
		assert.Equal(t, 1, *renders)
	})

	t.Run("Refresh error keeps listing", func(t *testing.T) {
		client := &fakeClient{songs: songs()}
		lib, _, _ := setup(t, client)
		require.NoError(t, lib.Refresh(ctx))

		client.err = shared.ErrServiceUnavailable
		err := lib.Refresh(ctx)
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
		assert.Len(t, lib.Songs(), 3)
	})

	t.Run("Add rejects invalid URL without calling server", func(t *testing.T) {
		client := &fakeClient{}
		lib, notices, _ := setup(t, client)

		_, err := lib.Add(ctx, "https://example.com/video", false, "")
		assert.ErrorIs(t, err, shared.ErrInvalidURL)
		assert.Empty(t, client.added)
		require.Len(t, *notices, 1)
		assert.Equal(t, shared.LevelError, (*notices)[0].level)
	})

	t.Run("Add requires target when auto adding", func(t *testing.T) {
		lib, _, _ := setup(t, &fakeClient{})
		_, err := lib.Add(ctx, "https://youtu.be/abc", true, " ")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})

	t.Run("Add", func(t *testing.T) {
		client := &fakeClient{}
		lib, notices, _ := setup(t, client)

		res, err := lib.Add(ctx, " https://youtu.be/abc ", false, "")
		require.NoError(t, err)
		assert.Equal(t, "dl-1", res.DownloadID)
		assert.Equal(t, []string{"https://youtu.be/abc"}, client.added)
		assert.Equal(t, shared.LevelSuccess, (*notices)[0].level)
	})

	t.Run("Rename", func(t *testing.T) {
		lib, _, _ := setup(t, &fakeClient{songs: songs()})
		require.NoError(t, lib.Refresh(ctx))

		res, err := lib.Rename(ctx, "b", "  BLT  ")
		require.NoError(t, err)
		assert.Equal(t, "BLT.mp3", res.NewFilename)

		got := lib.Songs()[1]
		assert.Equal(t, "BLT", got.Title)
		assert.Equal(t, "BLT.mp3", got.Filename)
	})

	t.Run("Rename rolls back on failure", func(t *testing.T) {
		client := &fakeClient{songs: songs(), renameErr: fmt.Errorf("%w: Song not found", shared.ErrCommandFailed)}
		var seen []string
		lib := New(client, Options{Renderer: RendererFunc(func(s []models.Track) {
			if len(s) > 1 {
				seen = append(seen, s[1].Title)
			}
		})})
		require.NoError(t, lib.Refresh(ctx))

		_, err := lib.Rename(ctx, "b", "Renamed")
		assert.ErrorIs(t, err, shared.ErrCommandFailed)
		assert.Equal(t, "Bizarre Love Triangle", lib.Songs()[1].Title)
		assert.Equal(t, []string{"Bizarre Love Triangle", "Renamed", "Bizarre Love Triangle"}, seen)
	})

	t.Run("Rename validation", func(t *testing.T) {
		lib, _, _ := setup(t, &fakeClient{songs: songs()})
		require.NoError(t, lib.Refresh(ctx))

		_, err := lib.Rename(ctx, "b", "   ")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = lib.Rename(ctx, "zzz", "Title")
		assert.ErrorIs(t, err, shared.ErrSongNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		lib, notices, _ := setup(t, &fakeClient{songs: songs()})
		require.NoError(t, lib.Refresh(ctx))

		res, err := lib.Delete(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"Road Trip"}, res.RemovedFromPlaylists)
		assert.Len(t, lib.Songs(), 2)
		assert.Equal(t, shared.LevelSuccess, (*notices)[0].level)
	})

	t.Run("Delete restores position on failure", func(t *testing.T) {
		lib, notices, _ := setup(t, &fakeClient{songs: songs(), deleteErr: errors.New("boom")})
		require.NoError(t, lib.Refresh(ctx))

		_, err := lib.Delete(ctx, "b")
		assert.Error(t, err)

		got := lib.Songs()
		require.Len(t, got, 3)
		assert.Equal(t, "b", got[1].ID)
		assert.Equal(t, shared.LevelError, (*notices)[0].level)
	})

	t.Run("Filter and Stats", func(t *testing.T) {
		lib, _, _ := setup(t, &fakeClient{songs: songs()})
		require.NoError(t, lib.Refresh(ctx))

		assert.Len(t, lib.Filter(""), 3)
		assert.Len(t, lib.Filter("CRYSTAL"), 1)
		assert.Len(t, lib.Filter("blt.mp3"), 1)
		assert.Empty(t, lib.Filter("temptation"))

		stats := lib.Stats()
		assert.Equal(t, 3, stats.Count)
		assert.Equal(t, 923, stats.TotalDuration)
		assert.Equal(t, int64(7168), stats.TotalSize)
		assert.Equal(t, "15:23", stats.Duration())
		assert.Equal(t, "7.0 KiB", stats.Size())
	})

	t.Run("Offline cache", func(t *testing.T) {
		db, err := shared.OpenCache(shared.CacheConfig{Path: filepath.Join(t.TempDir(), "cache.db"), MaxOpenConns: 1})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		lib := New(&fakeClient{songs: songs()}, Options{Cache: repositories.NewSongRepository(db)})
		require.NoError(t, lib.Refresh(ctx))

		cached, err := lib.Offline(ctx, "atmo")
		require.NoError(t, err)
		require.Len(t, cached, 1)
		assert.Equal(t, "a", cached[0].ID)
	})

	t.Run("Offline without cache", func(t *testing.T) {
		lib, _, _ := setup(t, &fakeClient{})
		_, err := lib.Offline(ctx, "")
		assert.ErrorIs(t, err, shared.ErrMissingConfig)
	})
}
