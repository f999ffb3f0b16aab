package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// Jukebox is a typed client for the jukebox server's REST surface.
type Jukebox struct {
	api *APIService
}

// NewJukebox wraps api with typed endpoint methods.
func NewJukebox(api *APIService) *Jukebox {
	return &Jukebox{api: api}
}

// API exposes the raw client for passthrough commands.
func (j *Jukebox) API() *APIService { return j.api }

func (j *Jukebox) getJSON(ctx context.Context, path string, v any) error {
	resp, err := j.api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return decode(resp, v)
}

func (j *Jukebox) postJSON(ctx context.Context, path string, body, v any) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	} else {
		data = []byte("{}")
	}

	resp, err := j.api.Post(ctx, path, data)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return decode(resp, v)
}

func (j *Jukebox) deleteJSON(ctx context.Context, path string, v any) error {
	resp, err := j.api.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return decode(resp, v)
}

// PlayerStatus fetches the current player snapshot.
func (j *Jukebox) PlayerStatus(ctx context.Context) (*models.PlayerSnapshot, error) {
	var s models.PlayerSnapshot
	if err := j.getJSON(ctx, "/api/player/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TogglePlayback flips between playing and paused.
func (j *Jukebox) TogglePlayback(ctx context.Context) (*ToggleResult, error) {
	var r ToggleResult
	if err := j.postJSON(ctx, "/player/playpause", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Next skips to the next queued song.
func (j *Jukebox) Next(ctx context.Context) (*models.PlayerSnapshot, error) {
	return j.transport(ctx, "/player/next", nil)
}

// Previous skips back to the previous queued song.
func (j *Jukebox) Previous(ctx context.Context) (*models.PlayerSnapshot, error) {
	return j.transport(ctx, "/player/previous", nil)
}

// PlayPlaylist shuffles the named playlist into the queue and starts playback.
func (j *Jukebox) PlayPlaylist(ctx context.Context, name string) (*models.PlayerSnapshot, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}
	return j.transport(ctx, "/player/play", map[string]string{"playlist_name": name})
}

// transport handles commands whose responses carry a started song.
//
// A successful skip or play always leaves the player running, so the flags are set here.
func (j *Jukebox) transport(ctx context.Context, path string, body any) (*models.PlayerSnapshot, error) {
	var s models.PlayerSnapshot
	if err := j.postJSON(ctx, path, body, &s); err != nil {
		return nil, err
	}
	s.IsPlaying = true
	s.IsPaused = false
	if s.CurrentSong != nil {
		s.SongDuration = float64(s.CurrentSong.Duration)
	}
	s.ElapsedTime = 0
	return &s, nil
}

// DownloadsStatus returns downloads that are in flight or recently finished.
func (j *Jukebox) DownloadsStatus(ctx context.Context) ([]models.DownloadEntry, error) {
	var r struct {
		Downloads []models.DownloadEntry `json:"downloads"`
	}
	if err := j.getJSON(ctx, "/api/downloads/status", &r); err != nil {
		return nil, err
	}
	return r.Downloads, nil
}

// Library lists every song in the library, newest first.
func (j *Jukebox) Library(ctx context.Context) ([]models.Track, error) {
	var r struct {
		Songs []models.Track `json:"songs"`
	}
	if err := j.getJSON(ctx, "/api/library", &r); err != nil {
		return nil, err
	}
	return r.Songs, nil
}

// AddToLibrary starts downloading url, optionally adding the result to a playlist.
func (j *Jukebox) AddToLibrary(ctx context.Context, rawURL string, autoAdd bool, target string) (*AddResult, error) {
	body := map[string]any{"url": rawURL, "auto_add_playlist": autoAdd}
	if autoAdd && target != "" {
		body["target_playlist"] = target
	}

	var r AddResult
	if err := j.postJSON(ctx, "/api/library", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RenameSong changes a library song's title.
func (j *Jukebox) RenameSong(ctx context.Context, id, title string) (*RenameResult, error) {
	var r RenameResult
	err := j.postJSON(ctx, "/api/library/"+url.PathEscape(id)+"/rename", map[string]string{"title": title}, &r)
	if err != nil {
		return nil, j.notFound(err, shared.ErrSongNotFound)
	}
	return &r, nil
}

// DeleteSong removes a song from disk and from every playlist containing it.
func (j *Jukebox) DeleteSong(ctx context.Context, id string) (*DeleteResult, error) {
	var r DeleteResult
	if err := j.deleteJSON(ctx, "/api/library/"+url.PathEscape(id)+"/delete", &r); err != nil {
		return nil, j.notFound(err, shared.ErrSongNotFound)
	}
	return &r, nil
}

// Playlists lists every playlist and the union of their tags.
func (j *Jukebox) Playlists(ctx context.Context) (*PlaylistList, error) {
	var r PlaylistList
	if err := j.getJSON(ctx, "/api/playlists", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Playlist fetches one playlist with its songs.
func (j *Jukebox) Playlist(ctx context.Context, name string) (*models.Playlist, error) {
	var p models.Playlist
	if err := j.getJSON(ctx, "/api/playlists/"+url.PathEscape(name), &p); err != nil {
		return nil, j.notFound(err, shared.ErrPlaylistNotFound)
	}
	if p.SerializedName == "" {
		p.SerializedName = name
	}
	return &p, nil
}

// CreatePlaylist creates a playlist from a multipart form.
func (j *Jukebox) CreatePlaylist(ctx context.Context, form PlaylistForm) (*CommandResult, error) {
	return j.playlistForm(ctx, http.MethodPost, form.Name, form)
}

// UpdatePlaylist replaces a playlist's name, tags and optionally its image.
func (j *Jukebox) UpdatePlaylist(ctx context.Context, name string, form PlaylistForm) (*CommandResult, error) {
	r, err := j.playlistForm(ctx, http.MethodPut, name, form)
	if err != nil {
		return nil, j.notFound(err, shared.ErrPlaylistNotFound)
	}
	return r, nil
}

// DeletePlaylist removes a playlist.
func (j *Jukebox) DeletePlaylist(ctx context.Context, name string) (*CommandResult, error) {
	var r CommandResult
	if err := j.deleteJSON(ctx, "/playlists/"+url.PathEscape(name), &r); err != nil {
		return nil, j.notFound(err, shared.ErrPlaylistNotFound)
	}
	return &r, nil
}

// AddSongToPlaylist appends a library song to a playlist.
func (j *Jukebox) AddSongToPlaylist(ctx context.Context, playlist, songID string) (*PlaylistSongResult, error) {
	var r PlaylistSongResult
	path := "/api/playlists/" + url.PathEscape(playlist) + "/songs"
	if err := j.postJSON(ctx, path, map[string]string{"song_id": songID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// RemoveSongFromPlaylist removes an entry from a playlist.
func (j *Jukebox) RemoveSongFromPlaylist(ctx context.Context, playlist, songID string) (*CommandResult, error) {
	var r CommandResult
	path := "/api/playlists/" + url.PathEscape(playlist) + "/songs/" + url.PathEscape(songID)
	if err := j.deleteJSON(ctx, path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Settings fetches the server-side settings document.
func (j *Jukebox) Settings(ctx context.Context) (*models.Settings, error) {
	var r struct {
		Settings models.Settings `json:"settings"`
	}
	if err := j.getJSON(ctx, "/api/settings", &r); err != nil {
		return nil, err
	}
	return &r.Settings, nil
}

// SaveSettings merges s into the server-side settings.
func (j *Jukebox) SaveSettings(ctx context.Context, s models.Settings) (*CommandResult, error) {
	var r CommandResult
	if err := j.postJSON(ctx, "/api/settings", s, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// TestDiscord validates and stores Discord bot credentials.
func (j *Jukebox) TestDiscord(ctx context.Context, token, channelID string) (*CommandResult, error) {
	var r CommandResult
	body := map[string]string{"botToken": token, "channelId": channelID}
	if err := j.postJSON(ctx, "/api/settings/test-discord", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// JoinVoice asks the bot to join the configured voice channel.
func (j *Jukebox) JoinVoice(ctx context.Context) (*CommandResult, error) {
	var r CommandResult
	if err := j.postJSON(ctx, "/api/discord/join-voice", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LeaveVoice disconnects the bot, which also resets the player.
func (j *Jukebox) LeaveVoice(ctx context.Context) (*CommandResult, error) {
	var r CommandResult
	if err := j.postJSON(ctx, "/api/discord/leave-voice", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DiscordStatus fetches the bot's connectivity.
func (j *Jukebox) DiscordStatus(ctx context.Context) (*models.DiscordStatus, error) {
	var s models.DiscordStatus
	if err := j.getJSON(ctx, "/api/discord/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (j *Jukebox) playlistForm(ctx context.Context, method, name string, form PlaylistForm) (*CommandResult, error) {
	if form.Name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	body, contentType, err := encodePlaylistForm(form)
	if err != nil {
		return nil, err
	}

	resp, err := j.api.Do(ctx, method, "/playlists/"+url.PathEscape(name), body, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	var r CommandResult
	if err := decode(resp, &r); err != nil {
		return nil, err
	}
	r.Success = true
	return &r, nil
}

func encodePlaylistForm(form PlaylistForm) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	tags := form.Tags
	if tags == nil {
		tags = []string{}
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode tags: %w", err)
	}

	if err := w.WriteField("name", form.Name); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("tags", string(tagJSON)); err != nil {
		return nil, "", err
	}

	if form.ImagePath != "" {
		f, err := os.Open(form.ImagePath)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		defer f.Close()

		part, err := w.CreateFormFile("image", filepath.Base(form.ImagePath))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", fmt.Errorf("failed to attach image: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// notFound rewraps "not found" command failures with a more specific sentinel.
func (j *Jukebox) notFound(err, sentinel error) error {
	if errors.Is(err, shared.ErrCommandFailed) && strings.Contains(strings.ToLower(err.Error()), "not found") {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
