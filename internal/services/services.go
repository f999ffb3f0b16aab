// package services wraps the jukebox server's REST endpoints
package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// envelope is the common shape of every mutating response.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// CommandResult is the acknowledgement returned by mutating endpoints.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ToggleResult is the response to a play/pause toggle.
//
// It carries only the transport flags, never a full snapshot.
type ToggleResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	IsPlaying bool   `json:"is_playing"`
	IsPaused  bool   `json:"is_paused"`
}

// AddResult is the response to starting a download.
type AddResult struct {
	Success    bool   `json:"success"`
	DownloadID string `json:"download_id"`
	Message    string `json:"message"`
}

// RenameResult is the response to renaming a library song.
type RenameResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	NewFilename string `json:"new_filename"`
}

// DeleteResult is the response to deleting a library song.
type DeleteResult struct {
	Success              bool     `json:"success"`
	Message              string   `json:"message"`
	RemovedFromPlaylists []string `json:"removed_from_playlists"`
}

// PlaylistList is the response to listing playlists.
type PlaylistList struct {
	Playlists []models.Playlist `json:"playlists"`
	Tags      []string          `json:"tags"`
}

// PlaylistSongResult is the response to adding a song to a playlist.
type PlaylistSongResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Song    models.Track `json:"song"`
}

// PlaylistForm is the multipart payload for creating or updating a playlist.
type PlaylistForm struct {
	Name      string
	Tags      []string
	ImagePath string
}

// decode checks the response for failure and unmarshals the body into v.
//
// Failure is a non-2xx status or success:false; the server's error or message text becomes part of the error.
func decode(resp *APIResponse, v any) error {
	var env envelope
	_ = json.Unmarshal(resp.Body, &env)

	failed := !resp.OK() || (env.Success != nil && !*env.Success)
	if failed {
		reason := env.Error
		if reason == "" {
			reason = env.Message
		}
		if reason == "" {
			if resp.StatusCode >= 500 {
				return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
			}
			reason = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", shared.ErrCommandFailed, reason)
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}
