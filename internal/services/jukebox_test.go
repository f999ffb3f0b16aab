package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/jbx/internal/models"
	"github.com/desertthunder/jbx/internal/shared"
)

// newJukebox starts a server that routes by "METHOD path".
func newJukebox(t *testing.T, routes map[string]http.HandlerFunc) *Jukebox {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(server.Close)
	return NewJukebox(NewAPIService(server.URL, nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestJukeboxPlayer(t *testing.T) {
	t.Run("PlayerStatus decodes the snapshot", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"GET /api/player/status": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{
					"success": true, "is_playing": true, "is_paused": true,
					"current_song":     map[string]any{"id": "1", "title": "A", "duration": 200},
					"current_playlist": map[string]any{"name": "Mix"},
					"elapsed_time":     12.9, "song_duration": 200,
				})
			},
		})

		s, err := j.PlayerStatus(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !s.IsPlaying || !s.IsPaused || s.CurrentSong.Title != "A" || s.ElapsedTime != 12.9 {
			t.Errorf("unexpected snapshot %+v", s)
		}
	})

	t.Run("Next marks the player running and resets the clock", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /player/next": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{
					"success":        true,
					"current_song":   map[string]any{"id": "2", "title": "B", "duration": 95},
					"playlist":       map[string]any{"name": "Mix"},
					"queue_position": 1, "queue_length": 3,
				})
			},
		})

		s, err := j.Next(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !s.IsPlaying || s.IsPaused {
			t.Error("expected playing after skip")
		}
		if s.SongDuration != 95 || s.ElapsedTime != 0 {
			t.Errorf("expected clock 0/95, got %v/%v", s.ElapsedTime, s.SongDuration)
		}
		if s.ActivePlaylist().Name != "Mix" || s.QueuePosition != 1 {
			t.Errorf("unexpected queue state %+v", s)
		}
	})

	t.Run("PlayPlaylist sends the playlist name", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /player/play": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				if body["playlist_name"] != "chill" {
					t.Errorf("unexpected body %v", body)
				}
				writeJSON(w, 200, map[string]any{"success": true, "current_song": map[string]any{"id": "1", "title": "A"}})
			},
		})

		if _, err := j.PlayPlaylist(context.Background(), "chill"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := j.PlayPlaylist(context.Background(), ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("TogglePlayback failure surfaces the server error", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /player/playpause": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 400, map[string]any{"success": false, "error": "Not connected to voice channel"})
			},
		})

		_, err := j.TogglePlayback(context.Background())
		if !errors.Is(err, shared.ErrCommandFailed) {
			t.Fatalf("expected ErrCommandFailed, got %v", err)
		}
		if err.Error() != "command rejected by server: Not connected to voice channel" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("success false with 200 is still a failure", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /player/previous": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{"success": false, "error": "No previous song"})
			},
		})

		if _, err := j.Previous(context.Background()); !errors.Is(err, shared.ErrCommandFailed) {
			t.Errorf("expected ErrCommandFailed, got %v", err)
		}
	})

	t.Run("bare 5xx maps to service unavailable", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"GET /api/player/status": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		})

		if _, err := j.PlayerStatus(context.Background()); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestJukeboxLibrary(t *testing.T) {
	t.Run("AddToLibrary omits the target unless auto add is set", func(t *testing.T) {
		var seen []map[string]any
		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /api/library": func(w http.ResponseWriter, r *http.Request) {
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				seen = append(seen, body)
				writeJSON(w, 200, map[string]any{"success": true, "download_id": "d1"})
			},
		})

		r, err := j.AddToLibrary(context.Background(), "https://youtu.be/abc", false, "Mix")
		if err != nil || r.DownloadID != "d1" {
			t.Fatalf("unexpected result %+v, %v", r, err)
		}
		if _, err := j.AddToLibrary(context.Background(), "https://youtu.be/abc", true, "Mix"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, ok := seen[0]["target_playlist"]; ok {
			t.Error("expected no target without auto add")
		}
		if seen[1]["target_playlist"] != "Mix" {
			t.Errorf("expected target playlist, got %v", seen[1])
		}
	})

	t.Run("RenameSong maps not found", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /api/library/abc/rename": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 404, map[string]any{"success": false, "error": "Song not found"})
			},
		})

		if _, err := j.RenameSong(context.Background(), "abc", "New"); !errors.Is(err, shared.ErrSongNotFound) {
			t.Errorf("expected ErrSongNotFound, got %v", err)
		}
	})

	t.Run("DeleteSong reports affected playlists", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"DELETE /api/library/abc/delete": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{"success": true, "removed_from_playlists": []string{"Mix"}})
			},
		})

		r, err := j.DeleteSong(context.Background(), "abc")
		if err != nil || len(r.RemovedFromPlaylists) != 1 {
			t.Errorf("unexpected result %+v, %v", r, err)
		}
	})

	t.Run("DownloadsStatus unwraps the list", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"GET /api/downloads/status": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{"downloads": []map[string]any{{"id": "d1", "status": "downloading"}}})
			},
		})

		d, err := j.DownloadsStatus(context.Background())
		if err != nil || len(d) != 1 || d[0].Status != models.DownloadDownloading {
			t.Errorf("unexpected downloads %+v, %v", d, err)
		}
	})
}

func TestJukeboxPlaylists(t *testing.T) {
	t.Run("CreatePlaylist sends a multipart form with an image", func(t *testing.T) {
		image := filepath.Join(t.TempDir(), "cover.png")
		if err := os.WriteFile(image, []byte("png"), 0644); err != nil {
			t.Fatal(err)
		}

		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /playlists/Road Trip": func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("failed to parse form: %v", err)
					return
				}
				if r.FormValue("name") != "Road Trip" || r.FormValue("tags") != `["rock","summer"]` {
					t.Errorf("unexpected fields %v", r.MultipartForm.Value)
				}
				f, hdr, err := r.FormFile("image")
				if err != nil {
					t.Errorf("expected image: %v", err)
					return
				}
				data, _ := io.ReadAll(f)
				if hdr.Filename != "cover.png" || string(data) != "png" {
					t.Errorf("unexpected image %s %q", hdr.Filename, data)
				}
				writeJSON(w, 201, map[string]any{"message": "Playlist created successfully"})
			},
		})

		r, err := j.CreatePlaylist(context.Background(), PlaylistForm{Name: "Road Trip", Tags: []string{"rock", "summer"}, ImagePath: image})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !r.Success || r.Message != "Playlist created successfully" {
			t.Errorf("unexpected result %+v", r)
		}
	})

	t.Run("CreatePlaylist conflict uses the message field", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"POST /playlists/Mix": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 409, map[string]any{"message": "Playlist already exists"})
			},
		})

		_, err := j.CreatePlaylist(context.Background(), PlaylistForm{Name: "Mix"})
		if !errors.Is(err, shared.ErrCommandFailed) || err.Error() != "command rejected by server: Playlist already exists" {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Playlist maps 404", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"GET /api/playlists/nope": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 404, map[string]any{"error": "Playlist not found"})
			},
		})

		if _, err := j.Playlist(context.Background(), "nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Playlist fills the serialized name", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"GET /api/playlists/mix": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{"name": "Mix", "songs": []any{}})
			},
		})

		p, err := j.Playlist(context.Background(), "mix")
		if err != nil || p.Key() != "mix" {
			t.Errorf("unexpected playlist %+v, %v", p, err)
		}
	})
}

func TestJukeboxSettings(t *testing.T) {
	t.Run("Settings unwraps the document", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"GET /api/settings": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{"success": true, "settings": models.DefaultSettings()})
			},
		})

		s, err := j.Settings(context.Background())
		if err != nil || s.General.DefaultVolume != 50 {
			t.Errorf("unexpected settings %+v, %v", s, err)
		}
	})

	t.Run("DiscordStatus", func(t *testing.T) {
		j := newJukebox(t, map[string]http.HandlerFunc{
			"GET /api/discord/status": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, 200, map[string]any{"success": true, "bot_ready": true, "voice_connected": false, "target_channel_id": "123"})
			},
		})

		s, err := j.DiscordStatus(context.Background())
		if err != nil || !s.BotReady || s.VoiceConnected || s.TargetChannelID != "123" {
			t.Errorf("unexpected status %+v, %v", s, err)
		}
	})
}
