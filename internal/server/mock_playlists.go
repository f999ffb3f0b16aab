package server

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/desertthunder/jbx/internal/models"
)

const maxImageBytes = 8 << 20

// findPlaylistLocked looks a playlist up by serialized name, then by display name.
func (m *Mock) findPlaylistLocked(name string) *models.Playlist {
	if pl, ok := m.playlists[name]; ok {
		return pl
	}
	for _, pl := range m.playlists {
		if pl.Name == name {
			return pl
		}
	}
	return nil
}

func clonePlaylist(pl *models.Playlist) models.Playlist {
	out := *pl
	out.Tags = append([]string{}, pl.Tags...)
	out.Songs = append([]models.Track{}, pl.Songs...)
	out.SongCount = len(pl.Songs)
	return out
}

func (m *Mock) handlePlaylists(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	list := make([]models.Playlist, 0, len(m.playlists))
	for _, pl := range m.playlists {
		list = append(list, clonePlaylist(pl))
	}
	m.mu.Unlock()

	slices.SortFunc(list, func(a, b models.Playlist) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	tags := lo.Uniq(lo.FlatMap(list, func(p models.Playlist, _ int) []string { return p.Tags }))

	writeJSON(w, http.StatusOK, map[string]any{"playlists": list, "tags": tags})
}

func (m *Mock) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	pl := m.findPlaylistLocked(r.PathValue("name"))
	if pl == nil {
		m.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Playlist not found"})
		return
	}
	out := clonePlaylist(pl)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

// playlistForm is the parsed multipart body of create and update requests.
type playlistForm struct {
	name     string
	tags     []string
	image    []byte
	imageExt string
}

func parsePlaylistForm(r *http.Request) (*playlistForm, string) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, "Invalid form data"
	}

	form := &playlistForm{name: strings.TrimSpace(r.FormValue("name")), tags: []string{}}
	if form.name == "" {
		return nil, "Playlist name is required"
	}
	if raw := r.FormValue("tags"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form.tags); err != nil {
			return nil, "Invalid tags format"
		}
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
		if err != nil {
			return nil, "Failed to read image"
		}
		form.image = data
		form.imageExt = strings.ToLower(filepath.Ext(header.Filename))
		if form.imageExt == "" {
			form.imageExt = ".jpg"
		}
	}
	return form, ""
}

func (m *Mock) storeImageLocked(key string, form *playlistForm) string {
	name := key + form.imageExt
	m.images[name] = form.image
	return "static/img/" + name
}

func (m *Mock) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	form, problem := parsePlaylistForm(r)
	if form == nil {
		writeMessage(w, http.StatusBadRequest, problem)
		return
	}

	key := serializeName(form.name)

	m.mu.Lock()
	if _, exists := m.playlists[key]; exists {
		m.mu.Unlock()
		writeMessage(w, http.StatusConflict, "Playlist already exists")
		return
	}

	pl := &models.Playlist{
		Name:           form.name,
		SerializedName: key,
		Tags:           form.tags,
		Songs:          []models.Track{},
		CreatedAt:      m.opts.Clock.Now().Format(time.RFC3339),
	}
	if form.image != nil {
		pl.Image = m.storeImageLocked(key, form)
	}
	m.playlists[key] = pl
	out := clonePlaylist(pl)
	m.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Playlist created successfully",
		"playlist": out,
	})
}

func (m *Mock) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	pl := m.findPlaylistLocked(r.PathValue("name"))
	m.mu.Unlock()
	if pl == nil {
		writeMessage(w, http.StatusNotFound, "Playlist not found")
		return
	}

	form, problem := parsePlaylistForm(r)
	if form == nil {
		writeMessage(w, http.StatusBadRequest, problem)
		return
	}

	m.mu.Lock()
	pl.Name = form.name
	pl.Tags = form.tags
	if form.image != nil {
		pl.Image = m.storeImageLocked(pl.SerializedName, form)
	}
	out := clonePlaylist(pl)
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Playlist updated successfully",
		"playlist": out,
	})
}

func (m *Mock) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pl := m.findPlaylistLocked(r.PathValue("name"))
	if pl == nil {
		writeMessage(w, http.StatusNotFound, "Playlist not found")
		return
	}
	delete(m.playlists, pl.SerializedName)
	writeMessage(w, http.StatusOK, "Playlist deleted successfully")
}

func (m *Mock) handleAddPlaylistSong(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SongID string `json:"song_id"`
	}
	if err := readJSON(r, &body); err != nil || body.SongID == "" {
		writeError(w, http.StatusBadRequest, "Song ID is required")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pl := m.findPlaylistLocked(r.PathValue("name"))
	if pl == nil {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}
	i := m.songIndexLocked(body.SongID)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Song not found in library")
		return
	}
	if slices.ContainsFunc(pl.Songs, func(s models.Track) bool { return s.LibrarySongID == body.SongID }) {
		writeError(w, http.StatusConflict, "Song already in playlist")
		return
	}

	entry := playlistEntry(m.songs[i], m.opts.Clock.Now())
	pl.Songs = append(pl.Songs, entry)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Song added to playlist successfully",
		"song":    entry,
	})
}

func (m *Mock) handleRemovePlaylistSong(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pl := m.findPlaylistLocked(r.PathValue("name"))
	if pl == nil {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	id := r.PathValue("song_id")
	before := len(pl.Songs)
	pl.Songs = slices.DeleteFunc(pl.Songs, func(s models.Track) bool { return s.ID == id })
	if len(pl.Songs) == before {
		writeError(w, http.StatusNotFound, "Song not found in playlist")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Song removed from playlist successfully",
	})
}

func (m *Mock) handleImage(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	data, ok := m.images[r.PathValue("file")]
	m.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

func (m *Mock) handleSettings(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	s := m.settings
	s.Discord.Connected = m.discord.VoiceConnected
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": s})
}

// handleSaveSettings overlays the request body onto the current settings.
func (m *Mock) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	s := m.settings
	m.mu.Unlock()

	if err := readJSON(r, &s); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if s.General.DefaultVolume < 0 || s.General.DefaultVolume > 100 {
		writeError(w, http.StatusBadRequest, "Volume must be between 0 and 100")
		return
	}

	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Settings saved successfully"})
}

func (m *Mock) handleTestDiscord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BotToken  string `json:"botToken"`
		ChannelID string `json:"channelId"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Bot token and channel ID are required")
		return
	}

	token := strings.TrimSpace(body.BotToken)
	channel := strings.TrimSpace(body.ChannelID)
	switch {
	case token == "" && channel == "":
		writeError(w, http.StatusBadRequest, "Bot token and channel ID are required")
		return
	case token == "":
		writeError(w, http.StatusBadRequest, "Bot token is required")
		return
	case !channelIDPattern.MatchString(channel):
		writeError(w, http.StatusBadRequest, "Valid channel ID is required")
		return
	case len(token) < 50:
		writeError(w, http.StatusBadRequest, "Invalid bot token format")
		return
	}

	m.mu.Lock()
	m.settings.Discord.BotToken = token
	m.settings.Discord.ChannelID = channel
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Discord credentials saved successfully"})
}
